package handler

import (
	"errors"
	"net/http"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/service"
	"github.com/labstack/echo/v4"
)

// httpError maps the service error taxonomy onto status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthorization):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrDatesUnavailable),
		errors.Is(err, service.ErrPaymentStateConflict),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyReviewed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentDeclined):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrGatewayTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
