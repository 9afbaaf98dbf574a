package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// maxCalendarDays bounds a single availability query.
const maxCalendarDays = 366

// CalendarHandler serves read-only views straight from the repositories.
type CalendarHandler struct {
	availability repository.AvailabilityRepository
	profiles     repository.ProfileRepository
}

func NewCalendarHandler(availability repository.AvailabilityRepository, profiles repository.ProfileRepository) *CalendarHandler {
	return &CalendarHandler{availability: availability, profiles: profiles}
}

func (h *CalendarHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/listings/:id/availability", h.GetAvailability)
	e.GET("/api/v1/profiles/:id/balance", h.GetBalance)
}

func (h *CalendarHandler) GetAvailability(c echo.Context) error {
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id")
	}
	start, err := parseDate("start", c.QueryParam("start"))
	if err != nil {
		return err
	}
	end, err := parseDate("end", c.QueryParam("end"))
	if err != nil {
		return err
	}
	if !end.After(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be after start")
	}
	days := repository.Days(start, end)
	if len(days) > maxCalendarDays {
		return echo.NewHTTPError(http.StatusBadRequest, "range is limited to 366 days")
	}

	rows, err := h.availability.ListRange(c.Request().Context(), uint(listingID), start, end)
	if err != nil {
		return httpError(err)
	}
	booked := make(map[string]bool, len(rows))
	for _, r := range rows {
		booked[r.Date.Format(time.DateOnly)] = r.Booked
	}

	resp := make([]dto.AvailabilityDayResponse, len(days))
	for i, d := range days {
		key := d.Format(time.DateOnly)
		resp[i] = dto.AvailabilityDayResponse{Date: key, Booked: booked[key]}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CalendarHandler) GetBalance(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	userID := c.Param("id")
	if caller != userID {
		return echo.NewHTTPError(http.StatusForbidden, "balances are only visible to their owner")
	}

	resp := dto.BalanceResponse{UserID: userID}
	balance, err := h.profiles.FindBalance(c.Request().Context(), userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// nothing credited yet
	case err != nil:
		return httpError(err)
	default:
		resp.TotalEarnings = balance.TotalEarnings
		resp.PayableBalance = balance.PayableBalance
	}
	return c.JSON(http.StatusOK, resp)
}
