package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HeaderUserID carries the authenticated caller, set by the gateway in front
// of this service.
const HeaderUserID = "X-User-ID"

func callerID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUserID+" header")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

// parseDate reads a YYYY-MM-DD value as a UTC calendar date.
func parseDate(field, v string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, field+" must be a date formatted as 2006-01-02")
	}
	return d, nil
}

func parseOptionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(field, v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
