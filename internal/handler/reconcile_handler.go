package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/reconcile"
	"github.com/labstack/echo/v4"
)

type Reconciler interface {
	Run(ctx context.Context, now time.Time) (reconcile.Summary, error)
}

// ReconcileHandler lets an external scheduler trigger one reconciliation run.
type ReconcileHandler struct {
	job Reconciler
	now func() time.Time
}

func NewReconcileHandler(job Reconciler, now func() time.Time) *ReconcileHandler {
	if now == nil {
		now = time.Now
	}
	return &ReconcileHandler{job: job, now: now}
}

func (h *ReconcileHandler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.POST("/internal/reconcile", h.Run, mw...)
}

func (h *ReconcileHandler) Run(c echo.Context) error {
	summary, err := h.job.Run(c.Request().Context(), h.now())
	resp := dto.ReconcileResponse{Summary: summary}
	if err == nil {
		return c.JSON(http.StatusOK, resp)
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			resp.Errors = append(resp.Errors, e.Error())
		}
	} else {
		resp.Errors = []string{err.Error()}
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
