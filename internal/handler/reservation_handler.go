package handler

import (
	"net/http"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/service"
	"github.com/labstack/echo/v4"
)

type ReservationHandler struct {
	payments      service.PaymentService
	reservations  service.ReservationService
	decisions     service.DecisionService
	cancellations service.CancellationService
	reviews       service.ReviewService
}

func NewReservationHandler(
	payments service.PaymentService,
	reservations service.ReservationService,
	decisions service.DecisionService,
	cancellations service.CancellationService,
	reviews service.ReviewService,
) *ReservationHandler {
	return &ReservationHandler{
		payments:      payments,
		reservations:  reservations,
		decisions:     decisions,
		cancellations: cancellations,
		reviews:       reviews,
	}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/payments/authorize", h.AuthorizePayment)

	reservations := e.Group("/api/v1/reservations")
	reservations.POST("", h.CreateReservation)
	reservations.GET("/:id", h.GetReservation)
	reservations.POST("/:id/decision", h.Decide)
	reservations.POST("/:id/host-cancel", h.HostCancel)
	reservations.POST("/:id/cancel", h.Cancel)
	reservations.POST("/:id/reviews", h.SubmitReview)
}

func (h *ReservationHandler) AuthorizePayment(c echo.Context) error {
	if _, err := callerID(c); err != nil {
		return err
	}
	var req dto.AuthorizePaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.payments.Authorize(c.Request().Context(), service.AuthorizeInput{
		Kind:          gateway.RefKind(req.Mode),
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		WithCaution:   req.WithCaution,
	})
	if err != nil {
		return httpError(err)
	}

	resp := dto.AuthorizePaymentResponse{TransactionRef: res.TransactionRef, Status: res.Status}
	if !res.CautionRef.IsZero() {
		resp.CautionRef = &res.CautionRef
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	guestID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.CreateReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := service.CreateReservationInput{
		ListingID:           req.ListingID,
		GuestID:             guestID,
		GuestsCount:         req.GuestsCount,
		AccommodationAmount: req.AccommodationAmount,
		TaxAmount:           req.TaxAmount,
		TotalPrice:          req.TotalPrice,
		TransactionRef:      gateway.Ref{Kind: gateway.RefKind(req.TransactionRef.Kind), ID: req.TransactionRef.ID},
	}
	if req.CautionRef != nil {
		in.CautionRef = gateway.Ref{Kind: gateway.RefKind(req.CautionRef.Kind), ID: req.CautionRef.ID}
	}
	if in.CheckIn, err = parseDate("check_in", req.CheckIn); err != nil {
		return err
	}
	if in.CheckOut, err = parseDate("check_out", req.CheckOut); err != nil {
		return err
	}
	if in.RefundDeadlineFull, err = parseOptionalDate("refund_deadline_full", req.RefundDeadlineFull); err != nil {
		return err
	}
	if in.RefundDeadlineZero, err = parseOptionalDate("refund_deadline_zero", req.RefundDeadlineZero); err != nil {
		return err
	}

	res, err := h.reservations.Create(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dto.CreateReservationResponse{ReservationID: res.ID, Status: res.Status})
}

func (h *ReservationHandler) GetReservation(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	res, err := h.reservations.Get(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) Decide(c echo.Context) error {
	hostID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.decisions.Decide(c.Request().Context(), service.DecisionInput{
		ReservationID: c.Param("id"),
		CallerID:      hostID,
		Decision:      service.Decision(req.Decision),
		Reason:        req.Reason,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto.ToDecisionResponse(res))
}

func (h *ReservationHandler) HostCancel(c echo.Context) error {
	hostID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.CancelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.decisions.CancelAfterAccept(c.Request().Context(), c.Param("id"), hostID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto.CancelResponse{
		ReservationID: res.ID,
		RefundAmount:  res.RefundAmount,
		RefundRate:    res.RefundRate,
		RefundStatus:  res.RefundStatus,
	})
}

func (h *ReservationHandler) Cancel(c echo.Context) error {
	guestID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.CancelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.cancellations.Cancel(c.Request().Context(), c.Param("id"), guestID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto.CancelResponse{
		ReservationID: out.Reservation.ID,
		RefundAmount:  out.RefundAmount,
		RefundRate:    out.RefundRate,
		RefundStatus:  out.RefundStatus,
	})
}

func (h *ReservationHandler) SubmitReview(c echo.Context) error {
	authorID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.ReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	review, err := h.reviews.Submit(c.Request().Context(), service.ReviewInput{
		ReservationID: c.Param("id"),
		AuthorID:      authorID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToReviewResponse(review))
}
