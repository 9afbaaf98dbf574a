package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"gorm.io/gorm"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type DecisionInput struct {
	ReservationID string
	CallerID      string
	Decision      Decision
	Reason        string
}

// DecisionService moves a reservation out of pending_host.
type DecisionService interface {
	Decide(ctx context.Context, in DecisionInput) (*models.Reservation, error)
	Accept(ctx context.Context, reservationID, hostID string) (*models.Reservation, error)
	Reject(ctx context.Context, reservationID, hostID, reason string) (*models.Reservation, error)
	CancelAfterAccept(ctx context.Context, reservationID, hostID, reason string) (*models.Reservation, error)
	// AutoReject rejects a reservation the host left pending since before
	// cutoff. It reports false when the reservation no longer qualifies.
	AutoReject(ctx context.Context, reservationID string, cutoff time.Time) (bool, error)
}

type decisionService struct {
	Dependencies
}

func NewDecisionService(deps Dependencies) DecisionService {
	return &decisionService{Dependencies: deps}
}

func (s *decisionService) Decide(ctx context.Context, in DecisionInput) (*models.Reservation, error) {
	switch in.Decision {
	case DecisionAccept:
		return s.Accept(ctx, in.ReservationID, in.CallerID)
	case DecisionReject:
		return s.Reject(ctx, in.ReservationID, in.CallerID, in.Reason)
	default:
		return nil, validationError("decision must be accept or reject")
	}
}

// Accept captures the primary hold and confirms the reservation. Calling it
// again on an accepted reservation returns it unchanged.
func (s *decisionService) Accept(ctx context.Context, reservationID, hostID string) (*models.Reservation, error) {
	var result *models.Reservation
	alreadyAccepted := false

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		res, err := s.lockOwned(ctx, tx, reservationID, hostID)
		if err != nil {
			return err
		}
		if res.HostValidation == models.HostAccepted && res.IsPaid() {
			result, alreadyAccepted = res, true
			return nil
		}
		if res.IsCancelled() || res.HostValidation != models.HostPending {
			return fmt.Errorf("%w: reservation is %s/%s", ErrInvalidTransition, res.Status, res.HostValidation)
		}

		status, err := s.Gateway.Status(ctx, res.TransactionRef)
		if err != nil {
			return gatewayError(err)
		}
		switch {
		case status == gateway.StatusSucceeded:
			// captured by an earlier attempt that failed to record it
			s.log(res).Warn("hold already captured, recording accept")
		case status.Capturable():
			if err := s.Gateway.Capture(ctx, res.TransactionRef); err != nil {
				return gatewayError(err)
			}
		default:
			return fmt.Errorf("%w: hold is %s, ask the guest to pay again", ErrPaymentStateConflict, status)
		}

		now := s.now()
		res.PaymentStatus = models.PaymentPaid
		res.HostValidation = models.HostAccepted
		res.Status = models.StatusConfirmed
		res.DecidedAt = &now
		if err := s.Reservations.Save(ctx, tx, res); err != nil {
			s.warnConsistency(res, err, "captured but not recorded, accept again to heal")
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyAccepted {
		s.log(result).Info("reservation accepted")
		s.Notifier.Send(ctx, notify.ReservationAccepted, result.GuestID, notify.Payload{
			"reservation_id": result.ID,
			"check_in":       result.CheckIn.Format(time.DateOnly),
			"check_out":      result.CheckOut.Format(time.DateOnly),
		})
	}
	return result, nil
}

func (s *decisionService) Reject(ctx context.Context, reservationID, hostID, reason string) (*models.Reservation, error) {
	var result *models.Reservation

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		res, err := s.lockOwned(ctx, tx, reservationID, hostID)
		if err != nil {
			return err
		}
		if res.IsCancelled() {
			return ErrAlreadyCancelled
		}
		if res.HostValidation != models.HostPending {
			return fmt.Errorf("%w: an accepted reservation must be cancelled, not rejected", ErrInvalidTransition)
		}
		if err := s.reject(ctx, tx, res, models.CancelledByHost, reason); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(result).Info("reservation rejected")
	s.Notifier.Send(ctx, notify.ReservationRejected, result.GuestID, notify.Payload{
		"reservation_id": result.ID,
		"reason":         reason,
	})
	return result, nil
}

func (s *decisionService) AutoReject(ctx context.Context, reservationID string, cutoff time.Time) (bool, error) {
	var result *models.Reservation

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		res, err := s.Reservations.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			return notFound("reservation", err)
		}
		// re-check under the lock, the host may have answered meanwhile
		if res.IsCancelled() || res.HostValidation != models.HostPending || !res.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := s.reject(ctx, tx, res, models.CancelledBySystem, "host did not respond in time"); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil || result == nil {
		return false, err
	}

	s.log(result).Info("reservation auto-rejected")
	s.Notifier.Send(ctx, notify.ReservationAutoRejected, result.GuestID, notify.Payload{
		"reservation_id": result.ID,
	})
	return true, nil
}

// reject releases the holds and dates of a pending reservation. No money is
// refunded here; a hold found captured is queued for the reconciliation job.
func (s *decisionService) reject(ctx context.Context, tx *gorm.DB, res *models.Reservation, by models.CancelledBy, reason string) error {
	s.releasePayment(ctx, res)
	s.releaseCaution(ctx, res)

	if err := s.unblock(ctx, tx, res); err != nil {
		return err
	}

	now := s.now()
	res.MarkCancelled(by, reason, now)
	res.HostValidation = models.HostRejected
	res.DecidedAt = &now
	queueFullRefund(res)
	return s.Reservations.Save(ctx, tx, res)
}

// CancelAfterAccept cancels a confirmed stay on the host's side. The guest
// gets everything back, but the refund itself is left to the
// reconciliation job.
func (s *decisionService) CancelAfterAccept(ctx context.Context, reservationID, hostID, reason string) (*models.Reservation, error) {
	var result *models.Reservation

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		res, err := s.lockOwned(ctx, tx, reservationID, hostID)
		if err != nil {
			return err
		}
		if res.IsCancelled() {
			return ErrAlreadyCancelled
		}
		if res.HostValidation != models.HostAccepted {
			return fmt.Errorf("%w: a pending reservation must be rejected, not cancelled", ErrInvalidTransition)
		}
		if !s.today().Before(res.CheckOut) {
			return fmt.Errorf("%w: stay already completed", ErrInvalidTransition)
		}

		s.releaseCaution(ctx, res)
		if err := s.unblock(ctx, tx, res); err != nil {
			return err
		}
		res.MarkCancelled(models.CancelledByHost, reason, s.now())
		queueFullRefund(res)
		if err := s.Reservations.Save(ctx, tx, res); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(result).WithField("refund_amount", result.RefundAmount).Info("reservation cancelled by host")
	s.Notifier.Send(ctx, notify.ReservationCancelledByHost, result.GuestID, notify.Payload{
		"reservation_id": result.ID,
		"refund_amount":  result.RefundAmount,
		"reason":         reason,
	})
	return result, nil
}

func (s *decisionService) lockOwned(ctx context.Context, tx *gorm.DB, reservationID, hostID string) (*models.Reservation, error) {
	res, err := s.Reservations.FindByIDForUpdate(ctx, tx, reservationID)
	if err != nil {
		return nil, notFound("reservation", err)
	}
	if res.HostID != hostID {
		return nil, ErrAuthorization
	}
	return res, nil
}
