package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/split"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CancellationResult struct {
	Reservation  *models.Reservation
	RefundRate   int
	RefundAmount int64
	RefundStatus models.RefundStatus
}

type CancellationService interface {
	Cancel(ctx context.Context, reservationID, guestID, reason string) (*CancellationResult, error)
	// IssuePendingRefund sends the refund recorded on a reservation whose
	// refund_status is pending. It reports whether the refund is now issued.
	IssuePendingRefund(ctx context.Context, reservationID string) (bool, error)
	// ReleaseOpenHolds retries the hold releases a cancellation could not
	// complete. It reports whether every hold of the reservation is settled.
	ReleaseOpenHolds(ctx context.Context, reservationID string) (bool, error)
}

type cancellationService struct {
	Dependencies
}

func NewCancellationService(deps Dependencies) CancellationService {
	return &cancellationService{Dependencies: deps}
}

func (s *cancellationService) Cancel(ctx context.Context, reservationID, guestID, reason string) (*CancellationResult, error) {
	var res *models.Reservation

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.Reservations.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			return notFound("reservation", err)
		}
		if res.GuestID != guestID {
			return ErrAuthorization
		}
		if res.IsCancelled() {
			return ErrAlreadyCancelled
		}
		if !s.today().Before(res.CheckOut) {
			return fmt.Errorf("%w: stay already completed", ErrInvalidTransition)
		}

		now := s.now()
		rate := res.Deadlines().RefundRate(now)

		// never captured: release the hold, nothing to refund
		s.releasePayment(ctx, res)
		s.releaseCaution(ctx, res)

		res.MarkCancelled(models.CancelledByGuest, reason, now)
		res.RefundRate = rate
		res.SetShares(res.Shares().Rescale(rate))
		switch {
		case !res.IsPaid():
			res.RefundAmount = 0
			res.RefundStatus = models.RefundSkipped
		default:
			res.RefundAmount = split.RefundAmount(res.TotalPrice, rate)
			res.RefundStatus = models.RefundPending
			if res.RefundAmount == 0 {
				res.RefundStatus = models.RefundSkipped
			}
		}

		if err := s.unblock(ctx, tx, res); err != nil {
			return err
		}
		return s.Reservations.Save(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}

	if res.RefundStatus == models.RefundPending {
		if _, err := s.issue(ctx, res); err != nil {
			s.log(res).WithError(err).Warn("refund left pending for reconciliation")
		}
	}

	s.log(res).WithFields(logrus.Fields{
		"refund_rate":   res.RefundRate,
		"refund_amount": res.RefundAmount,
		"refund_status": res.RefundStatus,
	}).Info("reservation cancelled by guest")
	s.Notifier.Send(ctx, notify.ReservationCancelledByGuest, res.HostID, notify.Payload{
		"reservation_id": res.ID,
		"refund_rate":    res.RefundRate,
		"reason":         reason,
	})

	return &CancellationResult{
		Reservation:  res,
		RefundRate:   res.RefundRate,
		RefundAmount: res.RefundAmount,
		RefundStatus: res.RefundStatus,
	}, nil
}

func (s *cancellationService) IssuePendingRefund(ctx context.Context, reservationID string) (bool, error) {
	res, err := s.Reservations.FindByID(ctx, reservationID)
	if err != nil {
		return false, notFound("reservation", err)
	}
	if res.RefundStatus != models.RefundPending {
		return false, nil
	}
	return s.issue(ctx, res)
}

func (s *cancellationService) ReleaseOpenHolds(ctx context.Context, reservationID string) (bool, error) {
	var res *models.Reservation
	var releaseErr error
	open := false

	err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.Reservations.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			return notFound("reservation", err)
		}
		open = res.IsCancelled() &&
			(res.PaymentStatus == models.PaymentAuthorized || res.CautionStatus == models.CautionAuthorized)
		if !open {
			return nil
		}

		wasAuthorized := res.PaymentStatus == models.PaymentAuthorized
		releaseErr = errors.Join(s.releasePayment(ctx, res), s.releaseCaution(ctx, res))
		if wasAuthorized && res.IsPaid() {
			// captured at the processor after all: refund what the
			// cancellation granted, the shares already reflect the rest
			res.RefundAmount = split.RefundAmount(res.TotalPrice, res.RefundRate)
			res.RefundStatus = models.RefundPending
			if res.RefundAmount == 0 {
				res.RefundStatus = models.RefundSkipped
			}
		}
		return s.Reservations.Save(ctx, tx, res)
	})
	if err != nil || !open {
		return false, err
	}
	if releaseErr != nil {
		return false, gatewayError(releaseErr)
	}

	s.log(res).WithFields(logrus.Fields{
		"payment_status": res.PaymentStatus,
		"caution_status": res.CautionStatus,
		"refund_status":  res.RefundStatus,
	}).Info("open holds settled")
	return true, nil
}

// issue refunds res.RefundAmount on the captured charge and records the
// outcome. The gateway returns an existing refund instead of creating a
// second one, so this is safe to repeat.
func (s *cancellationService) issue(ctx context.Context, res *models.Reservation) (bool, error) {
	refund, err := s.Gateway.Refund(ctx, res.TransactionRef, res.RefundAmount)
	outcome := models.RefundIssued
	switch {
	case err == nil:
		if refund.Existing {
			s.log(res).WithField("refund_id", refund.ID).Info("refund already present on charge")
		}
	case isTransient(err):
		return false, gatewayError(err)
	case isStateConflict(err):
		s.warnConsistency(res, err, "charge cannot be refunded, refund skipped")
		outcome = models.RefundSkipped
	default:
		return false, gatewayError(err)
	}

	err = s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.Reservations.FindByIDForUpdate(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		if locked.RefundStatus != models.RefundPending {
			return nil
		}
		locked.RefundStatus = outcome
		if err := s.Reservations.Save(ctx, tx, locked); err != nil {
			return err
		}
		*res = *locked
		return nil
	})
	if err != nil {
		s.warnConsistency(res, err, "refund sent but not recorded")
		return false, err
	}
	return outcome == models.RefundIssued, nil
}
