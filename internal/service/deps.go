package service

import (
	"context"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/split"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies are shared by every workflow service.
type Dependencies struct {
	Tx           repository.Transactor
	Listings     repository.ListingRepository
	Availability repository.AvailabilityRepository
	Reservations repository.ReservationRepository
	Reviews      repository.ReviewRepository
	Gateway      gateway.Gateway
	Notifier     notify.Notifier
	Logger       *logrus.Logger

	// Location decides calendar days for deadlines and windows.
	Location *time.Location
	Now      func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Dependencies) today() time.Time {
	return d.todayAt(d.now())
}

func (d Dependencies) todayAt(t time.Time) time.Time {
	return split.CalendarDate(t, d.Location)
}

func (d Dependencies) log(res *models.Reservation) *logrus.Entry {
	return d.Logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"listing_id":     res.ListingID,
	})
}

// warnConsistency logs a secondary failure that does not undo the primary
// transition.
func (d Dependencies) warnConsistency(res *models.Reservation, err error, msg string) {
	d.log(res).WithField("consistency_warning", true).WithError(err).Warn(msg)
}

// releaseCaution releases an authorized caution hold, best effort. A
// failure leaves caution_status authorized for the reconciliation job.
func (d Dependencies) releaseCaution(ctx context.Context, res *models.Reservation) error {
	if res.CautionStatus != models.CautionAuthorized || res.CautionRef.IsZero() {
		return nil
	}
	if err := d.Gateway.CancelAuthorization(ctx, res.CautionRef); err != nil {
		d.warnConsistency(res, err, "caution hold not released")
		return err
	}
	res.CautionStatus = models.CautionReleased
	return nil
}

// releasePayment cancels the primary hold of a reservation that was never
// captured. A hold the processor already captured is recorded as paid and
// queued for a refund. Any other failure leaves payment_status authorized
// for the reconciliation job.
func (d Dependencies) releasePayment(ctx context.Context, res *models.Reservation) error {
	if res.PaymentStatus != models.PaymentAuthorized {
		return nil
	}
	err := d.Gateway.CancelAuthorization(ctx, res.TransactionRef)
	switch {
	case err == nil:
		res.PaymentStatus = models.PaymentCanceled
		return nil
	case isStateConflict(err):
		d.warnConsistency(res, err, "hold was captured at the processor, queueing refund")
		res.PaymentStatus = models.PaymentPaid
		return nil
	default:
		d.warnConsistency(res, err, "authorization not cancelled")
		return err
	}
}

func (d Dependencies) unblock(ctx context.Context, tx *gorm.DB, res *models.Reservation) error {
	return d.Availability.UnblockRange(ctx, tx, res.ListingID, res.CheckIn, res.CheckOut, res.ID)
}

// queueFullRefund zeroes the shares of a reservation that returns all money
// to the guest and, if money was captured, leaves the refund for the
// reconciliation job.
func queueFullRefund(res *models.Reservation) {
	res.RefundRate = split.RefundFull
	res.SetShares(split.Shares{})
	if res.IsPaid() {
		res.RefundAmount = res.TotalPrice
		res.RefundStatus = models.RefundPending
		return
	}
	res.RefundAmount = 0
	res.RefundStatus = models.RefundNone
}
