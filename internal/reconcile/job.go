// Package reconcile resolves the time-driven transitions of reservations.
// Every duty filters on a guard column, so a run may overlap another run or
// follow a run that failed halfway.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/split"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultHostResponseWindow = 48 * time.Hour

type AutoRejecter interface {
	AutoReject(ctx context.Context, reservationID string, cutoff time.Time) (bool, error)
}

type RefundIssuer interface {
	IssuePendingRefund(ctx context.Context, reservationID string) (bool, error)
}

type HoldReleaser interface {
	ReleaseOpenHolds(ctx context.Context, reservationID string) (bool, error)
}

type ReviewPublisher interface {
	PublishClosedWindows(ctx context.Context, now time.Time) (int, error)
}

type Config struct {
	HostResponseWindow time.Duration
	Location           *time.Location
}

type Summary struct {
	AutoRejected     int `json:"auto_rejected"`
	HoldsReleased    int `json:"holds_released"`
	ReviewPrompts    int `json:"review_prompts"`
	ReviewsPublished int `json:"reviews_published"`
	PayoutsAllocated int `json:"payouts_allocated"`
	RefundsIssued    int `json:"refunds_issued"`
	Failures         int `json:"failures"`
}

type Job struct {
	cfg          Config
	tx           repository.Transactor
	reservations repository.ReservationRepository
	profiles     repository.ProfileRepository
	gateway      gateway.Gateway
	notifier     notify.Notifier
	rejecter     AutoRejecter
	refunds      RefundIssuer
	holds        HoldReleaser
	reviews      ReviewPublisher
	logger       *logrus.Logger
}

type Deps struct {
	Tx           repository.Transactor
	Reservations repository.ReservationRepository
	Profiles     repository.ProfileRepository
	Gateway      gateway.Gateway
	Notifier     notify.Notifier
	Rejecter     AutoRejecter
	Refunds      RefundIssuer
	Holds        HoldReleaser
	Reviews      ReviewPublisher
	Logger       *logrus.Logger
}

func NewJob(cfg Config, d Deps) *Job {
	if cfg.HostResponseWindow <= 0 {
		cfg.HostResponseWindow = DefaultHostResponseWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Job{
		cfg:          cfg,
		tx:           d.Tx,
		reservations: d.Reservations,
		profiles:     d.Profiles,
		gateway:      d.Gateway,
		notifier:     d.Notifier,
		rejecter:     d.Rejecter,
		refunds:      d.Refunds,
		holds:        d.Holds,
		reviews:      d.Reviews,
		logger:       d.Logger,
	}
}

// Run executes every duty once. A failing reservation is logged and counted
// and never stops the batch; the returned error only reports duties that
// could not list their work.
func (j *Job) Run(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	start := time.Now()

	errs := []error{
		j.autoReject(ctx, now, &sum),
		j.releaseHolds(ctx, &sum),
		j.reviewPrompts(ctx, now, &sum),
		j.publishReviews(ctx, now, &sum),
		j.issueRefunds(ctx, &sum),
		j.allocatePayouts(ctx, now, &sum),
	}

	j.logger.WithFields(logrus.Fields{
		"auto_rejected":     sum.AutoRejected,
		"holds_released":    sum.HoldsReleased,
		"review_prompts":    sum.ReviewPrompts,
		"reviews_published": sum.ReviewsPublished,
		"payouts_allocated": sum.PayoutsAllocated,
		"refunds_issued":    sum.RefundsIssued,
		"failures":          sum.Failures,
		"duration_ms":       time.Since(start).Milliseconds(),
	}).Info("reconciliation finished")
	return sum, errors.Join(errs...)
}

func (j *Job) failed(sum *Summary, duty, reservationID string, err error) {
	sum.Failures++
	j.logger.WithFields(logrus.Fields{
		"duty":           duty,
		"reservation_id": reservationID,
	}).WithError(err).Error("reconciliation item failed")
}

// autoReject rejects reservations the host did not answer in time.
func (j *Job) autoReject(ctx context.Context, now time.Time, sum *Summary) error {
	cutoff := now.Add(-j.cfg.HostResponseWindow)
	pending, err := j.reservations.FindPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("auto-reject: %w", err)
	}
	for _, res := range pending {
		done, err := j.rejecter.AutoReject(ctx, res.ID, cutoff)
		if err != nil {
			j.failed(sum, "auto_reject", res.ID, err)
			continue
		}
		if done {
			sum.AutoRejected++
		}
	}
	return nil
}

// releaseHolds retries the holds a cancellation left authorized, e.g. after
// a transient gateway failure. It runs before refunds so a hold found
// captured gets its refund in the same run.
func (j *Job) releaseHolds(ctx context.Context, sum *Summary) error {
	open, err := j.reservations.FindCancelledWithOpenHolds(ctx)
	if err != nil {
		return fmt.Errorf("release holds: %w", err)
	}
	for _, res := range open {
		released, err := j.holds.ReleaseOpenHolds(ctx, res.ID)
		if err != nil {
			j.failed(sum, "release_holds", res.ID, err)
			continue
		}
		if released {
			sum.HoldsReleased++
		}
	}
	return nil
}

// reviewPrompts asks guest and host for a review on checkout day. The
// prompt flag is claimed before sending so a prompt goes out at most once.
func (j *Job) reviewPrompts(ctx context.Context, now time.Time, sum *Summary) error {
	today := split.CalendarDate(now, j.cfg.Location)
	due, err := j.reservations.FindConfirmedCheckingOut(ctx, today)
	if err != nil {
		return fmt.Errorf("review prompts: %w", err)
	}
	for _, res := range due {
		claimed, err := j.reservations.MarkReviewPromptSent(ctx, res.ID, now)
		if err != nil {
			j.failed(sum, "review_prompt", res.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		payload := notify.Payload{"reservation_id": res.ID, "check_out": res.CheckOut.Format(time.DateOnly)}
		j.notifier.Send(ctx, notify.ReviewRequested, res.GuestID, payload)
		j.notifier.Send(ctx, notify.ReviewRequested, res.HostID, payload)
		sum.ReviewPrompts++
	}
	return nil
}

func (j *Job) publishReviews(ctx context.Context, now time.Time, sum *Summary) error {
	n, err := j.reviews.PublishClosedWindows(ctx, now)
	if err != nil {
		return fmt.Errorf("publish reviews: %w", err)
	}
	sum.ReviewsPublished += n
	return nil
}

func (j *Job) issueRefunds(ctx context.Context, sum *Summary) error {
	pending, err := j.reservations.FindRefundsPending(ctx)
	if err != nil {
		return fmt.Errorf("refunds: %w", err)
	}
	for _, res := range pending {
		issued, err := j.refunds.IssuePendingRefund(ctx, res.ID)
		if err != nil {
			j.failed(sum, "refund", res.ID, err)
			continue
		}
		if issued {
			sum.RefundsIssued++
		}
	}
	return nil
}

// allocatePayouts credits the proprietor and host shares of finished,
// captured stays. Cancelled stays with a residual share are paid out too.
func (j *Job) allocatePayouts(ctx context.Context, now time.Time, sum *Summary) error {
	today := split.CalendarDate(now, j.cfg.Location)
	due, err := j.reservations.FindPayoutDue(ctx, today)
	if err != nil {
		return fmt.Errorf("payouts: %w", err)
	}
	for _, res := range due {
		allocated, err := j.allocate(ctx, res.ID, today)
		if err != nil {
			j.failed(sum, "payout", res.ID, err)
			continue
		}
		if allocated {
			sum.PayoutsAllocated++
		}
	}
	return nil
}

func (j *Job) allocate(ctx context.Context, reservationID string, today time.Time) (bool, error) {
	allocated := false
	err := j.tx.Transaction(ctx, func(tx *gorm.DB) error {
		res, err := j.reservations.FindByIDForUpdate(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.BalancesAllocated || !res.IsPaid() || res.RefundStatus == models.RefundPending || !res.CheckOut.Before(today) {
			return nil
		}

		claimed, err := j.reservations.ClaimBalanceAllocation(ctx, tx, res.ID)
		if err != nil || !claimed {
			return err
		}

		if res.ProprietorShare > 0 {
			if err := j.profiles.Credit(ctx, tx, res.ProprietorID, res.ProprietorShare); err != nil {
				return err
			}
		}
		if res.MainTenantShare > 0 {
			if err := j.profiles.Credit(ctx, tx, res.HostID, res.MainTenantShare); err != nil {
				return err
			}
		}

		res.BalancesAllocated = true
		// no damage claim was raised before payout, the caution goes back
		if res.CautionStatus == models.CautionAuthorized {
			if err := j.gateway.CancelAuthorization(ctx, res.CautionRef); err != nil {
				j.logger.WithFields(logrus.Fields{
					"reservation_id":      res.ID,
					"consistency_warning": true,
				}).WithError(err).Warn("caution hold not released")
			} else {
				res.CautionStatus = models.CautionReleased
			}
		}
		if err := j.reservations.Save(ctx, tx, res); err != nil {
			return err
		}
		allocated = true
		return nil
	})
	return allocated, err
}
