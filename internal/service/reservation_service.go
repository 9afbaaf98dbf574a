package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/saga"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/split"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateReservationInput struct {
	ListingID           uint
	GuestID             string
	CheckIn             time.Time
	CheckOut            time.Time
	GuestsCount         int
	AccommodationAmount int64
	TaxAmount           int64
	TotalPrice          int64
	TransactionRef      gateway.Ref
	CautionRef          gateway.Ref

	// Optional listing-specific refund deadlines. Both or neither.
	RefundDeadlineFull *time.Time
	RefundDeadlineZero *time.Time
}

type ReservationService interface {
	Create(ctx context.Context, in CreateReservationInput) (*models.Reservation, error)
	Get(ctx context.Context, id, callerID string) (*models.Reservation, error)
}

type reservationService struct {
	Dependencies
}

func NewReservationService(deps Dependencies) ReservationService {
	return &reservationService{Dependencies: deps}
}

func (s *reservationService) Create(ctx context.Context, in CreateReservationInput) (*models.Reservation, error) {
	in.CheckIn = split.CalendarDate(in.CheckIn, time.UTC)
	in.CheckOut = split.CalendarDate(in.CheckOut, time.UTC)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	listing, err := s.Listings.FindByID(ctx, in.ListingID)
	if err != nil {
		return nil, notFound("listing", err)
	}
	if err := checkAgainstListing(in, listing); err != nil {
		return nil, err
	}

	res := &models.Reservation{
		ID:                  uuid.NewString(),
		ListingID:           listing.ID,
		GuestID:             in.GuestID,
		HostID:              listing.HostID,
		ProprietorID:        listing.ProprietorID,
		CheckIn:             in.CheckIn,
		CheckOut:            in.CheckOut,
		GuestsCount:         in.GuestsCount,
		AccommodationAmount: in.AccommodationAmount,
		TaxAmount:           in.TaxAmount,
		PlatformFeeAmount:   split.PlatformFee(in.TotalPrice, in.AccommodationAmount, in.TaxAmount),
		TotalPrice:          in.TotalPrice,
		Currency:            listing.Currency,
		TransactionRef:      in.TransactionRef,
		CautionRef:          in.CautionRef,
		Status:              models.StatusPendingHost,
		PaymentStatus:       models.PaymentAuthorized,
		CautionStatus:       models.CautionNone,
		HostValidation:      models.HostPending,
		RefundStatus:        models.RefundNone,
		CreatedAt:           s.now(),
	}
	res.SetShares(split.Compute(res.AccommodationAmount, res.PlatformFeeAmount))

	deadlines := split.DefaultDeadlines(res.CheckIn, s.Location)
	if in.RefundDeadlineFull != nil && in.RefundDeadlineZero != nil {
		deadlines = split.NewDeadlines(*in.RefundDeadlineFull, *in.RefundDeadlineZero, s.Location)
	}
	res.RefundDeadlineFull = deadlines.Full
	res.RefundDeadlineZero = deadlines.Zero

	// Holds found backing another reservation belong to that reservation
	// and must not be released by this one's compensation.
	taken := make(map[gateway.Ref]bool)
	release := func(ref gateway.Ref) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			if taken[ref] {
				return nil
			}
			return s.Gateway.CancelAuthorization(ctx, ref)
		}
	}

	flow := saga.New("create_reservation", s.Logger)
	if !in.CautionRef.IsZero() {
		flow.Add(saga.Step{
			Name: "verify_caution",
			Do: func(ctx context.Context) error {
				if err := s.verifyHold(ctx, in.CautionRef, 0, ""); err != nil {
					return err
				}
				res.CautionStatus = models.CautionAuthorized
				return nil
			},
			Compensate: release(in.CautionRef),
		})
	}
	flow.Add(saga.Step{
		Name: "verify_authorization",
		Do: func(ctx context.Context) error {
			return s.verifyHold(ctx, in.TransactionRef, res.TotalPrice, res.Currency)
		},
		Compensate: release(in.TransactionRef),
	})
	flow.Add(saga.Step{
		Name: "persist",
		Do: func(ctx context.Context) error {
			return s.persist(ctx, res, taken)
		},
	})

	if err := flow.Run(ctx); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"listing_id": in.ListingID,
			"guest_id":   in.GuestID,
			"step":       saga.FailedStep(err),
		}).WithError(err).Info("reservation not created")
		return nil, err
	}

	s.log(res).Info("reservation created")
	s.Notifier.Send(ctx, notify.ReservationRequested, res.HostID, notify.Payload{
		"reservation_id": res.ID,
		"listing_id":     res.ListingID,
		"check_in":       res.CheckIn.Format(time.DateOnly),
		"check_out":      res.CheckOut.Format(time.DateOnly),
		"guests_count":   res.GuestsCount,
		"total_price":    res.TotalPrice,
	})
	return res, nil
}

func (s *reservationService) validate(in CreateReservationInput) error {
	switch {
	case in.ListingID == 0:
		return validationError("listing_id is required")
	case in.GuestID == "":
		return validationError("guest_id is required")
	case !in.CheckOut.After(in.CheckIn):
		return validationError("check_out must be after check_in")
	case in.CheckIn.Before(s.today()):
		return validationError("check_in is in the past")
	case in.GuestsCount < 1:
		return validationError("guests_count must be at least 1")
	case in.AccommodationAmount <= 0:
		return validationError("accommodation_amount must be positive")
	case in.TaxAmount < 0:
		return validationError("tax_amount must not be negative")
	case in.TotalPrice < in.AccommodationAmount+in.TaxAmount:
		return validationError("total_price is lower than accommodation plus tax")
	case in.TransactionRef.IsZero() || !in.TransactionRef.Kind.Valid():
		return validationError("transaction_ref is required")
	case !in.CautionRef.IsZero() && !in.CautionRef.Kind.Valid():
		return validationError("caution_ref has an unknown kind")
	case in.CautionRef == in.TransactionRef:
		return validationError("caution_ref must differ from transaction_ref")
	case (in.RefundDeadlineFull == nil) != (in.RefundDeadlineZero == nil):
		return validationError("refund deadlines must be given together")
	}
	if in.RefundDeadlineFull != nil {
		full, zero := split.CalendarDate(*in.RefundDeadlineFull, time.UTC), split.CalendarDate(*in.RefundDeadlineZero, time.UTC)
		if zero.Before(full) || in.CheckIn.Before(zero) {
			return validationError("refund deadlines must satisfy full <= zero <= check_in")
		}
	}
	return nil
}

func checkAgainstListing(in CreateReservationInput, listing *models.Listing) error {
	if in.GuestID == listing.HostID || in.GuestID == listing.ProprietorID {
		return validationError("a listing cannot be booked by its own host or proprietor")
	}
	if listing.MaxGuests > 0 && in.GuestsCount > listing.MaxGuests {
		return validationError("listing accepts at most %d guests", listing.MaxGuests)
	}
	nights := split.Nights(in.CheckIn, in.CheckOut)
	if want := split.Accommodation(listing.NightlyRate, nights); listing.NightlyRate > 0 && in.AccommodationAmount != want {
		return validationError("accommodation_amount %d does not match %d nights at %d", in.AccommodationAmount, nights, listing.NightlyRate)
	}
	return nil
}

// verifyHold checks that a client-side authorization still reserves funds,
// and, when minAmount or currency are set, that it covers the stay.
func (s *reservationService) verifyHold(ctx context.Context, ref gateway.Ref, minAmount int64, currency string) error {
	hold, err := s.Gateway.Inspect(ctx, ref)
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownRef) {
			return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
		}
		return gatewayError(err)
	}
	switch {
	case hold.Status != gateway.StatusRequiresCapture && hold.Status != gateway.StatusSucceeded:
		return fmt.Errorf("%w: hold %s is %s", ErrPaymentDeclined, ref, hold.Status)
	case currency != "" && !strings.EqualFold(hold.Currency, currency):
		return fmt.Errorf("%w: hold %s is in %s, listing charges %s", ErrPaymentDeclined, ref, hold.Currency, currency)
	case hold.Amount < minAmount:
		return fmt.Errorf("%w: hold %s of %d does not cover total %d", ErrPaymentDeclined, ref, hold.Amount, minAmount)
	}
	return nil
}

func (s *reservationService) persist(ctx context.Context, res *models.Reservation, taken map[gateway.Ref]bool) error {
	return s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		// 1. Lock the listing row, serializes bookings of the same listing
		if _, err := s.Listings.FindByIDForUpdate(ctx, tx, res.ListingID); err != nil {
			return notFound("listing", err)
		}

		// 2. One hold backs one reservation
		for _, ref := range []gateway.Ref{res.TransactionRef, res.CautionRef} {
			if ref.IsZero() {
				continue
			}
			inUse, err := s.Reservations.PaymentRefInUse(ctx, tx, ref)
			if err != nil {
				return err
			}
			if inUse {
				taken[ref] = true
				return validationError("payment hold %s already backs another reservation", ref)
			}
		}

		// 3. Reject overlapping stays
		booked, err := s.Availability.FindBookedInRange(ctx, tx, res.ListingID, res.CheckIn, res.CheckOut)
		if err != nil {
			return err
		}
		if len(booked) > 0 {
			return fmt.Errorf("%w: %s is already booked", ErrDatesUnavailable, booked[0].Date.Format(time.DateOnly))
		}

		// 4. Block the calendar
		if err := s.Availability.BlockRange(ctx, tx, res.ListingID, res.CheckIn, res.CheckOut, res.ID); err != nil {
			if errors.Is(err, repository.ErrRangeBooked) {
				return fmt.Errorf("%w: %w", ErrDatesUnavailable, err)
			}
			return err
		}

		// 5. Insert the reservation. A unique violation here means a
		// concurrent request claimed one of the holds after step 2.
		if err := s.Reservations.Create(ctx, tx, res); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				taken[res.TransactionRef] = true
				taken[res.CautionRef] = true
				return validationError("payment hold already backs another reservation")
			}
			return err
		}
		return nil
	})
}

func (s *reservationService) Get(ctx context.Context, id, callerID string) (*models.Reservation, error) {
	res, err := s.Reservations.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("reservation", err)
	}
	if callerID != res.GuestID && callerID != res.HostID && callerID != res.ProprietorID {
		return nil, ErrAuthorization
	}
	return res, nil
}
