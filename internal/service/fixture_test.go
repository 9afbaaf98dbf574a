package service

import (
	"context"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository/memory"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const (
	testListingID  = uint(1)
	testHost       = "host-1"
	testProprietor = "owner-1"
	testGuest      = "guest-1"
	nightlyRate    = int64(10000)
)

type fixture struct {
	store *memory.Store
	sim   *gateway.Simulated
	notes *notify.Recorder
	now   time.Time
	deps  Dependencies

	payments      PaymentService
	reservations  ReservationService
	decisions     DecisionService
	cancellations CancellationService
	reviews       ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()

	f := &fixture{
		store: memory.NewStore(),
		sim:   gateway.NewSimulated(),
		notes: &notify.Recorder{},
		now:   time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC),
	}
	gw := gateway.NewAdapter(
		map[gateway.RefKind]gateway.Processor{gateway.KindSimulated: f.sim},
		gateway.AdapterConfig{
			Currency:          "eur",
			CautionHoldAmount: 30000,
			Retry:             gateway.RetryPolicy{MaxAttempts: 3},
		},
		logger,
	)
	f.deps = Dependencies{
		Tx:           f.store,
		Listings:     f.store.Listings(),
		Availability: f.store.Availability(),
		Reservations: f.store.Reservations(),
		Reviews:      f.store.Reviews(),
		Gateway:      gw,
		Notifier:     f.notes,
		Logger:       logger,
		Location:     time.UTC,
		Now:          func() time.Time { return f.now },
	}
	f.payments = NewPaymentService(f.deps)
	f.reservations = NewReservationService(f.deps)
	f.decisions = NewDecisionService(f.deps)
	f.cancellations = NewCancellationService(f.deps)
	f.reviews = NewReviewService(f.deps, DefaultReviewWindowDays)

	require.NoError(t, f.store.Listings().Upsert(context.Background(), &models.Listing{
		ID:           testListingID,
		ProprietorID: testProprietor,
		HostID:       testHost,
		NightlyRate:  nightlyRate,
		Currency:     "eur",
		MaxGuests:    4,
	}))
	return f
}

func date(month time.Month, day int) time.Time {
	return time.Date(2026, month, day, 0, 0, 0, 0, time.UTC)
}

// authorize places simulated holds for a stay of the given nights.
func (f *fixture) authorize(t *testing.T, nights int, withCaution bool) *AuthorizeResult {
	t.Helper()
	return f.authorizeAmount(t, nightlyRate*int64(nights), withCaution)
}

func (f *fixture) authorizeAmount(t *testing.T, amount int64, withCaution bool) *AuthorizeResult {
	t.Helper()
	holds, err := f.payments.Authorize(context.Background(), AuthorizeInput{
		Kind:          gateway.KindSimulated,
		Amount:        amount,
		PaymentMethod: "pm_card_visa",
		WithCaution:   withCaution,
	})
	require.NoError(t, err)
	return holds
}

func (f *fixture) input(checkIn time.Time, nights int, holds *AuthorizeResult) CreateReservationInput {
	accommodation := nightlyRate * int64(nights)
	return CreateReservationInput{
		ListingID:           testListingID,
		GuestID:             testGuest,
		CheckIn:             checkIn,
		CheckOut:            checkIn.AddDate(0, 0, nights),
		GuestsCount:         2,
		AccommodationAmount: accommodation,
		TotalPrice:          accommodation,
		TransactionRef:      holds.TransactionRef,
		CautionRef:          holds.CautionRef,
	}
}

// book creates the Scenario A reservation: 2 nights at 100.00, no fee, no tax.
func (f *fixture) book(t *testing.T) *models.Reservation {
	t.Helper()
	holds := f.authorize(t, 2, true)
	res, err := f.reservations.Create(context.Background(), f.input(date(11, 20), 2, holds))
	require.NoError(t, err)
	return res
}

func (f *fixture) accepted(t *testing.T) *models.Reservation {
	t.Helper()
	res := f.book(t)
	res, err := f.decisions.Accept(context.Background(), res.ID, testHost)
	require.NoError(t, err)
	return res
}

func (f *fixture) reload(t *testing.T, id string) *models.Reservation {
	t.Helper()
	res, err := f.store.Reservations().FindByID(context.Background(), id)
	require.NoError(t, err)
	return res
}

func (f *fixture) holdStatus(t *testing.T, ref gateway.Ref) gateway.Status {
	t.Helper()
	hold, err := f.sim.Retrieve(context.Background(), ref.ID)
	require.NoError(t, err)
	return hold.Status
}

func (f *fixture) bookedDays(t *testing.T, res *models.Reservation) int {
	t.Helper()
	days, err := f.store.Availability().FindBookedInRange(context.Background(), nil, res.ListingID, res.CheckIn, res.CheckOut)
	require.NoError(t, err)
	return len(days)
}
