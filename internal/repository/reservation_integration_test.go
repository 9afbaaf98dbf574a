//go:build integration

package repository_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/service"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var listingIDCounter uint = 0

func createTestListing(t *testing.T, rate int64) *models.Listing {
	t.Helper()
	listingIDCounter++
	listing := &models.Listing{
		ID:           listingIDCounter,
		ProprietorID: "owner-1",
		HostID:       "host-1",
		NightlyRate:  rate,
		Currency:     "eur",
		MaxGuests:    4,
	}
	require.NoError(t, repository.NewListingRepository(testDB).Upsert(t.Context(), listing))
	return listing
}

func date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type harness struct {
	sim          *gateway.Simulated
	gw           gateway.Gateway
	reservations service.ReservationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sim := gateway.NewSimulated()
	gw := gateway.NewAdapter(map[gateway.RefKind]gateway.Processor{gateway.KindSimulated: sim}, gateway.AdapterConfig{
		Currency:          "eur",
		CautionHoldAmount: 30000,
	}, logger)
	deps := service.Dependencies{
		Tx:           repository.NewTransactor(testDB),
		Listings:     repository.NewListingRepository(testDB),
		Availability: repository.NewAvailabilityRepository(testDB),
		Reservations: repository.NewReservationRepository(testDB),
		Reviews:      repository.NewReviewRepository(testDB),
		Gateway:      gw,
		Notifier:     &notify.Recorder{},
		Logger:       logger,
		Location:     time.UTC,
	}
	return &harness{sim: sim, gw: gw, reservations: service.NewReservationService(deps)}
}

func (h *harness) book(t *testing.T, listing *models.Listing, guestID string, checkIn time.Time, nights int) (*models.Reservation, error) {
	t.Helper()
	accommodation := listing.NightlyRate * int64(nights)
	auth, err := h.gw.Authorize(t.Context(), gateway.KindSimulated, accommodation+2000, "eur", "pm_card_visa")
	require.NoError(t, err)
	return h.reservations.Create(t.Context(), service.CreateReservationInput{
		ListingID:           listing.ID,
		GuestID:             guestID,
		CheckIn:             checkIn,
		CheckOut:            checkIn.AddDate(0, 0, nights),
		GuestsCount:         2,
		AccommodationAmount: accommodation,
		TotalPrice:          accommodation + 2000,
		TransactionRef:      auth.Ref,
	})
}

// Test: 10 guests request overlapping stays concurrently → exactly one reservation
func TestConcurrentOverlappingReservations(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 10000)
	h := newHarness(t)
	checkIn := date(time.Now().AddDate(0, 1, 0))

	attempts := 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, unavailable := 0, 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(idx int) {
			defer wg.Done()
			// every stay covers checkIn+2
			_, err := h.book(t, listing, fmt.Sprintf("guest-%02d", idx), checkIn.AddDate(0, 0, idx%3), 3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, service.ErrDatesUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one overlapping stay must be accepted")
	assert.Equal(t, attempts-1, unavailable)

	var count int64
	testDB.Model(&models.Reservation{}).Where("listing_id = ?", listing.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// losing attempts released their holds
	assert.Equal(t, attempts-1, h.sim.Calls("cancel"))
}

// Test: back-to-back stays share the turnover day
func TestAdjacentReservations(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 10000)
	h := newHarness(t)
	checkIn := date(time.Now().AddDate(0, 1, 0))

	_, err := h.book(t, listing, "guest-1", checkIn, 2)
	require.NoError(t, err)
	_, err = h.book(t, listing, "guest-2", checkIn.AddDate(0, 0, 2), 2)
	require.NoError(t, err)

	var booked int64
	testDB.Model(&models.AvailabilityDay{}).Where("listing_id = ? AND booked = ?", listing.ID, true).Count(&booked)
	assert.Equal(t, int64(4), booked)
}

func TestBlockRange_RejectsHeldDay(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 0)
	repo := repository.NewAvailabilityRepository(testDB)
	start := date(time.Now().AddDate(0, 2, 0))

	require.NoError(t, testDB.Transaction(func(tx *gorm.DB) error {
		return repo.BlockRange(t.Context(), tx, listing.ID, start, start.AddDate(0, 0, 3), "res-a")
	}))

	err := testDB.Transaction(func(tx *gorm.DB) error {
		return repo.BlockRange(t.Context(), tx, listing.ID, start.AddDate(0, 0, 2), start.AddDate(0, 0, 5), "res-b")
	})
	assert.ErrorIs(t, err, repository.ErrRangeBooked)

	// the failed transaction must not leave a partial block behind
	days, err := repo.ListRange(t.Context(), listing.ID, start, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	for _, d := range days {
		if d.Booked {
			require.NotNil(t, d.ReservationID)
			assert.Equal(t, "res-a", *d.ReservationID)
		}
	}

	// unblocking with the wrong owner is a no-op
	require.NoError(t, testDB.Transaction(func(tx *gorm.DB) error {
		return repo.UnblockRange(t.Context(), tx, listing.ID, start, start.AddDate(0, 0, 3), "res-b")
	}))
	booked, err := repo.FindBookedInRange(t.Context(), testDB, listing.ID, start, start.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Len(t, booked, 3)

	require.NoError(t, testDB.Transaction(func(tx *gorm.DB) error {
		return repo.UnblockRange(t.Context(), tx, listing.ID, start, start.AddDate(0, 0, 3), "res-a")
	}))
	booked, err = repo.FindBookedInRange(t.Context(), testDB, listing.ID, start, start.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestClaimBalanceAllocation_Once(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 10000)
	h := newHarness(t)
	res, err := h.book(t, listing, "guest-1", date(time.Now().AddDate(0, 1, 0)), 2)
	require.NoError(t, err)

	repo := repository.NewReservationRepository(testDB)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func() {
			defer wg.Done()
			var won bool
			err := testDB.Transaction(func(tx *gorm.DB) error {
				var err error
				won, err = repo.ClaimBalanceAllocation(t.Context(), tx, res.ID)
				return err
			})
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestProfileCredit_Accumulates(t *testing.T) {
	cleanTables()
	repo := repository.NewProfileRepository(testDB)

	for _, amount := range []int64{7760, 3880} {
		require.NoError(t, testDB.Transaction(func(tx *gorm.DB) error {
			return repo.Credit(t.Context(), tx, "owner-1", amount)
		}))
	}

	balance, err := repo.FindBalance(t.Context(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11640), balance.TotalEarnings)
	assert.Equal(t, int64(11640), balance.PayableBalance)

	_, err = repo.FindBalance(t.Context(), "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReviews_UniquePerRoleAndPublish(t *testing.T) {
	cleanTables()
	repo := repository.NewReviewRepository(testDB)
	reservationID := uuid.NewString()

	guest := &models.Review{ReservationID: reservationID, AuthorID: "guest-1", AuthorRole: models.ReviewerGuest, Rating: 5, SubmittedAt: time.Now()}
	require.NoError(t, repo.Create(t.Context(), testDB, guest))

	dup := &models.Review{ReservationID: reservationID, AuthorID: "guest-1", AuthorRole: models.ReviewerGuest, Rating: 1, SubmittedAt: time.Now()}
	assert.ErrorIs(t, repo.Create(t.Context(), testDB, dup), gorm.ErrDuplicatedKey)

	n, err := repo.PublishForReservation(t.Context(), testDB, reservationID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reviews, err := repo.FindByReservation(t.Context(), testDB, reservationID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.True(t, reviews[0].Published)
}

func TestReservationRefs_RoundTrip(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 10000)
	h := newHarness(t)
	res, err := h.book(t, listing, "guest-1", date(time.Now().AddDate(0, 1, 0)), 2)
	require.NoError(t, err)

	stored, err := repository.NewReservationRepository(testDB).FindByID(t.Context(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.TransactionRef, stored.TransactionRef)
	assert.Equal(t, gateway.KindSimulated, stored.TransactionRef.Kind)
	assert.True(t, stored.CautionRef.IsZero())
	assert.Equal(t, res.CheckIn, stored.CheckIn.UTC())
}

// Test: a payment hold cannot back two reservations, even when written directly
func TestTransactionRef_Unique(t *testing.T) {
	cleanTables()
	listing := createTestListing(t, 10000)
	h := newHarness(t)
	first, err := h.book(t, listing, "guest-1", date(time.Now().AddDate(0, 1, 0)), 2)
	require.NoError(t, err)

	repo := repository.NewReservationRepository(testDB)
	inUse, err := repo.PaymentRefInUse(t.Context(), testDB, first.TransactionRef)
	require.NoError(t, err)
	assert.True(t, inUse)

	copied := *first
	copied.ID = uuid.NewString()
	copied.CheckIn = first.CheckIn.AddDate(0, 0, 10)
	copied.CheckOut = first.CheckOut.AddDate(0, 0, 10)
	err = repo.Create(t.Context(), testDB, &copied)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	_, err = h.reservations.Create(t.Context(), service.CreateReservationInput{
		ListingID:           listing.ID,
		GuestID:             "guest-2",
		CheckIn:             copied.CheckIn,
		CheckOut:            copied.CheckOut,
		GuestsCount:         2,
		AccommodationAmount: first.AccommodationAmount,
		TotalPrice:          first.TotalPrice,
		TransactionRef:      first.TransactionRef,
	})
	assert.ErrorIs(t, err, service.ErrValidation)

	status, err := h.gw.Status(t.Context(), first.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusRequiresCapture, status)
}

// Test: simulated holds placed by one process are usable from another
func TestSimulatedIntents_SharedThroughDatabase(t *testing.T) {
	cleanTables()
	store := repository.NewSimulatedIntentRepository(testDB)
	server := gateway.NewSimulatedWithStore(store)
	batch := gateway.NewSimulatedWithStore(store)

	res, err := server.Authorize(t.Context(), 20000, "EUR", "pm_card_visa")
	require.NoError(t, err)

	require.NoError(t, batch.Capture(t.Context(), res.Ref.ID))
	_, err = batch.CreateRefund(t.Context(), res.Ref.ID, 5000, "refund-1")
	require.NoError(t, err)
	_, err = batch.CreateRefund(t.Context(), res.Ref.ID, 5000, "refund-1")
	require.NoError(t, err)

	hold, err := server.Retrieve(t.Context(), res.Ref.ID)
	require.NoError(t, err)
	assert.Equal(t, gateway.Hold{Status: gateway.StatusSucceeded, Amount: 20000, Currency: "eur"}, hold)

	refunds, err := server.ListRefunds(t.Context(), res.Ref.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(5000), refunds[0].Amount)

	err = batch.Cancel(t.Context(), res.Ref.ID)
	assert.ErrorIs(t, err, gateway.ErrStateConflict)

	_, err = server.Retrieve(t.Context(), "missing")
	assert.ErrorIs(t, err, gateway.ErrUnknownRef)
}
