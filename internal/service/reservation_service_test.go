package service

import (
	"context"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	res := f.book(t)

	assert.Equal(t, models.StatusPendingHost, res.Status)
	assert.Equal(t, models.HostPending, res.HostValidation)
	assert.Equal(t, models.PaymentAuthorized, res.PaymentStatus)
	assert.Equal(t, models.CautionAuthorized, res.CautionStatus)
	assert.Equal(t, testHost, res.HostID)
	assert.Equal(t, testProprietor, res.ProprietorID)

	// Scenario A split
	assert.Equal(t, int64(20000), res.AccommodationAmount)
	assert.Equal(t, int64(11640), res.MainTenantShare)
	assert.Equal(t, int64(7760), res.ProprietorShare)
	assert.Equal(t, int64(600), res.PlatformShare)

	assert.Equal(t, time.Date(2026, 11, 14, 23, 59, 59, 999999999, time.UTC), res.RefundDeadlineFull)
	assert.Equal(t, 2, f.bookedDays(t, res))
	assert.Equal(t, []string{notify.ReservationRequested}, f.notes.To(testHost))
}

func TestCreate_PlatformFeeAndTax(t *testing.T) {
	f := newFixture(t)
	holds := f.authorizeAmount(t, 20000+1500+2000, false)
	in := f.input(date(11, 20), 2, holds)
	in.TaxAmount = 1500
	in.TotalPrice = 20000 + 1500 + 2000

	res, err := f.reservations.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.PlatformFeeAmount)
	assert.Equal(t, res.TotalPrice, res.AccommodationAmount+res.PlatformFeeAmount+res.TaxAmount)
	assert.Equal(t, int64(2600), res.PlatformShare)
	assert.Equal(t, models.CautionNone, res.CautionStatus)
}

func TestCreate_ValidationHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	holds := f.authorize(t, 2, false)

	tests := []struct {
		name   string
		mutate func(in *CreateReservationInput)
	}{
		{"missing guest", func(in *CreateReservationInput) { in.GuestID = "" }},
		{"empty range", func(in *CreateReservationInput) { in.CheckOut = in.CheckIn }},
		{"past check-in", func(in *CreateReservationInput) { in.CheckIn = date(10, 1); in.CheckOut = date(10, 3) }},
		{"no guests", func(in *CreateReservationInput) { in.GuestsCount = 0 }},
		{"total below accommodation", func(in *CreateReservationInput) { in.TotalPrice = 100 }},
		{"missing ref", func(in *CreateReservationInput) { in.TransactionRef = gateway.Ref{} }},
		{"unknown ref kind", func(in *CreateReservationInput) { in.TransactionRef.Kind = "paypal" }},
		{"too many guests", func(in *CreateReservationInput) { in.GuestsCount = 9 }},
		{"wrong accommodation", func(in *CreateReservationInput) { in.AccommodationAmount = 15000; in.TotalPrice = 15000 }},
		{"host books own listing", func(in *CreateReservationInput) { in.GuestID = testHost }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.sim.Calls("retrieve")
			in := f.input(date(11, 20), 2, holds)
			tt.mutate(&in)

			_, err := f.reservations.Create(context.Background(), in)

			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, before, f.sim.Calls("retrieve"))
		})
	}
	assert.Equal(t, gateway.StatusRequiresCapture, f.holdStatus(t, holds.TransactionRef))
}

func TestCreate_HoldMustCoverTotal(t *testing.T) {
	f := newFixture(t)
	holds := f.authorizeAmount(t, 1, true)

	_, err := f.reservations.Create(context.Background(), f.input(date(11, 20), 2, holds))

	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, 0, f.bookedDays(t, &models.Reservation{ListingID: testListingID, CheckIn: date(11, 20), CheckOut: date(11, 22)}))
	assert.Equal(t, gateway.StatusCanceled, f.holdStatus(t, holds.CautionRef))
}

func TestCreate_HoldCurrencyMustMatchListing(t *testing.T) {
	f := newFixture(t)
	holds, err := f.payments.Authorize(context.Background(), AuthorizeInput{
		Kind:          gateway.KindSimulated,
		Amount:        20000,
		Currency:      "usd",
		PaymentMethod: "pm_card_visa",
	})
	require.NoError(t, err)

	_, err = f.reservations.Create(context.Background(), f.input(date(11, 20), 2, holds))

	assert.ErrorIs(t, err, ErrPaymentDeclined)
}

func TestCreate_HoldBacksOnlyOneReservation(t *testing.T) {
	f := newFixture(t)
	first := f.book(t)

	in := f.input(date(11, 25), 2, &AuthorizeResult{TransactionRef: first.TransactionRef})
	in.GuestID = "guest-2"
	_, err := f.reservations.Create(context.Background(), in)

	assert.ErrorIs(t, err, ErrValidation)
	// the first reservation keeps its hold
	assert.Equal(t, gateway.StatusRequiresCapture, f.holdStatus(t, first.TransactionRef))
	assert.Equal(t, 2, f.bookedDays(t, first))

	_, err = f.decisions.Accept(context.Background(), first.ID, testHost)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sim.Calls("capture"))
}

func TestCreate_CautionHoldBacksOnlyOneReservation(t *testing.T) {
	f := newFixture(t)
	first := f.book(t)

	holds := f.authorize(t, 2, false)
	holds.CautionRef = first.CautionRef
	in := f.input(date(11, 25), 2, holds)
	in.GuestID = "guest-2"
	_, err := f.reservations.Create(context.Background(), in)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, gateway.StatusRequiresCapture, f.holdStatus(t, first.CautionRef))
	// this request's own primary hold is released
	assert.Equal(t, gateway.StatusCanceled, f.holdStatus(t, holds.TransactionRef))
}

func TestCreate_ListingNotFound(t *testing.T) {
	f := newFixture(t)
	holds := f.authorize(t, 2, false)
	in := f.input(date(11, 20), 2, holds)
	in.ListingID = 99

	_, err := f.reservations.Create(context.Background(), in)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_ExpiredHoldIsDeclined(t *testing.T) {
	f := newFixture(t)
	holds := f.authorize(t, 2, true)
	f.sim.SetStatus(holds.TransactionRef.ID, gateway.StatusExpired)

	_, err := f.reservations.Create(context.Background(), f.input(date(11, 20), 2, holds))

	assert.ErrorIs(t, err, ErrPaymentDeclined)
	// the caution hold verified first, so it is released again
	assert.Equal(t, gateway.StatusCanceled, f.holdStatus(t, holds.CautionRef))
	assert.Empty(t, f.notes.Sent())
}

func TestCreate_OverlapCompensatesHolds(t *testing.T) {
	f := newFixture(t)
	first := f.book(t)

	holds := f.authorize(t, 3, true)
	in := f.input(date(11, 21), 3, holds)
	in.GuestID = "guest-2"

	_, err := f.reservations.Create(context.Background(), in)

	assert.ErrorIs(t, err, ErrDatesUnavailable)
	assert.Equal(t, gateway.StatusCanceled, f.holdStatus(t, holds.TransactionRef))
	assert.Equal(t, gateway.StatusCanceled, f.holdStatus(t, holds.CautionRef))
	// first booking untouched
	assert.Equal(t, 2, f.bookedDays(t, first))
	assert.Equal(t, gateway.StatusRequiresCapture, f.holdStatus(t, first.TransactionRef))
}

func TestCreate_BackToBackStays(t *testing.T) {
	f := newFixture(t)
	f.book(t)

	holds := f.authorize(t, 2, false)
	in := f.input(date(11, 22), 2, holds)
	in.GuestID = "guest-2"

	_, err := f.reservations.Create(context.Background(), in)

	assert.NoError(t, err)
}

func TestCreate_AfterRejectDatesAreFree(t *testing.T) {
	f := newFixture(t)
	first := f.book(t)
	_, err := f.decisions.Reject(context.Background(), first.ID, testHost, "")
	require.NoError(t, err)

	holds := f.authorize(t, 2, false)
	in := f.input(date(11, 20), 2, holds)
	in.GuestID = "guest-2"

	_, err = f.reservations.Create(context.Background(), in)

	assert.NoError(t, err)
}

func TestGet_OnlyParties(t *testing.T) {
	f := newFixture(t)
	res := f.book(t)

	for _, caller := range []string{testGuest, testHost, testProprietor} {
		got, err := f.reservations.Get(context.Background(), res.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
	}

	_, err := f.reservations.Get(context.Background(), res.ID, "stranger")
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.reservations.Get(context.Background(), "missing", testGuest)
	assert.ErrorIs(t, err, ErrNotFound)
}
