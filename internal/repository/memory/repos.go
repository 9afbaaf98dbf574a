package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"gorm.io/gorm"
)

type listingRepo struct{ s *Store }

func (r *listingRepo) FindByID(ctx context.Context, id uint) (*models.Listing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (r *listingRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Listing, error) {
	return r.FindByID(ctx, id)
}

func (r *listingRepo) Upsert(ctx context.Context, listing *models.Listing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	if existing, ok := r.s.listings[listing.ID]; ok {
		listing.CreatedAt = existing.CreatedAt
	} else if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now
	r.s.listings[listing.ID] = *listing
	return nil
}

type availabilityRepo struct{ s *Store }

func (r *availabilityRepo) BlockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	days := repository.Days(start, end)
	for _, d := range days {
		day, ok := r.s.days[dayKey{listingID, dateKey(d)}]
		if ok && day.Booked && (day.ReservationID == nil || *day.ReservationID != reservationID) {
			return repository.ErrRangeBooked
		}
	}
	now := time.Now()
	for _, d := range days {
		id := reservationID
		r.s.days[dayKey{listingID, dateKey(d)}] = models.AvailabilityDay{
			ListingID: listingID, Date: d, Booked: true, ReservationID: &id, UpdatedAt: now,
		}
	}
	return nil
}

func (r *availabilityRepo) UnblockRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time, reservationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, d := range repository.Days(start, end) {
		key := dayKey{listingID, dateKey(d)}
		if day, ok := r.s.days[key]; ok && day.ReservationID != nil && *day.ReservationID != reservationID {
			continue
		}
		r.s.days[key] = models.AvailabilityDay{ListingID: listingID, Date: d, Booked: false, UpdatedAt: now}
	}
	return nil
}

func (r *availabilityRepo) FindBookedInRange(ctx context.Context, tx *gorm.DB, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error) {
	days, _ := r.ListRange(ctx, listingID, start, end)
	booked := days[:0]
	for _, d := range days {
		if d.Booked {
			booked = append(booked, d)
		}
	}
	return booked, nil
}

func (r *availabilityRepo) ListRange(ctx context.Context, listingID uint, start, end time.Time) ([]models.AvailabilityDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.AvailabilityDay
	for _, d := range repository.Days(start, end) {
		if day, ok := r.s.days[dayKey{listingID, dateKey(d)}]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

type reservationRepo struct{ s *Store }

func (r *reservationRepo) Create(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[reservation.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range r.s.reservations {
		if existing.TransactionRef == reservation.TransactionRef ||
			(!reservation.CautionRef.IsZero() && existing.CautionRef == reservation.CautionRef) {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	reservation.UpdatedAt = now
	r.s.reservations[reservation.ID] = *reservation
	return nil
}

func (r *reservationRepo) Save(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reservation.UpdatedAt = time.Now()
	r.s.reservations[reservation.ID] = *reservation
	return nil
}

func (r *reservationRepo) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &res, nil
}

func (r *reservationRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Reservation, error) {
	return r.FindByID(ctx, id)
}

func (r *reservationRepo) PaymentRefInUse(ctx context.Context, tx *gorm.DB, ref gateway.Ref) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, res := range r.s.reservations {
		if res.TransactionRef == ref || res.CautionRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r *reservationRepo) filter(keep func(models.Reservation) bool, less func(a, b models.Reservation) bool) []models.Reservation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Reservation
	for _, res := range r.s.reservations {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byCreatedAt(a, b models.Reservation) bool { return a.CreatedAt.Before(b.CreatedAt) }

func (r *reservationRepo) FindPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return r.filter(func(res models.Reservation) bool {
		return res.Status == models.StatusPendingHost && res.HostValidation == models.HostPending && res.CreatedAt.Before(cutoff)
	}, byCreatedAt), nil
}

func (r *reservationRepo) FindConfirmedCheckingOut(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	return r.filter(func(res models.Reservation) bool {
		return res.Status == models.StatusConfirmed && sameDay(res.CheckOut, day) && res.ReviewPromptSentAt == nil
	}, byCreatedAt), nil
}

func (r *reservationRepo) MarkReviewPromptSent(ctx context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok || res.ReviewPromptSentAt != nil {
		return false, nil
	}
	res.ReviewPromptSentAt = &at
	r.s.reservations[id] = res
	return true, nil
}

func (r *reservationRepo) FindPayoutDue(ctx context.Context, today time.Time) ([]models.Reservation, error) {
	cutoff := dateKey(today)
	return r.filter(func(res models.Reservation) bool {
		return res.PaymentStatus == models.PaymentPaid && !res.BalancesAllocated &&
			dateKey(res.CheckOut) < cutoff && res.RefundStatus != models.RefundPending
	}, func(a, b models.Reservation) bool { return a.CheckOut.Before(b.CheckOut) }), nil
}

func (r *reservationRepo) ClaimBalanceAllocation(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok || res.BalancesAllocated {
		return false, nil
	}
	res.BalancesAllocated = true
	r.s.reservations[id] = res
	return true, nil
}

func (r *reservationRepo) FindCancelledWithOpenHolds(ctx context.Context) ([]models.Reservation, error) {
	return r.filter(func(res models.Reservation) bool {
		return res.Status == models.StatusCancelled &&
			(res.PaymentStatus == models.PaymentAuthorized || res.CautionStatus == models.CautionAuthorized)
	}, byCreatedAt), nil
}

func (r *reservationRepo) FindRefundsPending(ctx context.Context) ([]models.Reservation, error) {
	return r.filter(func(res models.Reservation) bool {
		return res.RefundStatus == models.RefundPending
	}, byCreatedAt), nil
}

type profileRepo struct{ s *Store }

func (r *profileRepo) Credit(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.balances[userID]
	b.UserID = userID
	b.TotalEarnings += amount
	b.PayableBalance += amount
	b.UpdatedAt = time.Now()
	r.s.balances[userID] = b
	return nil
}

func (r *profileRepo) FindBalance(ctx context.Context, userID string) (*models.PartyBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.balances[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

type reviewRepo struct{ s *Store }

func (r *reviewRepo) Create(ctx context.Context, tx *gorm.DB, review *models.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.reviews {
		if existing.ReservationID == review.ReservationID && existing.AuthorRole == review.AuthorRole {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextReviewID++
	review.ID = r.s.nextReviewID
	r.s.reviews[review.ID] = *review
	return nil
}

func (r *reviewRepo) FindByReservation(ctx context.Context, tx *gorm.DB, reservationID string) ([]models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Review
	for _, rv := range r.s.reviews {
		if rv.ReservationID == reservationID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reviewRepo) PublishForReservation(ctx context.Context, tx *gorm.DB, reservationID string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, rv := range r.s.reviews {
		if rv.ReservationID == reservationID && !rv.Published {
			rv.Published = true
			rv.PublishedAt = &at
			r.s.reviews[id] = rv
			n++
		}
	}
	return n, nil
}

func (r *reviewRepo) FindUnpublishedCheckoutBefore(ctx context.Context, cutoff time.Time) ([]models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Review
	for _, rv := range r.s.reviews {
		res, ok := r.s.reservations[rv.ReservationID]
		if !rv.Published && ok && res.CheckOut.Before(cutoff) {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
