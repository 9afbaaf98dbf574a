// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized and rolled back by restoring a
// snapshot, which is enough for tests and single-node local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	"gorm.io/gorm"
)

type dayKey struct {
	listingID uint
	date      string
}

type Store struct {
	// txMu serializes transactions the way a row lock would.
	txMu sync.Mutex
	mu   sync.RWMutex

	listings     map[uint]models.Listing
	days         map[dayKey]models.AvailabilityDay
	reservations map[string]models.Reservation
	balances     map[string]models.PartyBalance
	reviews      map[uint]models.Review
	nextReviewID uint
}

func NewStore() *Store {
	return &Store{
		listings:     make(map[uint]models.Listing),
		days:         make(map[dayKey]models.AvailabilityDay),
		reservations: make(map[string]models.Reservation),
		balances:     make(map[string]models.PartyBalance),
		reviews:      make(map[uint]models.Review),
	}
}

var _ repository.Transactor = (*Store)(nil)

// Transaction runs fn with a nil tx. Every write made by fn is undone if
// it returns an error.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	listings     map[uint]models.Listing
	days         map[dayKey]models.AvailabilityDay
	reservations map[string]models.Reservation
	balances     map[string]models.PartyBalance
	reviews      map[uint]models.Review
	nextReviewID uint
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		listings:     copyMap(s.listings),
		days:         copyMap(s.days),
		reservations: copyMap(s.reservations),
		balances:     copyMap(s.balances),
		reviews:      copyMap(s.reviews),
		nextReviewID: s.nextReviewID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = snap.listings
	s.days = snap.days
	s.reservations = snap.reservations
	s.balances = snap.balances
	s.reviews = snap.reviews
	s.nextReviewID = snap.nextReviewID
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) Listings() repository.ListingRepository         { return &listingRepo{s: s} }
func (s *Store) Availability() repository.AvailabilityRepository { return &availabilityRepo{s: s} }
func (s *Store) Reservations() repository.ReservationRepository  { return &reservationRepo{s: s} }
func (s *Store) Profiles() repository.ProfileRepository         { return &profileRepo{s: s} }
func (s *Store) Reviews() repository.ReviewRepository           { return &reviewRepo{s: s} }

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func sameDay(a, b time.Time) bool {
	return dateKey(a) == dateKey(b)
}
