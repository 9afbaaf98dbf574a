package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultReviewWindowDays = 14

type ReviewInput struct {
	ReservationID string
	AuthorID      string
	Rating        int
	Comment       string
}

// ReviewService collects the guest's and the host's review of a completed
// stay. A pair is published as soon as both sides are in; a lone review is
// published once the review window has closed.
type ReviewService interface {
	Submit(ctx context.Context, in ReviewInput) (*models.Review, error)
	PublishClosedWindows(ctx context.Context, now time.Time) (int, error)
}

type reviewService struct {
	Dependencies
	windowDays int
}

func NewReviewService(deps Dependencies, windowDays int) ReviewService {
	if windowDays <= 0 {
		windowDays = DefaultReviewWindowDays
	}
	return &reviewService{Dependencies: deps, windowDays: windowDays}
}

func (s *reviewService) Submit(ctx context.Context, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	if len(in.Comment) > 2000 {
		return nil, validationError("comment is too long")
	}

	res, err := s.Reservations.FindByID(ctx, in.ReservationID)
	if err != nil {
		return nil, notFound("reservation", err)
	}

	var role models.ReviewerRole
	switch in.AuthorID {
	case res.GuestID:
		role = models.ReviewerGuest
	case res.HostID:
		role = models.ReviewerHost
	default:
		return nil, ErrAuthorization
	}

	if res.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: only completed stays can be reviewed", ErrInvalidTransition)
	}
	today := s.today()
	if today.Before(res.CheckOut) {
		return nil, fmt.Errorf("%w: stay is not completed yet", ErrInvalidTransition)
	}
	if today.After(res.CheckOut.AddDate(0, 0, s.windowDays)) {
		return nil, fmt.Errorf("%w: review window closed", ErrInvalidTransition)
	}

	now := s.now()
	review := &models.Review{
		ReservationID: res.ID,
		AuthorID:      in.AuthorID,
		AuthorRole:    role,
		Rating:        in.Rating,
		Comment:       in.Comment,
		SubmittedAt:   now,
	}

	err = s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.Reviews.Create(ctx, tx, review); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return err
		}

		reviews, err := s.Reviews.FindByReservation(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		if len(reviews) < 2 {
			return nil
		}
		if _, err := s.Reviews.PublishForReservation(ctx, tx, res.ID, now); err != nil {
			return err
		}
		review.Published = true
		review.PublishedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(res).WithFields(logrus.Fields{
		"author_role": role,
		"published":   review.Published,
	}).Info("review submitted")
	return review, nil
}

func (s *reviewService) PublishClosedWindows(ctx context.Context, now time.Time) (int, error) {
	cutoff := s.todayAt(now).AddDate(0, 0, -s.windowDays)
	reviews, err := s.Reviews.FindUnpublishedCheckoutBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	published := 0
	seen := make(map[string]bool)
	for _, r := range reviews {
		if seen[r.ReservationID] {
			continue
		}
		seen[r.ReservationID] = true

		var n int64
		err := s.Tx.Transaction(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = s.Reviews.PublishForReservation(ctx, tx, r.ReservationID, now)
			return err
		})
		if err != nil {
			s.Logger.WithField("reservation_id", r.ReservationID).WithError(err).Error("publishing reviews failed")
			continue
		}
		published += int(n)
	}
	return published, nil
}
