package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ListingEvent is the payload of listing.created and listing.updated.
type ListingEvent struct {
	ID           uint   `json:"id"`
	ProprietorID string `json:"proprietor_id"`
	HostID       string `json:"host_id"`
	NightlyRate  int64  `json:"nightly_rate"`
	Currency     string `json:"currency"`
	MaxGuests    int    `json:"max_guests"`
}

func (e ListingEvent) validate() error {
	switch {
	case e.ID == 0:
		return fmt.Errorf("listing id is required")
	case e.ProprietorID == "" || e.HostID == "":
		return fmt.Errorf("listing %d has no proprietor or host", e.ID)
	case e.NightlyRate < 0:
		return fmt.Errorf("listing %d has a negative nightly rate", e.ID)
	}
	return nil
}

type ListingConsumer struct {
	listings repository.ListingRepository
	logger   *logrus.Logger
	timeout  time.Duration
}

func NewListingConsumer(listings repository.ListingRepository, logger *logrus.Logger) *ListingConsumer {
	return &ListingConsumer{listings: listings, logger: logger, timeout: 10 * time.Second}
}

// Start syncs listings from the listing service into the local table until
// msgs is closed.
func (lc *ListingConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			lc.handleMessage(msg)
		}
		lc.logger.Info("[ListingConsumer] channel closed, stopping consumer")
	}()
}

func (lc *ListingConsumer) handleMessage(msg amqp.Delivery) {
	log := lc.logger.WithField("routing_key", msg.RoutingKey)

	var event ListingEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.WithError(err).Error("[ListingConsumer] failed to unmarshal")
		_ = msg.Nack(false, false)
		return
	}
	if err := event.validate(); err != nil {
		log.WithError(err).Error("[ListingConsumer] invalid listing event")
		_ = msg.Nack(false, false)
		return
	}

	listing := &models.Listing{
		ID:           event.ID,
		ProprietorID: event.ProprietorID,
		HostID:       event.HostID,
		NightlyRate:  event.NightlyRate,
		Currency:     event.Currency,
		MaxGuests:    event.MaxGuests,
	}
	if listing.Currency == "" {
		listing.Currency = "eur"
	}
	if listing.MaxGuests == 0 {
		listing.MaxGuests = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), lc.timeout)
	defer cancel()
	if err := lc.listings.Upsert(ctx, listing); err != nil {
		log.WithField("listing_id", event.ID).WithError(err).Error("[ListingConsumer] failed to upsert listing")
		_ = msg.Nack(false, true) // requeue
		return
	}

	log.WithField("listing_id", event.ID).Info("[ListingConsumer] synced listing")
	_ = msg.Ack(false)
}
