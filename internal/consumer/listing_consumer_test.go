package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/models"
	"github.com/Eursukkul/booking-microservice/sublet-service/internal/repository/memory"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ackResult struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	result *ackResult
}

func (f fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.result.acked = true
	return nil
}

func (f fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.result.nacked, f.result.requeue = true, requeue
	return nil
}

func (f fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(body string) (amqp.Delivery, *ackResult) {
	res := &ackResult{}
	return amqp.Delivery{
		Acknowledger: fakeAcknowledger{result: res},
		RoutingKey:   "listing.updated",
		Body:         []byte(body),
	}, res
}

func TestHandleMessage_UpsertsListing(t *testing.T) {
	store := memory.NewStore()
	logger, _ := test.NewNullLogger()
	lc := NewListingConsumer(store.Listings(), logger)

	msg, res := delivery(`{"id":7,"proprietor_id":"owner-7","host_id":"host-7","nightly_rate":9000,"max_guests":3}`)
	lc.handleMessage(msg)

	assert.True(t, res.acked)
	listing, err := store.Listings().FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "host-7", listing.HostID)
	assert.Equal(t, int64(9000), listing.NightlyRate)
	assert.Equal(t, "eur", listing.Currency)
	assert.Equal(t, 3, listing.MaxGuests)

	msg, res = delivery(`{"id":7,"proprietor_id":"owner-7","host_id":"host-8","nightly_rate":9500,"currency":"usd","max_guests":3}`)
	lc.handleMessage(msg)

	assert.True(t, res.acked)
	listing, err = store.Listings().FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "host-8", listing.HostID)
	assert.Equal(t, "usd", listing.Currency)
}

func TestHandleMessage_DropsBadPayload(t *testing.T) {
	cases := map[string]string{
		"not json":   `{"id":`,
		"missing id": `{"proprietor_id":"owner-7","host_id":"host-7"}`,
		"no host":    `{"id":7,"proprietor_id":"owner-7"}`,
		"negative":   `{"id":7,"proprietor_id":"owner-7","host_id":"host-7","nightly_rate":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore()
			logger, hook := test.NewNullLogger()
			msg, res := delivery(body)

			NewListingConsumer(store.Listings(), logger).handleMessage(msg)

			assert.True(t, res.nacked)
			assert.False(t, res.requeue)
			assert.NotEmpty(t, hook.Entries)
			_, err := store.Listings().FindByID(context.Background(), 7)
			assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		})
	}
}

type failingRepo struct{}

func (failingRepo) FindByID(ctx context.Context, id uint) (*models.Listing, error) {
	return nil, gorm.ErrRecordNotFound
}
func (failingRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Listing, error) {
	return nil, gorm.ErrRecordNotFound
}
func (failingRepo) Upsert(ctx context.Context, listing *models.Listing) error {
	return errors.New("connection reset")
}

func TestHandleMessage_RequeuesOnStoreFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	lc := &ListingConsumer{listings: &failingRepo{}, logger: logger, timeout: time.Second}

	msg, res := delivery(`{"id":7,"proprietor_id":"owner-7","host_id":"host-7","nightly_rate":9000}`)
	lc.handleMessage(msg)

	assert.True(t, res.nacked)
	assert.True(t, res.requeue)
	assert.False(t, res.acked)
}
