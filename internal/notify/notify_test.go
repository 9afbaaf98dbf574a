package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	publishFn func(ctx context.Context, routingKey string, payload any) error
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.publishFn(ctx, routingKey, payload)
}

func TestBrokerNotifier_RoutingKeyAndBody(t *testing.T) {
	var gotKey string
	var gotMsg Message
	pub := &mockPublisher{publishFn: func(ctx context.Context, routingKey string, payload any) error {
		gotKey = routingKey
		gotMsg = payload.(Message)
		return nil
	}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	NewBrokerNotifier(pub, logger).Send(context.Background(), ReservationAccepted, "guest-1", Payload{"reservation_id": "r1"})

	assert.Equal(t, "notification.reservation.accepted", gotKey)
	assert.Equal(t, ReservationAccepted, gotMsg.Template)
	assert.Equal(t, "guest-1", gotMsg.Recipient)
	assert.Equal(t, "r1", gotMsg.Payload["reservation_id"])
}

func TestBrokerNotifier_FailureIsLoggedOnly(t *testing.T) {
	pub := &mockPublisher{publishFn: func(ctx context.Context, routingKey string, payload any) error {
		return errors.New("broker down")
	}}
	logger, hook := test.NewNullLogger()

	assert.NotPanics(t, func() {
		NewBrokerNotifier(pub, logger).Send(context.Background(), ReviewRequested, "host-1", nil)
	})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, ReviewRequested, hook.LastEntry().Data["template"])
}
