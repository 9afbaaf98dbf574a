// Package notify hands transactional notifications to the external
// dispatcher. Rendering and delivery retries are the dispatcher's job.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ReservationRequested        = "reservation.requested"
	ReservationAccepted         = "reservation.accepted"
	ReservationRejected         = "reservation.rejected"
	ReservationAutoRejected     = "reservation.auto_rejected"
	ReservationCancelledByGuest = "reservation.cancelled_by_guest"
	ReservationCancelledByHost  = "reservation.cancelled_by_host"
	ReviewRequested             = "review.requested"
)

type Payload map[string]any

// Notifier is fire-and-forget: implementations log failures and never
// return them to the caller.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, payload Payload)
}

// Message is the body published to the dispatcher.
type Message struct {
	Template  string    `json:"template"`
	Recipient string    `json:"recipient"`
	Payload   Payload   `json:"payload"`
	SentAt    time.Time `json:"sent_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type brokerNotifier struct {
	pub    Publisher
	logger *logrus.Logger
}

// NewBrokerNotifier publishes each notification with routing key
// notification.<template>.
func NewBrokerNotifier(pub Publisher, logger *logrus.Logger) Notifier {
	return &brokerNotifier{pub: pub, logger: logger}
}

func (n *brokerNotifier) Send(ctx context.Context, template, recipient string, payload Payload) {
	msg := Message{Template: template, Recipient: recipient, Payload: payload, SentAt: time.Now().UTC()}
	if err := n.pub.Publish(ctx, "notification."+template, msg); err != nil {
		n.logger.WithFields(logrus.Fields{
			"template":  template,
			"recipient": recipient,
		}).WithError(err).Warn("notification not delivered")
	}
}

type logNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier only logs notifications. Used when no broker is configured.
func NewLogNotifier(logger *logrus.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Send(ctx context.Context, template, recipient string, payload Payload) {
	n.logger.WithFields(logrus.Fields{
		"template":  template,
		"recipient": recipient,
		"payload":   payload,
	}).Info("notification")
}
