package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the API endpoint, e.g. for stripe-mock.
	BaseURL string
	Timeout time.Duration
}

// StripeProcessor places live holds as manual-capture PaymentIntents so the
// charge waits for the host decision. The SDK's own network retries are
// off; Adapter decides what is retried.
type StripeProcessor struct {
	api *client.API
}

func NewStripeProcessor(cfg StripeConfig, logger *logrus.Logger) *StripeProcessor {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger,
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProcessor{api: api}
}

var _ Processor = (*StripeProcessor)(nil)

func (p *StripeProcessor) Authorize(ctx context.Context, amount int64, currency, paymentMethod string) (Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethod:      stripe.String(paymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String("manual"),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Result{}, stripeError(err)
	}
	return Result{Ref: Ref{Kind: KindLive, ID: pi.ID}, Status: Status(pi.Status)}, nil
}

func (p *StripeProcessor) Retrieve(ctx context.Context, id string) (Hold, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Hold{}, stripeError(err)
	}
	return Hold{Status: Status(pi.Status), Amount: pi.Amount, Currency: string(pi.Currency)}, nil
}

func (p *StripeProcessor) Capture(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + id)

	_, err := p.api.PaymentIntents.Capture(id, params)
	return stripeError(err)
}

func (p *StripeProcessor) Cancel(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + id)

	_, err := p.api.PaymentIntents.Cancel(id, params)
	return stripeError(err)
}

func (p *StripeProcessor) CreateRefund(ctx context.Context, id string, amount int64, idempotencyKey string) (Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(id),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return Refund{}, stripeError(err)
	}
	return toRefund(r), nil
}

func (p *StripeProcessor) ListRefunds(ctx context.Context, id string) ([]Refund, error) {
	params := &stripe.RefundListParams{PaymentIntent: stripe.String(id)}
	params.Context = ctx

	var refunds []Refund
	it := p.api.Refunds.List(params)
	for it.Next() {
		refunds = append(refunds, toRefund(it.Refund()))
	}
	if err := it.Err(); err != nil {
		return nil, stripeError(err)
	}
	return refunds, nil
}

func toRefund(r *stripe.Refund) Refund {
	status := RefundPending
	switch r.Status {
	case stripe.RefundStatusSucceeded:
		status = RefundSucceeded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		status = RefundFailed
	}
	return Refund{ID: r.ID, Amount: r.Amount, Status: status}
}

// stripeError maps SDK errors onto the gateway sentinels. Anything that is
// not an API error (dial, timeout, cancelled context) is transient.
func stripeError(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode >= http.StatusInternalServerError,
		se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("%w: %s", ErrTransient, se.Msg)
	case se.Type == stripe.ErrorTypeCard, se.HTTPStatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrDeclined, se.Msg)
	case se.Code == stripe.ErrorCodeResourceMissing, se.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownRef, se.Msg)
	case se.Type == stripe.ErrorTypeInvalidRequest, se.Type == stripe.ErrorTypeIdempotency,
		se.HTTPStatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrStateConflict, se.Msg)
	default:
		return fmt.Errorf("stripe returned %d: %s", se.HTTPStatusCode, se.Msg)
	}
}
