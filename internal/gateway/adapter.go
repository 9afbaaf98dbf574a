package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds how often a transient processor failure is retried.
// Backoff is the first wait; later waits grow exponentially.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}
}

type AdapterConfig struct {
	Currency          string
	CautionHoldAmount int64
	Retry             RetryPolicy
}

// Adapter implements Gateway on top of one Processor per reference kind.
// Every call that moves money re-reads processor state before acting, so a
// retried capture or refund never charges or refunds twice.
type Adapter struct {
	processors map[RefKind]Processor
	cfg        AdapterConfig
	logger     *logrus.Logger
}

func NewAdapter(processors map[RefKind]Processor, cfg AdapterConfig, logger *logrus.Logger) *Adapter {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Adapter{
		processors: processors,
		cfg:        cfg,
		logger:     logger,
	}
}

var _ Gateway = (*Adapter)(nil)

func (a *Adapter) processor(kind RefKind) (Processor, error) {
	p, ok := a.processors[kind]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: no processor for kind %q", ErrUnknownRef, kind)
	}
	return p, nil
}

func (a *Adapter) Authorize(ctx context.Context, kind RefKind, amount int64, currency, paymentMethod string) (Result, error) {
	p, err := a.processor(kind)
	if err != nil {
		return Result{}, err
	}
	if currency == "" {
		currency = a.cfg.Currency
	}

	// Authorization is not retried: a lost response could leave a second hold.
	res, err := p.Authorize(ctx, amount, currency, paymentMethod)
	if err != nil {
		return Result{}, err
	}
	res.Ref.Kind = kind
	if res.Status != StatusRequiresCapture && res.Status != StatusSucceeded {
		return res, fmt.Errorf("%w: authorization ended in status %s", ErrDeclined, res.Status)
	}
	return res, nil
}

func (a *Adapter) AuthorizeCautionHold(ctx context.Context, kind RefKind, paymentMethod string) (Result, error) {
	return a.Authorize(ctx, kind, a.cfg.CautionHoldAmount, a.cfg.Currency, paymentMethod)
}

func (a *Adapter) Status(ctx context.Context, ref Ref) (Status, error) {
	hold, err := a.Inspect(ctx, ref)
	return hold.Status, err
}

// Inspect returns the status, amount and currency the processor holds for ref.
func (a *Adapter) Inspect(ctx context.Context, ref Ref) (Hold, error) {
	p, err := a.processor(ref.Kind)
	if err != nil {
		return Hold{}, err
	}
	var hold Hold
	err = a.retry(ctx, "retrieve", ref, func() error {
		var rerr error
		hold, rerr = p.Retrieve(ctx, ref.ID)
		return rerr
	})
	return hold, err
}

// Capture is a no-op when the charge is already captured and fails with
// ErrStateConflict when the hold can no longer be captured.
func (a *Adapter) Capture(ctx context.Context, ref Ref) error {
	p, err := a.processor(ref.Kind)
	if err != nil {
		return err
	}

	return a.retry(ctx, "capture", ref, func() error {
		hold, err := p.Retrieve(ctx, ref.ID)
		if err != nil {
			return err
		}
		switch status := hold.Status; {
		case status == StatusSucceeded:
			return nil
		case !status.Capturable():
			return fmt.Errorf("%w: hold %s is %s", ErrStateConflict, ref, status)
		}
		return p.Capture(ctx, ref.ID)
	})
}

// CancelAuthorization releases a hold that was never captured. Holds that are
// already released are left alone.
func (a *Adapter) CancelAuthorization(ctx context.Context, ref Ref) error {
	p, err := a.processor(ref.Kind)
	if err != nil {
		return err
	}

	return a.retry(ctx, "cancel", ref, func() error {
		hold, err := p.Retrieve(ctx, ref.ID)
		if err != nil {
			return err
		}
		switch {
		case hold.Status.Released():
			return nil
		case hold.Status == StatusSucceeded:
			return fmt.Errorf("%w: hold %s is already captured", ErrStateConflict, ref)
		}
		return p.Cancel(ctx, ref.ID)
	})
}

// Refund refunds amount on a captured charge unless a non-failed refund
// already exists on it, in which case that refund is returned.
func (a *Adapter) Refund(ctx context.Context, ref Ref, amount int64) (Refund, error) {
	p, err := a.processor(ref.Kind)
	if err != nil {
		return Refund{}, err
	}

	key := uuid.NewString()
	var out Refund
	err = a.retry(ctx, "refund", ref, func() error {
		existing, err := p.ListRefunds(ctx, ref.ID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.Status != RefundFailed {
				r.Ref = ref
				r.Existing = true
				out = r
				return nil
			}
		}

		hold, err := p.Retrieve(ctx, ref.ID)
		if err != nil {
			return err
		}
		if hold.Status != StatusSucceeded {
			return fmt.Errorf("%w: charge %s is %s, nothing to refund", ErrStateConflict, ref, hold.Status)
		}

		r, err := p.CreateRefund(ctx, ref.ID, amount, key)
		if err != nil {
			return err
		}
		r.Ref = ref
		out = r
		return nil
	})
	return out, err
}

// retry runs fn until it succeeds, fails with a non-transient error or the
// policy runs out of attempts. fn re-reads processor state itself.
func (a *Adapter) retry(ctx context.Context, op string, ref Ref, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		a.logger.WithFields(logrus.Fields{
			"op":      op,
			"ref":     ref.String(),
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
		}).WithError(err).Warn("transient gateway failure")
	}

	err := backoff.RetryNotify(operation, a.backOff(ctx), notify)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func (a *Adapter) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.Retry.Backoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.cfg.Retry.MaxAttempts-1)), ctx)
}
