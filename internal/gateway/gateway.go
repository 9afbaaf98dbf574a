package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDeclined      = errors.New("payment declined")
	ErrStateConflict = errors.New("payment state conflict")
	ErrTransient     = errors.New("payment gateway unavailable")
	ErrUnknownRef    = errors.New("unknown payment reference")
)

// RefKind tells which processor owns a reference.
type RefKind string

const (
	KindLive      RefKind = "live"
	KindSimulated RefKind = "simulated"
)

func (k RefKind) Valid() bool {
	return k == KindLive || k == KindSimulated
}

// Ref identifies a hold or charge at a processor.
type Ref struct {
	Kind RefKind `gorm:"type:varchar(16)" json:"kind"`
	ID   string  `gorm:"type:varchar(255)" json:"id"`
}

func (r Ref) IsZero() bool { return r.ID == "" }

func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

type Status string

const (
	StatusRequiresCapture Status = "requires_capture"
	StatusSucceeded       Status = "succeeded"
	StatusCanceled        Status = "canceled"
	StatusExpired         Status = "expired"
	StatusDeclined        Status = "declined"
	StatusRequiresAction  Status = "requires_action"
)

// Capturable reports whether a hold in this status can still be captured.
func (s Status) Capturable() bool { return s == StatusRequiresCapture }

// Released reports whether the hold no longer reserves funds.
func (s Status) Released() bool {
	return s == StatusCanceled || s == StatusExpired || s == StatusDeclined
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// Hold is what the processor reports about a hold or charge.
type Hold struct {
	Status   Status `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Result struct {
	Ref    Ref    `json:"ref"`
	Status Status `json:"status"`
}

type Refund struct {
	ID     string       `json:"id"`
	Ref    Ref          `json:"ref"`
	Amount int64        `json:"amount"`
	Status RefundStatus `json:"status"`
	// Existing is set when the refund was found on the charge instead of created.
	Existing bool `json:"-"`
}

// Gateway is the two-phase hold/charge surface the reservation workflows use.
type Gateway interface {
	Authorize(ctx context.Context, kind RefKind, amount int64, currency, paymentMethod string) (Result, error)
	AuthorizeCautionHold(ctx context.Context, kind RefKind, paymentMethod string) (Result, error)
	Status(ctx context.Context, ref Ref) (Status, error)
	Inspect(ctx context.Context, ref Ref) (Hold, error)
	Capture(ctx context.Context, ref Ref) error
	CancelAuthorization(ctx context.Context, ref Ref) error
	Refund(ctx context.Context, ref Ref, amount int64) (Refund, error)
}

// Processor is a raw payment processor client. It performs no idempotency
// checks of its own; Adapter layers those on top.
type Processor interface {
	Authorize(ctx context.Context, amount int64, currency, paymentMethod string) (Result, error)
	Retrieve(ctx context.Context, id string) (Hold, error)
	Capture(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	CreateRefund(ctx context.Context, id string, amount int64, idempotencyKey string) (Refund, error)
	ListRefunds(ctx context.Context, id string) ([]Refund, error)
}
