package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DeclinedPaymentMethod always fails authorization on the simulated processor.
const DeclinedPaymentMethod = "pm_card_declined"

// SimulatedIntent is the state the simulated processor keeps per hold.
type SimulatedIntent struct {
	ID       string
	Amount   int64
	Currency string
	Status   Status
	Refunds  []Refund
}

// IntentStore keeps simulated intents. The server and the reconciliation
// entry points share one store so simulated refs outlive a process.
type IntentStore interface {
	Create(ctx context.Context, intent *SimulatedIntent) error
	Get(ctx context.Context, id string) (*SimulatedIntent, error)
	// Update loads the intent, applies fn and saves the result unless fn
	// fails. Missing intents fail with ErrUnknownRef.
	Update(ctx context.Context, id string, fn func(intent *SimulatedIntent) error) error
}

// Simulated is a processor for simulated payments and tests. Fault
// injection and call counters are per instance; intents live in the store.
type Simulated struct {
	store IntentStore

	mu    sync.Mutex
	calls map[string]int
	// FailNext makes the next call of the named operation return ErrTransient.
	failNext map[string]int
}

// NewSimulated returns a processor backed by an in-memory store.
func NewSimulated() *Simulated {
	return NewSimulatedWithStore(NewMemoryIntentStore())
}

func NewSimulatedWithStore(store IntentStore) *Simulated {
	return &Simulated{
		store:    store,
		calls:    make(map[string]int),
		failNext: make(map[string]int),
	}
}

var _ Processor = (*Simulated)(nil)

func (s *Simulated) Authorize(ctx context.Context, amount int64, currency, paymentMethod string) (Result, error) {
	if err := s.enter("authorize"); err != nil {
		return Result{}, err
	}

	if paymentMethod == "" || paymentMethod == DeclinedPaymentMethod {
		return Result{}, fmt.Errorf("%w: payment method refused", ErrDeclined)
	}
	intent := &SimulatedIntent{
		ID:       uuid.NewString(),
		Amount:   amount,
		Currency: strings.ToLower(currency),
		Status:   StatusRequiresCapture,
	}
	if err := s.store.Create(ctx, intent); err != nil {
		return Result{}, fmt.Errorf("%w: store intent: %v", ErrTransient, err)
	}
	return Result{Ref: Ref{Kind: KindSimulated, ID: intent.ID}, Status: StatusRequiresCapture}, nil
}

func (s *Simulated) Retrieve(ctx context.Context, id string) (Hold, error) {
	if err := s.enter("retrieve"); err != nil {
		return Hold{}, err
	}
	intent, err := s.store.Get(ctx, id)
	if err != nil {
		return Hold{}, err
	}
	return Hold{Status: intent.Status, Amount: intent.Amount, Currency: intent.Currency}, nil
}

func (s *Simulated) Capture(ctx context.Context, id string) error {
	if err := s.enter("capture"); err != nil {
		return err
	}
	return s.store.Update(ctx, id, func(in *SimulatedIntent) error {
		if !in.Status.Capturable() {
			return fmt.Errorf("%w: intent is %s", ErrStateConflict, in.Status)
		}
		in.Status = StatusSucceeded
		return nil
	})
}

func (s *Simulated) Cancel(ctx context.Context, id string) error {
	if err := s.enter("cancel"); err != nil {
		return err
	}
	return s.store.Update(ctx, id, func(in *SimulatedIntent) error {
		if in.Status == StatusSucceeded {
			return fmt.Errorf("%w: intent already captured", ErrStateConflict)
		}
		in.Status = StatusCanceled
		return nil
	})
}

func (s *Simulated) CreateRefund(ctx context.Context, id string, amount int64, idempotencyKey string) (Refund, error) {
	if err := s.enter("refund"); err != nil {
		return Refund{}, err
	}

	var out Refund
	err := s.store.Update(ctx, id, func(in *SimulatedIntent) error {
		if in.Status != StatusSucceeded {
			return fmt.Errorf("%w: intent is %s", ErrStateConflict, in.Status)
		}
		var refunded int64
		for _, r := range in.Refunds {
			if r.ID == idempotencyKey {
				out = r
				return nil
			}
			if r.Status != RefundFailed {
				refunded += r.Amount
			}
		}
		if amount <= 0 || refunded+amount > in.Amount {
			return fmt.Errorf("%w: refund amount %d out of range", ErrStateConflict, amount)
		}
		out = Refund{ID: idempotencyKey, Amount: amount, Status: RefundSucceeded}
		in.Refunds = append(in.Refunds, out)
		return nil
	})
	return out, err
}

func (s *Simulated) ListRefunds(ctx context.Context, id string) ([]Refund, error) {
	if err := s.enter("list_refunds"); err != nil {
		return nil, err
	}
	intent, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]Refund(nil), intent.Refunds...), nil
}

// SetStatus forces an intent into a status, e.g. to simulate hold expiry.
func (s *Simulated) SetStatus(id string, status Status) {
	_ = s.store.Update(context.Background(), id, func(in *SimulatedIntent) error {
		in.Status = status
		return nil
	})
}

// FailNext queues n transient failures for the named operation.
func (s *Simulated) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] += n
}

// Calls returns how many times the named operation reached the processor.
func (s *Simulated) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Simulated) enter(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.failNext[op] > 0 {
		s.failNext[op]--
		return fmt.Errorf("%w: simulated %s failure", ErrTransient, op)
	}
	return nil
}

// memoryIntentStore keeps intents in a map. Values are copied in and out so
// callers never share a Refunds slice with the store.
type memoryIntentStore struct {
	mu      sync.Mutex
	intents map[string]SimulatedIntent
}

func NewMemoryIntentStore() IntentStore {
	return &memoryIntentStore{intents: make(map[string]SimulatedIntent)}
}

func (m *memoryIntentStore) Create(ctx context.Context, intent *SimulatedIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[intent.ID]; ok {
		return fmt.Errorf("intent %s already exists", intent.ID)
	}
	m.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (m *memoryIntentStore) Get(ctx context.Context, id string) (*SimulatedIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, id)
	}
	out := cloneIntent(in)
	return &out, nil
}

func (m *memoryIntentStore) Update(ctx context.Context, id string, fn func(intent *SimulatedIntent) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, id)
	}
	work := cloneIntent(in)
	if err := fn(&work); err != nil {
		return err
	}
	m.intents[id] = work
	return nil
}

func cloneIntent(in SimulatedIntent) SimulatedIntent {
	in.Refunds = append([]Refund(nil), in.Refunds...)
	return in
}
