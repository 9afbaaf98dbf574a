package notify

import (
	"context"
	"sync"
)

// Sent is one notification captured by a Recorder.
type Sent struct {
	Template  string
	Recipient string
	Payload   Payload
}

// Recorder keeps every notification in memory. Tests use it to assert on
// what a workflow sent.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) Send(ctx context.Context, template, recipient string, payload Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Template: template, Recipient: recipient, Payload: payload})
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// To returns the templates sent to recipient, in order.
func (r *Recorder) To(recipient string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		if s.Recipient == recipient {
			out = append(out, s.Template)
		}
	}
	return out
}
