package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "sprinter/internal/app/outbox"
	relay "sprinter/internal/infra/outbox"
)

// Outbox buffers records until Flush and then serves them to the relay worker.
type Outbox struct {
	mu      sync.Mutex
	pending []appoutbox.EventRecord
	order   []string
	items   map[string]*relay.Message
	now     func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{items: make(map[string]*relay.Message), now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, rec := range o.pending {
		o.items[rec.ID] = &relay.Message{
			ID:          rec.ID,
			Name:        rec.Name,
			Payload:     rec.Payload,
			OccurredAt:  rec.OccurredAt,
			Aggregate:   rec.Aggregate,
			Headers:     rec.Headers,
			State:       relay.StateNew,
			NextAttempt: now,
		}
		o.order = append(o.order, rec.ID)
	}
	o.pending = nil
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*relay.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, id := range o.order {
		msg := o.items[id]
		due := (msg.State == relay.StateNew || msg.State == relay.StateFailed) && !msg.NextAttempt.After(now)
		stale := msg.State == relay.StateClaimed && !msg.ClaimedAt.After(now.Add(-relay.ClaimTimeout))
		if !due && !stale {
			continue
		}
		msg.State = relay.StateClaimed
		msg.ClaimedBy = workerID
		msg.ClaimedAt = now
		c := *msg
		return &c, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if msg, ok := o.items[id]; ok {
		msg.State = relay.StateSent
		msg.SentAt = o.now()
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if msg, ok := o.items[id]; ok {
		msg.State = relay.StateFailed
		msg.NextAttempt = next
		msg.LastError = errMsg
		msg.Attempts++
	}
	return nil
}

// Messages returns a snapshot of flushed messages in insertion order.
func (o *Outbox) Messages() []relay.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]relay.Message, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.items[id])
	}
	return out
}

// Pending reports how many records are waiting for Flush.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ relay.Store      = (*Outbox)(nil)
)
