package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "courtbook/internal/app/outbox"
	infraoutbox "courtbook/internal/infra/outbox"
)

// Outbox keeps records in memory and can be drained by the relay worker.
// Sent records beyond limit are dropped, oldest first.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	limit   int
	now     func() time.Time
}

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	next      time.Time
	lastError string
}

func NewOutbox(limit int) *Outbox {
	return &Outbox{limit: limit, now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, &outboxEntry{record: record, state: infraoutbox.StateNew, next: o.now()})
	o.trim()
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, e := range o.entries {
		if e.state == infraoutbox.StateSent || e.state == infraoutbox.StateClaimed || e.next.After(now) {
			continue
		}
		e.state = infraoutbox.StateClaimed
		return &infraoutbox.Message{
			ID:          e.record.ID,
			Name:        e.record.Name,
			Payload:     e.record.Payload,
			OccurredAt:  e.record.OccurredAt,
			Aggregate:   e.record.Aggregate,
			Headers:     e.record.Headers,
			Attempts:    e.attempts,
			NextAttempt: e.next,
		}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = infraoutbox.StateSent
	}
	o.trim()
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = infraoutbox.StateFailed
		e.attempts++
		e.next = next
		e.lastError = errMsg
	}
	return nil
}

// Records returns every stored record in insertion order.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

// Pending counts records not yet relayed.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.entries {
		if e.state != infraoutbox.StateSent {
			n++
		}
	}
	return n
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.entries {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

func (o *Outbox) trim() {
	if o.limit <= 0 || len(o.entries) <= o.limit {
		return
	}
	excess := len(o.entries) - o.limit
	kept := o.entries[:0]
	for _, e := range o.entries {
		if excess > 0 && e.state == infraoutbox.StateSent {
			excess--
			continue
		}
		kept = append(kept, e)
	}
	o.entries = kept
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Store = (*Outbox)(nil)
)
