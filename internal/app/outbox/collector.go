package outbox

import (
	"context"
	"sync"

	"courtbook/internal/domain/shared/events"
)

// Collector gathers the domain events raised while one command runs.
type Collector struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

type collectorKey struct{}

func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// Collect is a no-op when ctx carries no collector.
func Collect(ctx context.Context, evs ...events.DomainEvent) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	if !ok {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, evs...)
	c.mu.Unlock()
}

func (c *Collector) Events() []events.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.DomainEvent, len(c.events))
	copy(out, c.events)
	return out
}
