package middleware

import (
	"context"
	"log/slog"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/outbox"
	"courtbook/internal/domain/shared/events"
)

// EventPublisher delivers committed domain events to live subscribers.
type EventPublisher interface {
	PublishEvents(ctx context.Context, evs []events.DomainEvent)
}

// PublishCommitted collects the events a command records and publishes them
// after the inner chain returns without error. It must sit outside
// Transaction so nothing is announced for a rolled back change.
func PublishCommitted(publisher EventPublisher, logger *slog.Logger) CommandMiddleware {
	if publisher == nil {
		panic("middleware: event publisher required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			execCtx, collector := outbox.WithCollector(ctx)
			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if evs := collector.Events(); len(evs) > 0 {
				publisher.PublishEvents(ctx, evs)
				if logger != nil {
					logger.Debug("published committed events", "command", cmd.Key(), "count", len(evs))
				}
			}
			return res, nil
		})
	}
}
