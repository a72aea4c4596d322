package expiry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	bookinghandlers "courtbook/internal/app/handlers/booking"
)

// DefaultInterval is the sweep cadence when none is configured.
const DefaultInterval = time.Minute

var ErrSweeperNotConfigured = errors.New("expiry: sweeper missing command bus")

// Sweeper reclaims abandoned pending bookings on a fixed cadence. A booking
// is reclaimed no later than its grace window plus one Interval after
// creation.
type Sweeper struct {
	Commands commands.Bus
	Interval time.Duration
	Logger   *slog.Logger
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) (dto.SweepResult, error) {
	if s.Commands == nil {
		return dto.SweepResult{}, ErrSweeperNotConfigured
	}
	return commands.Dispatch[bookinghandlers.ExpireStaleCommand, dto.SweepResult](ctx, s.Commands, bookinghandlers.ExpireStaleCommand{})
}

// Run sweeps on every tick until ctx is cancelled. A failed pass is logged and
// the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Commands == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger().Error("expiry sweep failed", "error", err)
				continue
			}
			if res.Expired > 0 {
				s.logger().Info("expiry sweep finished", "expired", res.Expired, "invoices", res.Invoices)
			}
		}
	}
}

// MaxReclaimLatency is the longest a pending booking can hold its slots.
func MaxReclaimLatency(graceWindow, interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return graceWindow + interval
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultInterval
	}
	return s.Interval
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
