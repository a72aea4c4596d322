package booking

import (
	"context"
	"log/slog"
	"time"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	handlersupport "courtbook/internal/app/handlers/support"
	"courtbook/internal/app/outbox"
	"courtbook/internal/app/uow"
	"courtbook/internal/domain/shared/events"
)

const ExpireStaleKey = "booking.expire_stale"

// ExpireStaleCommand expires every pending booking past its expiry time.
type ExpireStaleCommand struct{}

func (ExpireStaleCommand) Key() string { return ExpireStaleKey }

type ExpireStaleHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Handle expires in one bulk update, then raises one expiry event per booking
// and one slot-release event for each booking whose slots still parse. A bad
// slot record only loses its own release event.
func (h *ExpireStaleHandler) Handle(ctx context.Context, _ ExpireStaleCommand) (dto.SweepResult, error) {
	now := now(h.Clock)
	result := dto.SweepResult{Invoices: []string{}}
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		expired, err := unit.Bookings().ExpireStale(ctx, now)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		evs := make([]events.DomainEvent, 0, 2*len(expired))
		for _, b := range expired {
			evs = append(evs, b.ExpiredEvent(now))
			released, err := b.ReleasedSlotsEvent(now)
			if err != nil {
				if h.Logger != nil {
					h.Logger.Warn("skipping slot release event", "invoice", b.InvoiceNumber, "slots", b.Slots, "error", err)
				}
			} else {
				evs = append(evs, released)
			}
			result.Invoices = append(result.Invoices, b.InvoiceNumber)
		}
		result.Expired = len(expired)
		return outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, evs)
	})
	if err != nil {
		return dto.SweepResult{}, err
	}
	if result.Expired > 0 && h.Logger != nil {
		h.Logger.Info("expired stale bookings", "count", result.Expired)
	}
	return result, nil
}

var _ commands.Handler[ExpireStaleCommand, dto.SweepResult] = (*ExpireStaleHandler)(nil)
