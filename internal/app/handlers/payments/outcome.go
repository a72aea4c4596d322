package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courtbook/internal/app/commands"
	bookinghandlers "courtbook/internal/app/handlers/booking"
	handlersupport "courtbook/internal/app/handlers/support"
	"courtbook/internal/app/uow"
	domainbooking "courtbook/internal/domain/booking"
)

const RecordOutcomeKey = "payments.record_outcome"

// Outcome types published by the external payment flow.
const (
	OutcomePaid       = "payment.paid"
	OutcomeAuthFailed = "payment.auth_failed"
)

var ErrUnknownOutcome = errors.New("payments: unknown outcome type")

// errMarkedConcurrently aborts the unit when another delivery of the same
// event recorded it first.
var errMarkedConcurrently = errors.New("payments: event recorded by a concurrent delivery")

// Inbox remembers processed broker messages per consumer.
type Inbox interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records eventID and reports false when it was already
	// recorded.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

type RecordOutcomeCommand struct {
	EventID       string
	Type          string
	InvoiceNumber string
	PaymentMethod string
}

func (c RecordOutcomeCommand) Key() string { return RecordOutcomeKey }

type RecordOutcomeResult struct {
	Applied bool
	Reason  string
}

// RecordOutcomeHandler applies a broker-reported payment outcome exactly once
// per event id. The event is marked processed only after the booking update
// has settled, inside the same unit of work, so a failed update is retried on
// redelivery.
type RecordOutcomeHandler struct {
	UoWFactory uow.UoWFactory
	Inbox      Inbox
	Updater    *bookinghandlers.UpdateBookingStatusHandler
	Logger     *slog.Logger
}

func (h *RecordOutcomeHandler) Handle(ctx context.Context, cmd RecordOutcomeCommand) (RecordOutcomeResult, error) {
	status, err := statusFor(cmd.Type)
	if err != nil {
		return RecordOutcomeResult{}, err
	}
	if cmd.EventID == "" || cmd.InvoiceNumber == "" {
		return RecordOutcomeResult{}, fmt.Errorf("payments: event id and invoice number required")
	}
	var result RecordOutcomeResult
	err = handlersupport.WithinUnit(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, _ uow.UnitOfWork) error {
		processed, err := h.Inbox.Processed(ctx, cmd.EventID)
		if err != nil {
			return err
		}
		if processed {
			result.Reason = "duplicate"
			return nil
		}
		_, err = h.Updater.Handle(ctx, bookinghandlers.UpdateBookingStatusCommand{
			InvoiceNumber: cmd.InvoiceNumber,
			Actor:         domainbooking.ActorSystem,
			Status:        string(status),
			PaymentMethod: cmd.PaymentMethod,
		})
		var terminal *domainbooking.TerminalStateError
		switch {
		case err == nil:
			result.Applied = true
		case errors.As(err, &terminal), errors.Is(err, domainbooking.ErrInvalidTransition):
			result.Reason = "already settled"
		case errors.Is(err, domainbooking.ErrBookingNotFound):
			result.Reason = "unknown invoice"
		default:
			return err
		}
		marked, err := h.Inbox.MarkProcessed(ctx, cmd.EventID)
		if err != nil {
			return err
		}
		if !marked {
			return errMarkedConcurrently
		}
		return nil
	})
	if errors.Is(err, errMarkedConcurrently) {
		return RecordOutcomeResult{Reason: "duplicate"}, nil
	}
	if err != nil {
		return RecordOutcomeResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("payment outcome processed", "event_id", cmd.EventID, "type", cmd.Type, "invoice", cmd.InvoiceNumber, "applied", result.Applied, "reason", result.Reason)
	}
	return result, nil
}

func statusFor(outcome string) (domainbooking.Status, error) {
	switch outcome {
	case OutcomePaid:
		return domainbooking.StatusConfirmed, nil
	case OutcomeAuthFailed:
		return domainbooking.StatusCancelledBySystem, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
}

var _ commands.Handler[RecordOutcomeCommand, RecordOutcomeResult] = (*RecordOutcomeHandler)(nil)
