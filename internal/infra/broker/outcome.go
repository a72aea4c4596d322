package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/handlers/payments"
)

var ErrMalformedOutcome = errors.New("broker: malformed payment outcome")

// outcomeEnvelope accepts both CloudEvents envelopes and flat messages.
type outcomeEnvelope struct {
	ID            string       `json:"id"`
	EventID       string       `json:"eventId"`
	Type          string       `json:"type"`
	InvoiceNumber string       `json:"invoiceNumber"`
	PaymentMethod string       `json:"paymentMethod"`
	Data          *outcomeData `json:"data"`
}

type outcomeData struct {
	InvoiceNumber string `json:"invoiceNumber"`
	PaymentMethod string `json:"paymentMethod"`
}

// DecodeOutcome turns a broker message into a RecordOutcomeCommand.
// fallbackID identifies the message when the body carries no id.
func DecodeOutcome(body []byte, fallbackID string) (payments.RecordOutcomeCommand, error) {
	var env outcomeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return payments.RecordOutcomeCommand{}, errors.Join(ErrMalformedOutcome, err)
	}
	cmd := payments.RecordOutcomeCommand{
		EventID:       firstNonEmpty(env.ID, env.EventID, fallbackID),
		Type:          strings.TrimSuffix(env.Type, ".v1"),
		InvoiceNumber: env.InvoiceNumber,
		PaymentMethod: env.PaymentMethod,
	}
	if env.Data != nil {
		cmd.InvoiceNumber = firstNonEmpty(env.Data.InvoiceNumber, cmd.InvoiceNumber)
		cmd.PaymentMethod = firstNonEmpty(env.Data.PaymentMethod, cmd.PaymentMethod)
	}
	if cmd.EventID == "" || cmd.Type == "" || cmd.InvoiceNumber == "" {
		return payments.RecordOutcomeCommand{}, ErrMalformedOutcome
	}
	return cmd, nil
}

// OutcomeDispatcher routes decoded payment outcomes onto the command bus.
type OutcomeDispatcher struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// Dispatch returns nil for messages that can never succeed so the caller
// acknowledges them; other errors leave the message for redelivery.
func (d OutcomeDispatcher) Dispatch(ctx context.Context, body []byte, fallbackID string) error {
	cmd, err := DecodeOutcome(body, fallbackID)
	if err != nil {
		d.logger().Warn("dropping payment outcome", slog.String("message_id", fallbackID), slog.Any("err", err))
		return nil
	}
	if _, err := d.Commands.Dispatch(ctx, cmd); err != nil {
		if errors.Is(err, payments.ErrUnknownOutcome) {
			d.logger().Warn("dropping payment outcome", slog.String("event_id", cmd.EventID), slog.Any("err", err))
			return nil
		}
		return err
	}
	return nil
}

func (d OutcomeDispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
