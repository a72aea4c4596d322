package broadcast

import (
	"context"
	"log/slog"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/shared/events"
)

type MessageType string

const (
	TypeBookingUpdated          MessageType = "BOOKING_UPDATED"
	TypeBookingExpired          MessageType = "BOOKING_EXPIRED"
	TypeSlotAvailabilityUpdated MessageType = "SLOT_AVAILABILITY_UPDATED"
	TypePing                    MessageType = "PING"
)

// Message is the wire shape of every stream entry.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type BookingPayload struct {
	InvoiceNumber string   `json:"invoiceNumber"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"paymentStatus"`
	UserID        int64    `json:"userId"`
	CourtID       int64    `json:"courtId"`
	FinalTotal    int64    `json:"finalTotal,omitempty"`
	Date          string   `json:"date,omitempty"`
	TimeSlots     []string `json:"timeSlots,omitempty"`
}

type SlotsPayload struct {
	CourtID       int64    `json:"courtId"`
	Date          string   `json:"date"`
	Slots         []string `json:"slots"`
	Status        string   `json:"status"`
	InvoiceNumber string   `json:"invoiceNumber,omitempty"`
}

type PingPayload struct {
	Time time.Time `json:"time"`
}

func Ping(at time.Time) Message {
	return Message{Type: TypePing, Payload: PingPayload{Time: at.UTC()}}
}

// FromDomainEvent maps a domain event to its stream message. ok is false for
// events that are not broadcast.
func FromDomainEvent(ev events.DomainEvent) (Message, bool) {
	switch e := ev.(type) {
	case booking.BookingUpdated:
		return Message{Type: TypeBookingUpdated, Payload: BookingPayload{
			InvoiceNumber: e.InvoiceNumber,
			Status:        string(e.Status),
			PaymentStatus: string(e.PaymentStatus),
			UserID:        e.UserID,
			CourtID:       int64(e.CourtID),
			FinalTotal:    e.FinalTotal,
		}}, true
	case booking.BookingExpired:
		return Message{Type: TypeBookingExpired, Payload: BookingPayload{
			InvoiceNumber: e.InvoiceNumber,
			Status:        string(booking.StatusExpired),
			PaymentStatus: string(booking.PaymentUnpaid),
			UserID:        e.UserID,
			CourtID:       int64(e.CourtID),
			Date:          e.Date,
			TimeSlots:     e.Slots,
		}}, true
	case booking.SlotAvailabilityUpdated:
		status := "booked"
		if e.Available {
			status = "available"
		}
		return Message{Type: TypeSlotAvailabilityUpdated, Payload: SlotsPayload{
			CourtID:       int64(e.CourtID),
			Date:          e.Date,
			Slots:         e.Slots,
			Status:        status,
			InvoiceNumber: e.InvoiceNumber,
		}}, true
	}
	return Message{}, false
}

// DomainPublisher broadcasts committed domain events through a Hub.
type DomainPublisher struct {
	Hub    *Hub
	Logger *slog.Logger
}

// PublishEvents publishes each event on its own; one failure does not stop
// the rest.
func (p DomainPublisher) PublishEvents(ctx context.Context, evs []events.DomainEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, ev := range evs {
		msg, ok := FromDomainEvent(ev)
		if !ok {
			continue
		}
		d, err := p.Hub.Publish(ctx, msg)
		if err != nil {
			p.logger().Warn("broadcast failed", "type", msg.Type, "aggregate", ev.AggregateID(), "error", err)
			continue
		}
		p.logger().Debug("broadcast", "type", msg.Type, "aggregate", ev.AggregateID(), "attempts", d.Attempts, "dropped", d.Dropped)
	}
}

func (p DomainPublisher) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
