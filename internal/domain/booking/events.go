package booking

import (
	"strconv"
	"time"

	"courtbook/internal/domain/courts"
)

const (
	EventBookingCreated          = "booking.created"
	EventBookingUpdated          = "booking.updated"
	EventBookingExpired          = "booking.expired"
	EventSlotAvailabilityUpdated = "slots.availability_updated"
)

// BookingCreated is written to the outbox only; creation is not broadcast.
type BookingCreated struct {
	BookingID     BookingID
	InvoiceNumber string
	UserID        int64
	CourtID       courts.CourtID
	Date          string
	Slots         []string
	FinalTotal    int64
	ExpiryTime    time.Time
	At            time.Time
}

func (e BookingCreated) EventName() string     { return EventBookingCreated }
func (e BookingCreated) AggregateID() string   { return e.InvoiceNumber }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingUpdated struct {
	InvoiceNumber string
	UserID        int64
	CourtID       courts.CourtID
	Status        Status
	PaymentStatus PaymentStatus
	FinalTotal    int64
	At            time.Time
}

func (e BookingUpdated) EventName() string     { return EventBookingUpdated }
func (e BookingUpdated) AggregateID() string   { return e.InvoiceNumber }
func (e BookingUpdated) OccurredAt() time.Time { return e.At }

type BookingExpired struct {
	InvoiceNumber string
	UserID        int64
	CourtID       courts.CourtID
	Date          string
	Slots         []string
	At            time.Time
}

func (e BookingExpired) EventName() string     { return EventBookingExpired }
func (e BookingExpired) AggregateID() string   { return e.InvoiceNumber }
func (e BookingExpired) OccurredAt() time.Time { return e.At }

// SlotAvailabilityUpdated announces that the listed start times became free.
type SlotAvailabilityUpdated struct {
	CourtID       courts.CourtID
	Date          string
	Slots         []string
	Available     bool
	InvoiceNumber string
	At            time.Time
}

func (e SlotAvailabilityUpdated) EventName() string { return EventSlotAvailabilityUpdated }
func (e SlotAvailabilityUpdated) AggregateID() string {
	return strconv.FormatInt(int64(e.CourtID), 10) + "/" + e.Date
}
func (e SlotAvailabilityUpdated) OccurredAt() time.Time { return e.At }

func (b *Booking) updatedEvent() BookingUpdated {
	return BookingUpdated{
		InvoiceNumber: b.InvoiceNumber,
		UserID:        b.UserID,
		CourtID:       b.CourtID,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		FinalTotal:    b.Price.FinalTotal,
		At:            b.UpdatedAt,
	}
}

// ReleasedSlotsEvent builds the availability notice for a booking that gave
// up its slots. It fails when the stored slot labels cannot be parsed.
func (b *Booking) ReleasedSlotsEvent(now time.Time) (SlotAvailabilityUpdated, error) {
	slots, err := ParseSlots(b.Slots)
	if err != nil {
		return SlotAvailabilityUpdated{}, err
	}
	return SlotAvailabilityUpdated{
		CourtID:       b.CourtID,
		Date:          FormatDate(b.Date),
		Slots:         StartTimes(slots),
		Available:     true,
		InvoiceNumber: b.InvoiceNumber,
		At:            now.UTC(),
	}, nil
}

// ExpiredEvent builds the broadcast notice for a booking the sweeper expired.
func (b *Booking) ExpiredEvent(now time.Time) BookingExpired {
	return BookingExpired{
		InvoiceNumber: b.InvoiceNumber,
		UserID:        b.UserID,
		CourtID:       b.CourtID,
		Date:          FormatDate(b.Date),
		Slots:         append([]string(nil), b.Slots...),
		At:            now.UTC(),
	}
}
