package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/courts"
)

var ErrNoSlotsRequested = errors.New("availability: at least one slot must be requested")

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// DaySlot is one row of the availability listing.
type DaySlot struct {
	Time   string
	Status SlotStatus
	Price  int64
}

// ClaimReader is the read side of the slot claims held by active bookings.
type ClaimReader interface {
	ActiveSlots(ctx context.Context, courtID courts.CourtID, date time.Time) ([]string, error)
}

// Resolver answers which slots on a court are already taken. Its answer is a
// snapshot; the repository's Create is what makes a claim stick.
type Resolver struct {
	Claims ClaimReader
}

func NewResolver(claims ClaimReader) Resolver {
	return Resolver{Claims: claims}
}

// Conflicts returns the requested start times that an active booking holds,
// in the order they were requested.
func (r Resolver) Conflicts(ctx context.Context, courtID courts.CourtID, date time.Time, starts []string) ([]string, error) {
	if len(starts) == 0 {
		return nil, ErrNoSlotsRequested
	}
	if date.IsZero() {
		return nil, booking.ErrInvalidDate
	}
	taken, err := r.taken(ctx, courtID, date)
	if err != nil {
		return nil, err
	}
	var conflicts []string
	for _, start := range starts {
		if _, ok := taken[start]; ok {
			conflicts = append(conflicts, start)
		}
	}
	return conflicts, nil
}

// DaySlots lists every bookable hour of the court on date.
func (r Resolver) DaySlots(ctx context.Context, court courts.Court, date time.Time) ([]DaySlot, error) {
	if date.IsZero() {
		return nil, booking.ErrInvalidDate
	}
	taken, err := r.taken(ctx, court.ID, date)
	if err != nil {
		return nil, err
	}
	open, close := court.Hours()
	out := make([]DaySlot, 0, close-open)
	for hour := open; hour < close; hour++ {
		start := booking.Slot{Hour: hour}.Start()
		status := SlotAvailable
		if _, ok := taken[start]; ok {
			status = SlotBooked
		}
		out = append(out, DaySlot{Time: start, Status: status, Price: court.HourlyRate})
	}
	return out, nil
}

func (r Resolver) taken(ctx context.Context, courtID courts.CourtID, date time.Time) (map[string]struct{}, error) {
	if r.Claims == nil {
		return nil, fmt.Errorf("availability: claim reader not configured")
	}
	held, err := r.Claims.ActiveSlots(ctx, courtID, booking.DateOf(date))
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(held))
	for _, start := range held {
		taken[start] = struct{}{}
	}
	return taken, nil
}
