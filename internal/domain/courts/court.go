package courts

import (
	"context"
	"errors"
)

var (
	ErrCourtNotFound = errors.New("courts: court not found")
	ErrCourtInactive = errors.New("courts: court is not accepting bookings")
)

const (
	defaultOpenHour  = 8
	defaultCloseHour = 22
)

type CourtID int64

// Court is the slice of the court catalog the booking engine needs.
type Court struct {
	ID         CourtID
	ArenaID    int64
	Name       string
	HourlyRate int64
	Active     bool
	// OpenHour and CloseHour bound the bookable hours, [OpenHour, CloseHour).
	OpenHour  int
	CloseHour int
}

// Catalog is the read side of the external court catalog.
type Catalog interface {
	ByID(ctx context.Context, id CourtID) (*Court, error)
}

// Hours returns the opening window, falling back to 08:00-22:00.
func (c Court) Hours() (open, close int) {
	open, close = c.OpenHour, c.CloseHour
	if open < 0 || open > 23 || close <= open || close > 24 {
		return defaultOpenHour, defaultCloseHour
	}
	return open, close
}

// Opens reports whether the hour-long slot starting at hour lies in the opening window.
func (c Court) Opens(hour int) bool {
	open, close := c.Hours()
	return hour >= open && hour < close
}
