package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of booking dates.
const DateLayout = "2006-01-02"

// Slot is a one-hour interval identified by its starting hour.
type Slot struct {
	Hour int
}

func (s Slot) Start() string {
	return fmt.Sprintf("%02d:00", s.Hour)
}

func (s Slot) End() string {
	return fmt.Sprintf("%02d:00", s.Hour+1)
}

// Label renders the slot as "14:00 - 15:00".
func (s Slot) Label() string {
	return s.Start() + " - " + s.End()
}

// ParseSlot accepts a label ("14:00 - 15:00") or a bare start time ("14:00").
func ParseSlot(raw string) (Slot, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Slot{}, fmt.Errorf("%w: empty slot", ErrMalformedSlot)
	}
	startRaw, endRaw, ranged := strings.Cut(raw, "-")
	start, err := parseClock(startRaw, 23)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrMalformedSlot, raw)
	}
	if ranged {
		end, err := parseClock(endRaw, 24)
		if err != nil || end != start+1 {
			return Slot{}, fmt.Errorf("%w: %q is not one hour long", ErrMalformedSlot, raw)
		}
	}
	return Slot{Hour: start}, nil
}

// ParseSlots parses, de-duplicates and sorts slots, and requires them to be
// contiguous.
func ParseSlots(raws []string) ([]Slot, error) {
	if len(raws) == 0 {
		return nil, ErrNoSlots
	}
	seen := make(map[int]struct{}, len(raws))
	out := make([]Slot, 0, len(raws))
	for _, raw := range raws {
		slot, err := ParseSlot(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[slot.Hour]; dup {
			return nil, fmt.Errorf("%w: %s requested twice", ErrMalformedSlot, slot.Start())
		}
		seen[slot.Hour] = struct{}{}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	for i := 1; i < len(out); i++ {
		if out[i].Hour != out[i-1].Hour+1 {
			return nil, fmt.Errorf("%w: %s and %s", ErrSlotsNotContiguous, out[i-1].Start(), out[i].Start())
		}
	}
	return out, nil
}

func Labels(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Label())
	}
	return out
}

func StartTimes(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start())
	}
	return out
}

func parseClock(raw string, maxHour int) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("missing minutes")
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if hour < 0 || hour > maxHour || minute != 0 {
		return 0, fmt.Errorf("out of range")
	}
	return hour, nil
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d.UTC(), nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
