package booking

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "14:00 - 15:00", want: 14},
		{raw: "14:00-15:00", want: 14},
		{raw: " 08:00 ", want: 8},
		{raw: "23:00 - 24:00", want: 23},
		{raw: "14:30 - 15:30", wantErr: true},
		{raw: "14:00 - 16:00", wantErr: true},
		{raw: "24:00", wantErr: true},
		{raw: "14", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSlot(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedSlot) {
					t.Fatalf("ParseSlot(%q) error = %v, want ErrMalformedSlot", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSlot(%q) unexpected error: %v", tt.raw, err)
			}
			if got.Hour != tt.want {
				t.Errorf("ParseSlot(%q).Hour = %d, want %d", tt.raw, got.Hour, tt.want)
			}
		})
	}
}

func TestParseSlotsSortsAndChecksContiguity(t *testing.T) {
	slots, err := ParseSlots([]string{"15:00 - 16:00", "14:00 - 15:00"})
	if err != nil {
		t.Fatalf("ParseSlots() unexpected error: %v", err)
	}
	if got, want := StartTimes(slots), []string{"14:00", "15:00"}; !reflect.DeepEqual(got, want) {
		t.Errorf("StartTimes() = %v, want %v", got, want)
	}
	if got, want := Labels(slots), []string{"14:00 - 15:00", "15:00 - 16:00"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}

	tests := []struct {
		name    string
		raws    []string
		wantErr error
	}{
		{name: "empty", raws: nil, wantErr: ErrNoSlots},
		{name: "gap", raws: []string{"14:00", "16:00"}, wantErr: ErrSlotsNotContiguous},
		{name: "duplicate", raws: []string{"14:00", "14:00 - 15:00"}, wantErr: ErrMalformedSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSlots(tt.raws); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseSlots(%v) error = %v, want %v", tt.raws, err, tt.wantErr)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-14")
	if err != nil {
		t.Fatalf("ParseDate() unexpected error: %v", err)
	}
	if FormatDate(d) != "2026-03-14" {
		t.Errorf("FormatDate() = %s", FormatDate(d))
	}
	if _, err := ParseDate("14/03/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("ParseDate() error = %v, want ErrInvalidDate", err)
	}
}
