package booking

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	"courtbook/internal/domain/shared/events"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newPendingBooking(t *testing.T) *Booking {
	t.Helper()
	slots, err := ParseSlots([]string{"14:00 - 15:00", "15:00 - 16:00"})
	if err != nil {
		t.Fatalf("ParseSlots: %v", err)
	}
	b, err := NewBooking(CreateParams{
		InvoiceNumber: "INV-20260310-ABCDEF",
		UserID:        7,
		Court:         courts.Court{ID: 3, ArenaID: 1, HourlyRate: 50_000, Active: true},
		Date:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Slots:         slots,
		Price:         pricing.Breakdown{TotalPrice: 100_000, ServiceFee: 5_000},
		GraceWindow:   15 * time.Minute,
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("NewBooking: %v", err)
	}
	b.ClearEvents()
	return b
}

func eventNames(evs []events.DomainEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.EventName())
	}
	return out
}

func TestNewBooking(t *testing.T) {
	b := newPendingBooking(t)
	if b.Status != StatusPending || b.PaymentStatus != PaymentUnpaid {
		t.Fatalf("status = %s/%s, want pending/unpaid", b.Status, b.PaymentStatus)
	}
	if b.Price.FinalTotal != 105_000 {
		t.Errorf("FinalTotal = %d, want 105000", b.Price.FinalTotal)
	}
	if b.ExpiryTime == nil || !b.ExpiryTime.Equal(testNow.Add(15*time.Minute)) {
		t.Errorf("ExpiryTime = %v, want now+15m", b.ExpiryTime)
	}
	if b.StartTime != "14:00" || b.EndTime != "16:00" {
		t.Errorf("span = %s-%s, want 14:00-16:00", b.StartTime, b.EndTime)
	}
}

func TestNewBookingRecordsCreation(t *testing.T) {
	slots, _ := ParseSlots([]string{"10:00"})
	b, err := NewBooking(CreateParams{
		InvoiceNumber: "INV-1",
		UserID:        1,
		Court:         courts.Court{ID: 1},
		Date:          testNow,
		Slots:         slots,
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("NewBooking: %v", err)
	}
	names := eventNames(b.Drain())
	if len(names) != 1 || names[0] != EventBookingCreated {
		t.Errorf("events = %v, want [%s]", names, EventBookingCreated)
	}
	if len(b.PendingEvents()) != 0 {
		t.Error("Drain() left events behind")
	}
}

func TestTransitionPaymentConfirmation(t *testing.T) {
	for _, reported := range []Status{StatusConfirmed, StatusCompleted} {
		t.Run(string(reported), func(t *testing.T) {
			b := newPendingBooking(t)
			if err := b.Transition(ActorCustomer, reported, nil, "qris", testNow); err != nil {
				t.Fatalf("Transition() unexpected error: %v", err)
			}
			if b.Status != StatusConfirmed || b.PaymentStatus != PaymentPaid {
				t.Errorf("status = %s/%s, want confirmed/paid", b.Status, b.PaymentStatus)
			}
			if b.ExpiryTime != nil {
				t.Error("expiry should be cleared once confirmed")
			}
			if b.PaymentMethod != "qris" {
				t.Errorf("PaymentMethod = %q", b.PaymentMethod)
			}
			names := eventNames(b.Drain())
			if len(names) != 1 || names[0] != EventBookingUpdated {
				t.Errorf("events = %v, want [%s]", names, EventBookingUpdated)
			}
		})
	}
}

func TestTransitionRejectsCustomerCancellation(t *testing.T) {
	b := newPendingBooking(t)
	if err := b.Transition(ActorCustomer, StatusCancelled, nil, "", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Transition() error = %v, want ErrInvalidTransition", err)
	}
	if b.Status != StatusPending {
		t.Errorf("status changed to %s", b.Status)
	}
}

func TestSystemCancellationReleasesSlots(t *testing.T) {
	b := newPendingBooking(t)
	if err := b.Transition(ActorSystem, StatusCancelledBySystem, nil, "", testNow); err != nil {
		t.Fatalf("Transition() unexpected error: %v", err)
	}
	evs := b.Drain()
	names := eventNames(evs)
	if len(names) != 2 || names[0] != EventBookingUpdated || names[1] != EventSlotAvailabilityUpdated {
		t.Fatalf("events = %v", names)
	}
	released := evs[1].(SlotAvailabilityUpdated)
	if len(released.Slots) != 2 || released.Slots[0] != "14:00" || released.Slots[1] != "15:00" {
		t.Errorf("released slots = %v", released.Slots)
	}
}

func TestTerminalStatusesRejectUpdates(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled, StatusCancelledBySystem, StatusExpired} {
		t.Run(string(terminal), func(t *testing.T) {
			b := newPendingBooking(t)
			b.Status = terminal
			err := b.Transition(ActorAdmin, StatusConfirmed, nil, "", testNow)
			var tse *TerminalStateError
			if !errors.As(err, &tse) {
				t.Fatalf("Transition() error = %v, want TerminalStateError", err)
			}
			if tse.Status != terminal {
				t.Errorf("TerminalStateError.Status = %s, want %s", tse.Status, terminal)
			}
			if err := b.ApplyPricing(b.Price, nil, testNow); !errors.As(err, &tse) {
				t.Errorf("ApplyPricing() error = %v, want TerminalStateError", err)
			}
		})
	}
}

func TestAdminOverride(t *testing.T) {
	paid := PaymentPaid
	tests := []struct {
		name    string
		from    Status
		to      Status
		payment *PaymentStatus
		wantErr error
	}{
		{name: "pending to completed", from: StatusPending, to: StatusCompleted, payment: &paid},
		{name: "pending to cancelled", from: StatusPending, to: StatusCancelled},
		{name: "confirmed to completed", from: StatusConfirmed, to: StatusCompleted},
		{name: "restate to change payment only", from: StatusConfirmed, to: StatusConfirmed, payment: &paid},
		{name: "confirmed back to pending", from: StatusConfirmed, to: StatusPending, wantErr: ErrInvalidTransition},
		{name: "pending to expired is reserved", from: StatusPending, to: StatusExpired, wantErr: ErrInvalidTransition},
		{name: "unknown status", from: StatusPending, to: Status("archived"), wantErr: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newPendingBooking(t)
			b.Status = tt.from
			err := b.Transition(ActorAdmin, tt.to, tt.payment, "", testNow)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() unexpected error: %v", err)
			}
			if b.Status != tt.to {
				t.Errorf("status = %s, want %s", b.Status, tt.to)
			}
			if tt.payment != nil && b.PaymentStatus != *tt.payment {
				t.Errorf("payment = %s, want %s", b.PaymentStatus, *tt.payment)
			}
			if len(b.PendingEvents()) == 0 {
				t.Error("override recorded no events")
			}
		})
	}
}

func TestExpire(t *testing.T) {
	b := newPendingBooking(t)
	if err := b.Expire(testNow.Add(5 * time.Minute)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expire() before deadline error = %v, want ErrInvalidTransition", err)
	}
	if b.IsStale(testNow.Add(5 * time.Minute)) {
		t.Error("IsStale() true before deadline")
	}
	later := testNow.Add(25 * time.Minute)
	if !b.IsStale(later) {
		t.Fatal("IsStale() false after deadline")
	}
	if err := b.Expire(later); err != nil {
		t.Fatalf("Expire() unexpected error: %v", err)
	}
	if b.Status != StatusExpired || b.PaymentStatus != PaymentUnpaid || b.ExpiryTime != nil {
		t.Errorf("after Expire: %s/%s expiry=%v", b.Status, b.PaymentStatus, b.ExpiryTime)
	}
	if err := b.Expire(later); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Expire() error = %v, want ErrInvalidTransition", err)
	}
}

func TestApplyPricingRecomputesTotal(t *testing.T) {
	b := newPendingBooking(t)
	next := b.Price
	next.DiscountAmount = 5_000
	next.FinalTotal = 1
	if err := b.ApplyPricing(next, nil, testNow); err != nil {
		t.Fatalf("ApplyPricing() unexpected error: %v", err)
	}
	if b.Price.FinalTotal != 100_000 {
		t.Errorf("FinalTotal = %d, want 100000", b.Price.FinalTotal)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := newPendingBooking(t)
	c := b.Clone()
	c.Slots[0] = "changed"
	*c.ExpiryTime = time.Time{}
	if b.Slots[0] == "changed" || b.ExpiryTime.IsZero() {
		t.Error("Clone() shares memory with the original")
	}
}

func TestNewInvoiceNumber(t *testing.T) {
	got := NewInvoiceNumber("", testNow)
	if !regexp.MustCompile(`^INV-20260310-[0-9A-F]{6}$`).MatchString(got) {
		t.Errorf("NewInvoiceNumber() = %q", got)
	}
	if NewInvoiceNumber("CB", testNow)[:3] != "CB-" {
		t.Error("custom prefix ignored")
	}
}
