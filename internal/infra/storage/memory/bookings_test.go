package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
)

var (
	testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
)

func newBooking(t *testing.T, invoice string, raws ...string) *domainbooking.Booking {
	t.Helper()
	slots, err := domainbooking.ParseSlots(raws)
	if err != nil {
		t.Fatalf("ParseSlots: %v", err)
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		InvoiceNumber: invoice,
		UserID:        7,
		Court:         domaincourts.Court{ID: 3, HourlyRate: 50_000},
		Date:          testDay,
		Slots:         slots,
		GraceWindow:   15 * time.Minute,
		CreatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("NewBooking: %v", err)
	}
	return b
}

func TestBookingRepositoryCreateConflict(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	first := newBooking(t, "INV-1", "14:00", "15:00")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if first.ID != 1 || first.Version != 1 {
		t.Errorf("ID/Version = %d/%d, want 1/1", first.ID, first.Version)
	}

	err := repo.Create(ctx, newBooking(t, "INV-2", "13:00", "14:00"))
	var conflict *domainbooking.SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Create() error = %v, want SlotConflictError", err)
	}
	if !reflect.DeepEqual(conflict.Slots, []string{"14:00"}) {
		t.Errorf("conflict slots = %v, want [14:00]", conflict.Slots)
	}
	if _, err := repo.ByInvoice(ctx, "INV-2"); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Errorf("losing booking was stored: %v", err)
	}

	held, _ := repo.ActiveSlots(ctx, 3, testDay)
	if !reflect.DeepEqual(held, []string{"14:00", "15:00"}) {
		t.Errorf("ActiveSlots() = %v", held)
	}
}

func TestBookingRepositoryConcurrentCreate(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	const n = 20
	candidates := make([]*domainbooking.Booking, n)
	for i := range candidates {
		candidates[i] = newBooking(t, "INV-"+string(rune('A'+i)), "10:00", "11:00")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for _, b := range candidates {
		wg.Add(1)
		go func(b *domainbooking.Booking) {
			defer wg.Done()
			err := repo.Create(ctx, b)
			mu.Lock()
			defer mu.Unlock()
			var conflict *domainbooking.SlotConflictError
			switch {
			case err == nil:
				winners++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(b)
	}
	wg.Wait()

	if winners != 1 || conflicts != n-1 {
		t.Errorf("winners=%d conflicts=%d, want 1 and %d", winners, conflicts, n-1)
	}
}

func TestBookingRepositorySaveReleasesClaims(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newBooking(t, "INV-1", "14:00")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stored, _ := repo.ByInvoice(ctx, "INV-1")
	stale, _ := repo.ByInvoice(ctx, "INV-1")
	if err := stored.CancelBySystem(testNow); err != nil {
		t.Fatalf("CancelBySystem: %v", err)
	}
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if held, _ := repo.ActiveSlots(ctx, 3, testDay); len(held) != 0 {
		t.Errorf("ActiveSlots() after cancel = %v", held)
	}
	if err := repo.Save(ctx, stale); !errors.Is(err, domainbooking.ErrConcurrentUpdate) {
		t.Errorf("stale Save() error = %v, want ErrConcurrentUpdate", err)
	}
	if err := repo.Create(ctx, newBooking(t, "INV-2", "14:00")); err != nil {
		t.Errorf("rebooking released slot: %v", err)
	}
}

func TestBookingRepositoryExpireStale(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	for _, b := range []*domainbooking.Booking{
		newBooking(t, "INV-1", "14:00", "15:00"),
		newBooking(t, "INV-2", "17:00"),
	} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	paid, _ := repo.ByInvoice(ctx, "INV-2")
	if err := paid.ConfirmPayment("qris", testNow); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if err := repo.Save(ctx, paid); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got, _ := repo.ExpireStale(ctx, testNow.Add(10*time.Minute)); len(got) != 0 {
		t.Fatalf("expired before deadline: %d", len(got))
	}
	expired, err := repo.ExpireStale(ctx, testNow.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("ExpireStale() unexpected error: %v", err)
	}
	if len(expired) != 1 || expired[0].InvoiceNumber != "INV-1" {
		t.Fatalf("expired = %v", expired)
	}
	if expired[0].Status != domainbooking.StatusExpired || expired[0].PaymentStatus != domainbooking.PaymentUnpaid {
		t.Errorf("expired booking = %s/%s", expired[0].Status, expired[0].PaymentStatus)
	}
	held, _ := repo.ActiveSlots(ctx, 3, testDay)
	if !reflect.DeepEqual(held, []string{"17:00"}) {
		t.Errorf("ActiveSlots() = %v, want [17:00]", held)
	}
	if again, _ := repo.ExpireStale(ctx, testNow.Add(time.Hour)); len(again) != 0 {
		t.Errorf("second sweep expired %d bookings", len(again))
	}
}

func TestBookingRepositoryListByUser(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, newBooking(t, "INV-1", "09:00"))
	_ = repo.Create(ctx, newBooking(t, "INV-2", "10:00"))

	got, err := repo.ListByUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListByUser() unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].InvoiceNumber != "INV-2" {
		t.Errorf("ListByUser() order wrong: %v", got)
	}
	if none, _ := repo.ListByUser(ctx, 8); len(none) != 0 {
		t.Errorf("ListByUser(8) = %d items", len(none))
	}
}
