package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	bookinghandlers "courtbook/internal/app/handlers/booking"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/infra/storage/memory"
)

func TestSweeperReclaimsAbandonedBooking(t *testing.T) {
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := created
	now := func() time.Time { return clock }

	repo := memory.NewBookingRepository()
	factory := memory.Factory{
		Bookings: repo,
		Courts:   memory.NewCourtCatalog(domaincourts.Court{ID: 3, HourlyRate: 50_000, Active: true}),
		Vouchers: memory.NewVoucherCatalog(),
	}
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookinghandlers.ExpireStaleCommand, dto.SweepResult](bus, bookinghandlers.ExpireStaleKey,
		&bookinghandlers.ExpireStaleHandler{UoWFactory: factory, Clock: now})

	ctx := context.Background()
	res, err := (&bookinghandlers.CreateBookingHandler{UoWFactory: factory, Clock: now}).Handle(ctx, bookinghandlers.CreateBookingCommand{
		UserID: 7, CourtID: 3, Date: "2026-03-14", TimeSlots: []string{"14:00", "15:00"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s := &Sweeper{Commands: bus}
	clock = created.Add(14 * time.Minute)
	if got, err := s.Sweep(ctx); err != nil || got.Expired != 0 {
		t.Fatalf("early sweep = %+v, %v", got, err)
	}

	clock = created.Add(MaxReclaimLatency(bookinghandlers.DefaultGraceWindow, DefaultInterval))
	got, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() unexpected error: %v", err)
	}
	if got.Expired != 1 || got.Invoices[0] != res.InvoiceNumber {
		t.Errorf("Sweep() = %+v", got)
	}
	if held, _ := repo.ActiveSlots(ctx, 3, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)); len(held) != 0 {
		t.Errorf("slots still held after sweep: %v", held)
	}
}

func TestMaxReclaimLatency(t *testing.T) {
	if got := MaxReclaimLatency(15*time.Minute, 30*time.Second); got != 15*time.Minute+30*time.Second {
		t.Errorf("MaxReclaimLatency() = %v", got)
	}
	if got := MaxReclaimLatency(15*time.Minute, 0); got != 16*time.Minute {
		t.Errorf("MaxReclaimLatency() default = %v", got)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	if err := (&Sweeper{}).Run(context.Background()); !errors.Is(err, ErrSweeperNotConfigured) {
		t.Fatalf("Run() error = %v, want ErrSweeperNotConfigured", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- (&Sweeper{Commands: commands.NewInMemoryBus(), Interval: time.Millisecond}).Run(ctx)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop")
	}
}
