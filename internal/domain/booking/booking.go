package booking

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	"courtbook/internal/domain/shared/events"
	"courtbook/internal/domain/vouchers"
)

type BookingID int64

type Booking struct {
	ID            BookingID
	InvoiceNumber string
	UserID        int64
	CourtID       courts.CourtID
	ArenaID       int64
	VoucherID     *vouchers.VoucherID
	Date          time.Time
	StartTime     string
	EndTime       string
	Slots         []string
	// ExpiryTime is set while the booking is pending and cleared afterwards.
	ExpiryTime    *time.Time
	Price         pricing.Breakdown
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

// Repository persists bookings. Create must claim the booking's slots
// atomically: when any (court, date, start) is held by an active booking it
// returns a *SlotConflictError and stores nothing.
type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	ByInvoice(ctx context.Context, invoice string) (*Booking, error)
	// Save writes a changed booking guarded by Version and releases its slot
	// claims once it leaves the slot-holding statuses.
	Save(ctx context.Context, booking *Booking) error
	ListByUser(ctx context.Context, userID int64) ([]*Booking, error)
	// ActiveSlots lists start times held on the court for the date.
	ActiveSlots(ctx context.Context, courtID courts.CourtID, date time.Time) ([]string, error)
	// ExpireStale moves every pending booking whose expiry is before now to
	// expired in one step and returns the affected bookings.
	ExpireStale(ctx context.Context, now time.Time) ([]*Booking, error)
}

type CreateParams struct {
	InvoiceNumber string
	UserID        int64
	Court         courts.Court
	VoucherID     *vouchers.VoucherID
	Date          time.Time
	Slots         []Slot
	Price         pricing.Breakdown
	PaymentMethod string
	GraceWindow   time.Duration
	CreatedAt     time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.UserID <= 0 {
		return nil, errors.New("booking: user id required")
	}
	if params.InvoiceNumber == "" {
		return nil, errors.New("booking: invoice number required")
	}
	if len(params.Slots) == 0 {
		return nil, ErrNoSlots
	}
	price := params.Price
	if err := price.Recalculate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	expiry := now.Add(params.GraceWindow)
	first, last := params.Slots[0], params.Slots[len(params.Slots)-1]
	b := &Booking{
		InvoiceNumber: params.InvoiceNumber,
		UserID:        params.UserID,
		CourtID:       params.Court.ID,
		ArenaID:       params.Court.ArenaID,
		VoucherID:     params.VoucherID,
		Date:          DateOf(params.Date),
		StartTime:     first.Start(),
		EndTime:       last.End(),
		Slots:         Labels(params.Slots),
		ExpiryTime:    &expiry,
		Price:         price,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		PaymentMethod: params.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(BookingCreated{
		InvoiceNumber: b.InvoiceNumber,
		UserID:        b.UserID,
		CourtID:       b.CourtID,
		Date:          FormatDate(b.Date),
		Slots:         append([]string(nil), b.Slots...),
		FinalTotal:    b.Price.FinalTotal,
		ExpiryTime:    expiry,
		At:            now,
	})
	return b, nil
}

// EnsureMutable rejects any change to a booking in a terminal status.
func (b *Booking) EnsureMutable() error {
	if b.Status.IsTerminal() {
		return &TerminalStateError{Status: b.Status, PaymentStatus: b.PaymentStatus}
	}
	return nil
}

// ApplyPricing replaces the price breakdown. The breakdown is recomputed so
// FinalTotal always matches its components.
func (b *Booking) ApplyPricing(next pricing.Breakdown, voucherID *vouchers.VoucherID, now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if err := next.Recalculate(); err != nil {
		return err
	}
	b.Price = next
	if voucherID != nil {
		id := *voucherID
		b.VoucherID = &id
	}
	b.UpdatedAt = now.UTC()
	return nil
}

// Transition applies a status change requested by actor.
//
// Customers and payment reports can only settle a pending booking: a reported
// "confirmed" or "completed" confirms payment, "cancelled_by_system" records a
// failed authorisation. Administrators may force any move in adminTransitions
// and may restate the current status to only touch the payment status.
func (b *Booking) Transition(actor Actor, to Status, payment *PaymentStatus, method string, now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if actor == ActorAdmin {
		if err := b.Override(to, payment, now); err != nil {
			return err
		}
		if method != "" {
			b.PaymentMethod = method
		}
		return nil
	}
	switch to {
	case StatusConfirmed, StatusCompleted:
		return b.ConfirmPayment(method, now)
	case StatusCancelledBySystem:
		return b.CancelBySystem(now)
	}
	return ErrInvalidTransition
}

func (b *Booking) ConfirmPayment(method string, now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	if method != "" {
		b.PaymentMethod = method
	}
	b.PaymentStatus = PaymentPaid
	b.moveTo(StatusConfirmed, now)
	return nil
}

func (b *Booking) CancelBySystem(now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	b.moveTo(StatusCancelledBySystem, now)
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if b.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	b.moveTo(StatusCompleted, now)
	return nil
}

// Override is the administrative transition.
func (b *Booking) Override(to Status, payment *PaymentStatus, now time.Time) error {
	if err := b.EnsureMutable(); err != nil {
		return err
	}
	if !to.IsValid() {
		return ErrInvalidStatus
	}
	if to != b.Status && !b.Status.canBeForcedTo(to) {
		return ErrInvalidTransition
	}
	if payment != nil {
		b.PaymentStatus = *payment
	}
	if to == b.Status {
		b.UpdatedAt = now.UTC()
		b.Record(b.updatedEvent())
		return nil
	}
	b.moveTo(to, now)
	return nil
}

// Expire marks a pending booking whose grace window has elapsed. Bulk expiry
// goes through Repository.ExpireStale and the caller raises the events.
func (b *Booking) Expire(now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	if b.ExpiryTime == nil || !b.ExpiryTime.Before(now) {
		return ErrInvalidTransition
	}
	b.Status = StatusExpired
	b.PaymentStatus = PaymentUnpaid
	b.ExpiryTime = nil
	b.UpdatedAt = now.UTC()
	return nil
}

// IsStale reports whether the booking is pending past its expiry.
func (b *Booking) IsStale(now time.Time) bool {
	return b.Status == StatusPending && b.ExpiryTime != nil && b.ExpiryTime.Before(now)
}

func (b *Booking) moveTo(to Status, now time.Time) {
	b.Status = to
	b.UpdatedAt = now.UTC()
	if to != StatusPending {
		b.ExpiryTime = nil
	}
	b.Record(b.updatedEvent())
	if !to.ClaimsSlots() {
		if released, err := b.ReleasedSlotsEvent(now); err == nil {
			b.Record(released)
		}
	}
}

// OwnedBy reports whether userID placed the booking.
func (b *Booking) OwnedBy(userID int64) bool {
	return b.UserID == userID
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	out := *b
	out.EventRecorder = events.EventRecorder{}
	out.Slots = append([]string(nil), b.Slots...)
	if b.ExpiryTime != nil {
		t := *b.ExpiryTime
		out.ExpiryTime = &t
	}
	if b.VoucherID != nil {
		id := *b.VoucherID
		out.VoucherID = &id
	}
	return &out
}
