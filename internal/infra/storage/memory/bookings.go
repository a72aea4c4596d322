package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
)

type claimKey struct {
	court domaincourts.CourtID
	date  string
	start string
}

// BookingRepository keeps bookings and their slot claims behind one mutex, so
// claiming slots in Create is atomic.
type BookingRepository struct {
	mu        sync.RWMutex
	byInvoice map[string]*domainbooking.Booking
	claims    map[claimKey]string
	nextID    int64
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		byInvoice: make(map[string]*domainbooking.Booking),
		claims:    make(map[claimKey]string),
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	keys, err := claimKeys(b)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byInvoice[b.InvoiceNumber]; exists {
		return fmt.Errorf("memory: invoice %s already exists", b.InvoiceNumber)
	}
	var conflicts []string
	for _, k := range keys {
		if _, taken := r.claims[k]; taken {
			conflicts = append(conflicts, k.start)
		}
	}
	if len(conflicts) > 0 {
		return &domainbooking.SlotConflictError{Slots: conflicts}
	}
	r.nextID++
	b.ID = domainbooking.BookingID(r.nextID)
	b.Version = 1
	r.byInvoice[b.InvoiceNumber] = b.Clone()
	if b.Status.ClaimsSlots() {
		for _, k := range keys {
			r.claims[k] = b.InvoiceNumber
		}
	}
	return nil
}

func (r *BookingRepository) ByInvoice(ctx context.Context, invoice string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byInvoice[invoice]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byInvoice[b.InvoiceNumber]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.byInvoice[b.InvoiceNumber] = b.Clone()
	if !b.Status.ClaimsSlots() {
		r.releaseLocked(b.InvoiceNumber)
	}
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.byInvoice {
		if b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *BookingRepository) ActiveSlots(ctx context.Context, courtID domaincourts.CourtID, date time.Time) ([]string, error) {
	day := domainbooking.FormatDate(date)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.claims {
		if k.court == courtID && k.date == day {
			out = append(out, k.start)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *BookingRepository) ExpireStale(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*domainbooking.Booking
	for invoice, b := range r.byInvoice {
		if !b.IsStale(now) {
			continue
		}
		if err := b.Expire(now); err != nil {
			return nil, err
		}
		b.Version++
		r.releaseLocked(invoice)
		expired = append(expired, b.Clone())
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func (r *BookingRepository) releaseLocked(invoice string) {
	for k, holder := range r.claims {
		if holder == invoice {
			delete(r.claims, k)
		}
	}
}

func claimKeys(b *domainbooking.Booking) ([]claimKey, error) {
	slots, err := domainbooking.ParseSlots(b.Slots)
	if err != nil {
		return nil, err
	}
	day := domainbooking.FormatDate(b.Date)
	keys := make([]claimKey, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, claimKey{court: b.CourtID, date: day, start: s.Start()})
	}
	return keys, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
