package booking

import (
	"context"
	"strings"

	"courtbook/internal/app/dto"
	handlersupport "courtbook/internal/app/handlers/support"
	"courtbook/internal/app/queries"
	"courtbook/internal/app/uow"
	"courtbook/internal/domain/availability"
	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
)

const (
	GetBookingKey       = "booking.get"
	ListUserBookingsKey = "booking.list_by_user"
	AvailableSlotsKey   = "slots.available"
)

var readOnly = uow.TxOptions{ReadOnly: true}

type GetBookingQuery struct {
	InvoiceNumber string
	UserID        int64
	Admin         bool
}

func (q GetBookingQuery) Key() string { return GetBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle hides bookings owned by someone else behind ErrBookingNotFound.
func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	invoice := strings.TrimSpace(q.InvoiceNumber)
	if invoice == "" {
		return dto.Booking{}, domainbooking.ErrBookingNotFound
	}
	var out dto.Booking
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, readOnly, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		if !q.Admin && !b.OwnedBy(q.UserID) {
			return domainbooking.ErrBookingNotFound
		}
		out = dto.MapBooking(b)
		return nil
	})
	return out, err
}

type ListUserBookingsQuery struct {
	UserID int64
}

func (q ListUserBookingsQuery) Key() string { return ListUserBookingsKey }

type ListUserBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListUserBookingsHandler) Handle(ctx context.Context, q ListUserBookingsQuery) (dto.BookingCollection, error) {
	if q.UserID <= 0 {
		return dto.BookingCollection{}, fieldError("userId", domainbooking.ErrValidation)
	}
	var out dto.BookingCollection
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, readOnly, func(ctx context.Context, unit uow.UnitOfWork) error {
		items, err := unit.Bookings().ListByUser(ctx, q.UserID)
		if err != nil {
			return err
		}
		out = dto.MapBookings(items)
		return nil
	})
	return out, err
}

type AvailableSlotsQuery struct {
	CourtID int64
	Date    string
}

func (q AvailableSlotsQuery) Key() string { return AvailableSlotsKey }

func (q AvailableSlotsQuery) Validate() error {
	verr := domainbooking.NewValidationError()
	if q.CourtID <= 0 {
		verr.Add("courtId", "must be positive")
	}
	if _, err := domainbooking.ParseDate(q.Date); err != nil {
		verr.Wrap("date", err)
	}
	return verr.Err()
}

type AvailableSlotsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *AvailableSlotsHandler) Handle(ctx context.Context, q AvailableSlotsQuery) ([]dto.DaySlot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	date, _ := domainbooking.ParseDate(q.Date)
	var out []dto.DaySlot
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, readOnly, func(ctx context.Context, unit uow.UnitOfWork) error {
		court, err := unit.Courts().ByID(ctx, domaincourts.CourtID(q.CourtID))
		if err != nil {
			return err
		}
		slots, err := availability.NewResolver(unit.Bookings()).DaySlots(ctx, *court, date)
		if err != nil {
			return err
		}
		out = dto.MapDaySlots(slots)
		return nil
	})
	return out, err
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]                 = (*GetBookingHandler)(nil)
	_ queries.Handler[ListUserBookingsQuery, dto.BookingCollection] = (*ListUserBookingsHandler)(nil)
	_ queries.Handler[AvailableSlotsQuery, []dto.DaySlot]           = (*AvailableSlotsHandler)(nil)
)
