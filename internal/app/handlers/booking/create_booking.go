package booking

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	handlersupport "courtbook/internal/app/handlers/support"
	"courtbook/internal/app/middleware"
	"courtbook/internal/app/outbox"
	"courtbook/internal/app/uow"
	"courtbook/internal/domain/availability"
	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

const CreateBookingKey = "booking.create"

// DefaultGraceWindow is how long a pending booking holds its slots unpaid.
const DefaultGraceWindow = 15 * time.Minute

type CreateBookingCommand struct {
	UserID        int64
	CourtID       int64
	Date          string
	TimeSlots     []string
	Protection    bool
	Discount      *int64
	ServiceFee    *int64
	PaymentMethod string
	Voucher       domainvouchers.Reference
	RequestKey    string
}

func (c CreateBookingCommand) Key() string { return CreateBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return strconv.FormatInt(c.UserID, 10) + ":" + c.RequestKey
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.CreateBookingResult{} }

func (c CreateBookingCommand) Validate() error {
	verr := domainbooking.NewValidationError()
	if c.UserID <= 0 {
		verr.Add("userId", "authenticated user required")
	}
	if c.CourtID <= 0 {
		verr.Add("courtId", "must be positive")
	}
	if c.Date == "" {
		verr.Add("date", "required")
	}
	if len(c.TimeSlots) == 0 {
		verr.Add("timeSlots", "at least one slot required")
	}
	if c.Discount != nil && *c.Discount < 0 {
		verr.Add("discountFromFrontend", "cannot be negative")
	}
	if c.ServiceFee != nil && *c.ServiceFee < 0 {
		verr.Add("serviceFeeFromFrontend", "cannot be negative")
	}
	return verr.Err()
}

type CreateBookingHandler struct {
	UoWFactory    uow.UoWFactory
	Outbox        outbox.Outbox
	Encoder       outbox.EventEncoder
	Policy        pricing.Policy
	GraceWindow   time.Duration
	InvoicePrefix string
	Clock         func() time.Time
	Logger        *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.CreateBookingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	date, err := domainbooking.ParseDate(cmd.Date)
	if err != nil {
		return nil, fieldError("date", err)
	}
	slots, err := domainbooking.ParseSlots(cmd.TimeSlots)
	if err != nil {
		return nil, fieldError("timeSlots", err)
	}
	now := now(h.Clock)
	if date.Before(domainbooking.DateOf(now)) {
		return nil, fieldError("date", domainbooking.ErrDateInPast)
	}

	var result *dto.CreateBookingResult
	err = handlersupport.WithinUnit(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		court, err := unit.Courts().ByID(ctx, domaincourts.CourtID(cmd.CourtID))
		if err != nil {
			return err
		}
		if !court.Active {
			return domaincourts.ErrCourtInactive
		}
		for _, slot := range slots {
			if !court.Opens(slot.Hour) {
				return fieldError("timeSlots", domainbooking.ErrOutsideOpeningHours)
			}
		}

		starts := domainbooking.StartTimes(slots)
		conflicts, err := availability.NewResolver(unit.Bookings()).Conflicts(ctx, court.ID, date, starts)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &domainbooking.SlotConflictError{Slots: conflicts}
		}

		input := pricing.Input{
			SlotCount:  len(slots),
			HourlyRate: court.HourlyRate,
			ServiceFee: cmd.ServiceFee,
			Protection: cmd.Protection,
		}
		if cmd.Discount != nil {
			input.Discount = *cmd.Discount
		}
		var voucherID *domainvouchers.VoucherID
		if !cmd.Voucher.IsZero() {
			voucher, err := domainvouchers.Resolve(ctx, unit.Vouchers(), cmd.Voucher)
			if err != nil {
				return err
			}
			discount, err := voucher.DiscountFor(int64(len(slots)) * court.HourlyRate)
			if err != nil {
				return err
			}
			input.Discount = discount
			voucherID = &voucher.ID
		}
		price, err := h.policy().Quote(input)
		if err != nil {
			return err
		}

		created, err := domainbooking.NewBooking(domainbooking.CreateParams{
			InvoiceNumber: domainbooking.NewInvoiceNumber(h.InvoicePrefix, now),
			UserID:        cmd.UserID,
			Court:         *court,
			VoucherID:     voucherID,
			Date:          date,
			Slots:         slots,
			Price:         price,
			PaymentMethod: cmd.PaymentMethod,
			GraceWindow:   h.graceWindow(),
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Create(ctx, created); err != nil {
			return err
		}
		pending := created.Drain()
		for i, ev := range pending {
			if c, ok := ev.(domainbooking.BookingCreated); ok {
				c.BookingID = created.ID
				pending[i] = c
			}
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, pending); err != nil {
			return err
		}
		result = &dto.CreateBookingResult{
			BookingID:     int64(created.ID),
			InvoiceNumber: created.InvoiceNumber,
			TotalPrice:    created.Price.FinalTotal,
			ExpiryTime:    *created.ExpiryTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking created", "invoice", result.InvoiceNumber, "court_id", cmd.CourtID, "date", cmd.Date, "slots", len(slots))
	}
	return result, nil
}

func (h *CreateBookingHandler) policy() pricing.Policy {
	if h.Policy == (pricing.Policy{}) {
		return pricing.DefaultPolicy()
	}
	return h.Policy
}

func (h *CreateBookingHandler) graceWindow() time.Duration {
	if h.GraceWindow <= 0 {
		return DefaultGraceWindow
	}
	return h.GraceWindow
}

var _ commands.Handler[CreateBookingCommand, *dto.CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
