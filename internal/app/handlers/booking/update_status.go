package booking

import (
	"context"
	"log/slog"
	"time"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	handlersupport "courtbook/internal/app/handlers/support"
	"courtbook/internal/app/outbox"
	"courtbook/internal/app/uow"
	domainbooking "courtbook/internal/domain/booking"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

const UpdateBookingStatusKey = "booking.update_status"

type UpdateBookingStatusCommand struct {
	InvoiceNumber string
	Actor         domainbooking.Actor
	// UserID is the authenticated caller; ignored for system reports.
	UserID        int64
	Status        string
	PaymentStatus string
	PaymentMethod string
	// Adjustment is nil when the request carries no pricing fields.
	Adjustment pricing.Adjustment
	Voucher    domainvouchers.Reference
}

func (c UpdateBookingStatusCommand) Key() string { return UpdateBookingStatusKey }

func (c UpdateBookingStatusCommand) Validate() error {
	verr := domainbooking.NewValidationError()
	if c.InvoiceNumber == "" {
		verr.Add("invoiceNumber", "required")
	}
	if c.Status == "" {
		verr.Add("status", "required")
	}
	switch c.Actor {
	case domainbooking.ActorCustomer:
		if c.UserID <= 0 {
			verr.Add("userId", "authenticated user required")
		}
		if c.PaymentStatus != "" {
			verr.Add("paymentStatus", "only administrators may set the payment status")
		}
	case domainbooking.ActorAdmin, domainbooking.ActorSystem:
	default:
		verr.Add("actor", "unknown actor")
	}
	return verr.Err()
}

type UpdateBookingStatusHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Policy     pricing.Policy
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (h *UpdateBookingStatusHandler) Handle(ctx context.Context, cmd UpdateBookingStatusCommand) (dto.Booking, error) {
	if err := cmd.Validate(); err != nil {
		return dto.Booking{}, err
	}
	to, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return dto.Booking{}, fieldError("status", err)
	}
	var payment *domainbooking.PaymentStatus
	if cmd.PaymentStatus != "" {
		p, err := domainbooking.ParsePaymentStatus(cmd.PaymentStatus)
		if err != nil {
			return dto.Booking{}, fieldError("paymentStatus", err)
		}
		payment = &p
	}
	now := now(h.Clock)

	var result dto.Booking
	var from domainbooking.Status
	err = handlersupport.WithinUnit(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByInvoice(ctx, cmd.InvoiceNumber)
		if err != nil {
			return err
		}
		if cmd.Actor == domainbooking.ActorCustomer && !b.OwnedBy(cmd.UserID) {
			return domainbooking.ErrBookingNotFound
		}
		if err := b.EnsureMutable(); err != nil {
			return err
		}
		from = b.Status

		price, voucherID, err := h.reprice(ctx, unit, b, cmd)
		if err != nil {
			return err
		}
		if err := b.ApplyPricing(price, voucherID, now); err != nil {
			return err
		}
		if err := b.Transition(cmd.Actor, to, payment, cmd.PaymentMethod, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, b.Drain()); err != nil {
			return err
		}
		result = dto.MapBooking(b)
		return nil
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking status updated", "invoice", cmd.InvoiceNumber, "actor", cmd.Actor, "from", from, "to", result.Status, "final_total", result.FinalTotal)
	}
	return result, nil
}

// reprice applies the request's pricing adjustment. A voucher reference
// without an explicit discount supplies the discount itself.
func (h *UpdateBookingStatusHandler) reprice(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, cmd UpdateBookingStatusCommand) (pricing.Breakdown, *domainvouchers.VoucherID, error) {
	adjustment := cmd.Adjustment
	var voucherID *domainvouchers.VoucherID
	if !cmd.Voucher.IsZero() {
		voucher, err := domainvouchers.Resolve(ctx, unit.Vouchers(), cmd.Voucher)
		if err != nil {
			return pricing.Breakdown{}, nil, err
		}
		voucherID = &voucher.ID
		switch adj := adjustment.(type) {
		case nil:
			discount, err := voucher.DiscountFor(b.Price.TotalPrice)
			if err != nil {
				return pricing.Breakdown{}, nil, err
			}
			adjustment = pricing.Components{Discount: &discount}
		case pricing.Components:
			if adj.Discount == nil {
				discount, err := voucher.DiscountFor(b.Price.TotalPrice)
				if err != nil {
					return pricing.Breakdown{}, nil, err
				}
				adj.Discount = &discount
				adjustment = adj
			}
		}
	}
	if adjustment == nil {
		return b.Price, voucherID, nil
	}
	next, err := adjustment.Apply(b.Price, h.policy())
	if err != nil {
		return pricing.Breakdown{}, nil, fieldError("pricing", err)
	}
	return next, voucherID, nil
}

func (h *UpdateBookingStatusHandler) policy() pricing.Policy {
	if h.Policy == (pricing.Policy{}) {
		return pricing.DefaultPolicy()
	}
	return h.Policy
}

var _ commands.Handler[UpdateBookingStatusCommand, dto.Booking] = (*UpdateBookingStatusHandler)(nil)
