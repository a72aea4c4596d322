package pricing

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceFee is charged when the caller does not supply a service fee.
	DefaultServiceFee int64 = 5_000
	// DefaultProtectionCost is the flat booking-protection premium.
	DefaultProtectionCost int64 = 10_000
)

var (
	ErrNegativeComponent    = errors.New("pricing: components cannot be negative")
	ErrNoSlots              = errors.New("pricing: slot count must be positive")
	ErrDiscountExceedsTotal = errors.New("pricing: discount exceeds booking total")
	ErrTotalMismatch        = errors.New("pricing: supplied total does not match computed total")
)

// Policy holds the process-wide fee constants.
type Policy struct {
	ServiceFee     int64
	ProtectionCost int64
}

func DefaultPolicy() Policy {
	return Policy{ServiceFee: DefaultServiceFee, ProtectionCost: DefaultProtectionCost}
}

// Breakdown is the monetary part of a booking. Amounts are in the smallest currency unit.
type Breakdown struct {
	TotalPrice     int64
	ServiceFee     int64
	ProtectionFee  int64
	DiscountAmount int64
	FinalTotal     int64
}

// Gross is the amount before discount.
func (b Breakdown) Gross() int64 {
	return b.TotalPrice + b.ServiceFee + b.ProtectionFee
}

// Consistent reports whether FinalTotal matches the components.
func (b Breakdown) Consistent() bool {
	return b.FinalTotal == b.Gross()-b.DiscountAmount
}

func (b Breakdown) Validate() error {
	if b.TotalPrice < 0 || b.ServiceFee < 0 || b.ProtectionFee < 0 || b.DiscountAmount < 0 {
		return ErrNegativeComponent
	}
	if b.DiscountAmount > b.Gross() {
		return fmt.Errorf("%w: discount %d, gross %d", ErrDiscountExceedsTotal, b.DiscountAmount, b.Gross())
	}
	return nil
}

// Recalculate validates the components and derives FinalTotal from them.
func (b *Breakdown) Recalculate() error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.FinalTotal = b.Gross() - b.DiscountAmount
	return nil
}

type Input struct {
	SlotCount  int
	HourlyRate int64
	// ServiceFee overrides the policy default when set.
	ServiceFee *int64
	Protection bool
	Discount   int64
}

// Quote prices a new booking request.
func (p Policy) Quote(in Input) (Breakdown, error) {
	if in.SlotCount <= 0 {
		return Breakdown{}, ErrNoSlots
	}
	if in.HourlyRate < 0 {
		return Breakdown{}, ErrNegativeComponent
	}
	b := Breakdown{
		TotalPrice:     int64(in.SlotCount) * in.HourlyRate,
		ServiceFee:     p.serviceFee(),
		DiscountAmount: in.Discount,
	}
	if in.ServiceFee != nil {
		b.ServiceFee = *in.ServiceFee
	}
	if in.Protection {
		b.ProtectionFee = p.protectionCost()
	}
	if err := b.Recalculate(); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

func (p Policy) serviceFee() int64 {
	if p.ServiceFee < 0 {
		return 0
	}
	return p.ServiceFee
}

func (p Policy) protectionCost() int64 {
	if p.ProtectionCost < 0 {
		return 0
	}
	return p.ProtectionCost
}
