package pricing

import "fmt"

// Adjustment is a pricing change carried by a status update. It is either a
// FullTotal or a Components value; the two never mix.
type Adjustment interface {
	Apply(current Breakdown, policy Policy) (Breakdown, error)
	isAdjustment()
}

// FullTotal states the final amount the caller expects. The stored components
// must already produce it.
type FullTotal struct {
	Amount int64
}

func (FullTotal) isAdjustment() {}

func (f FullTotal) Apply(current Breakdown, _ Policy) (Breakdown, error) {
	next := current
	if err := next.Recalculate(); err != nil {
		return Breakdown{}, err
	}
	if f.Amount != next.FinalTotal {
		return Breakdown{}, fmt.Errorf("%w: supplied %d, computed %d", ErrTotalMismatch, f.Amount, next.FinalTotal)
	}
	return next, nil
}

// Components overrides individual components; FinalTotal is always recomputed.
type Components struct {
	ServiceFee *int64
	Protection *bool
	// ProtectionCost is only read when Protection is true.
	ProtectionCost *int64
	Discount       *int64
}

func (Components) isAdjustment() {}

// Empty reports whether no component is set.
func (c Components) Empty() bool {
	return c.ServiceFee == nil && c.Protection == nil && c.ProtectionCost == nil && c.Discount == nil
}

func (c Components) Apply(current Breakdown, policy Policy) (Breakdown, error) {
	next := current
	if c.ServiceFee != nil {
		next.ServiceFee = *c.ServiceFee
	}
	if c.Protection != nil {
		next.ProtectionFee = 0
		if *c.Protection {
			next.ProtectionFee = policy.protectionCost()
			if c.ProtectionCost != nil {
				next.ProtectionFee = *c.ProtectionCost
			}
		}
	} else if c.ProtectionCost != nil && current.ProtectionFee > 0 {
		next.ProtectionFee = *c.ProtectionCost
	}
	if c.Discount != nil {
		next.DiscountAmount = *c.Discount
	}
	if err := next.Recalculate(); err != nil {
		return Breakdown{}, err
	}
	return next, nil
}
