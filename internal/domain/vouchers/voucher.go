package vouchers

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrVoucherNotFound  = errors.New("vouchers: voucher not found")
	ErrVoucherInactive  = errors.New("vouchers: voucher is not active")
	ErrMinimumPurchase  = errors.New("vouchers: minimum purchase not reached")
	ErrInvalidReference = errors.New("vouchers: reference needs an id or a code")
)

type VoucherID int64

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Voucher struct {
	ID          VoucherID
	Code        string
	Type        DiscountType
	Value       int64
	MinPurchase int64
	// MaxDiscount caps percentage discounts; zero means uncapped.
	MaxDiscount int64
	Active      bool
}

// Catalog is the read side of the external voucher catalog.
type Catalog interface {
	ByID(ctx context.Context, id VoucherID) (*Voucher, error)
	ByCode(ctx context.Context, code string) (*Voucher, error)
}

// DiscountFor computes the discount this voucher grants on purchase.
func (v Voucher) DiscountFor(purchase int64) (int64, error) {
	if !v.Active {
		return 0, ErrVoucherInactive
	}
	if purchase < v.MinPurchase {
		return 0, ErrMinimumPurchase
	}
	var discount int64
	switch v.Type {
	case DiscountPercentage:
		value := v.Value
		if value > 100 {
			value = 100
		}
		discount = purchase * value / 100
		if v.MaxDiscount > 0 && discount > v.MaxDiscount {
			discount = v.MaxDiscount
		}
	default:
		discount = v.Value
	}
	if discount < 0 {
		discount = 0
	}
	if discount > purchase {
		discount = purchase
	}
	return discount, nil
}

// Reference points at a voucher either by id or by code.
type Reference struct {
	ID   *VoucherID
	Code string
}

func (r Reference) IsZero() bool {
	return r.ID == nil && strings.TrimSpace(r.Code) == ""
}

// Resolve looks the reference up; a code takes precedence over an id.
func Resolve(ctx context.Context, catalog Catalog, ref Reference) (*Voucher, error) {
	if code := strings.TrimSpace(ref.Code); code != "" {
		return catalog.ByCode(ctx, NormalizeCode(code))
	}
	if ref.ID != nil {
		return catalog.ByID(ctx, *ref.ID)
	}
	return nil, ErrInvalidReference
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
