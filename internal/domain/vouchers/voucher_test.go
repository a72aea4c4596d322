package vouchers

import (
	"context"
	"errors"
	"testing"
)

func TestVoucherDiscountFor(t *testing.T) {
	tests := []struct {
		name     string
		voucher  Voucher
		purchase int64
		want     int64
		wantErr  error
	}{
		{name: "percentage", voucher: Voucher{Type: DiscountPercentage, Value: 10, Active: true}, purchase: 100_000, want: 10_000},
		{name: "percentage capped", voucher: Voucher{Type: DiscountPercentage, Value: 50, MaxDiscount: 20_000, Active: true}, purchase: 100_000, want: 20_000},
		{name: "percentage above 100 clamps", voucher: Voucher{Type: DiscountPercentage, Value: 150, Active: true}, purchase: 30_000, want: 30_000},
		{name: "fixed", voucher: Voucher{Type: DiscountFixed, Value: 15_000, Active: true}, purchase: 100_000, want: 15_000},
		{name: "fixed larger than purchase", voucher: Voucher{Type: DiscountFixed, Value: 15_000, Active: true}, purchase: 10_000, want: 10_000},
		{name: "inactive", voucher: Voucher{Type: DiscountFixed, Value: 15_000}, purchase: 100_000, wantErr: ErrVoucherInactive},
		{name: "below minimum", voucher: Voucher{Type: DiscountFixed, Value: 15_000, MinPurchase: 200_000, Active: true}, purchase: 100_000, wantErr: ErrMinimumPurchase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.voucher.DiscountFor(tt.purchase)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DiscountFor() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DiscountFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

type stubCatalog struct {
	byID   map[VoucherID]Voucher
	byCode map[string]Voucher
}

func (s stubCatalog) ByID(_ context.Context, id VoucherID) (*Voucher, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, ErrVoucherNotFound
	}
	return &v, nil
}

func (s stubCatalog) ByCode(_ context.Context, code string) (*Voucher, error) {
	v, ok := s.byCode[code]
	if !ok {
		return nil, ErrVoucherNotFound
	}
	return &v, nil
}

func TestResolve(t *testing.T) {
	welcome := Voucher{ID: 1, Code: "WELCOME10"}
	flat := Voucher{ID: 2, Code: "FLAT15K"}
	catalog := stubCatalog{
		byID:   map[VoucherID]Voucher{1: welcome, 2: flat},
		byCode: map[string]Voucher{"WELCOME10": welcome, "FLAT15K": flat},
	}
	id := VoucherID(2)

	tests := []struct {
		name    string
		ref     Reference
		wantID  VoucherID
		wantErr error
	}{
		{name: "by id", ref: Reference{ID: &id}, wantID: 2},
		{name: "by code is case insensitive", ref: Reference{Code: " welcome10 "}, wantID: 1},
		{name: "code wins over id", ref: Reference{ID: &id, Code: "WELCOME10"}, wantID: 1},
		{name: "unknown code", ref: Reference{Code: "NOPE"}, wantErr: ErrVoucherNotFound},
		{name: "empty reference", ref: Reference{Code: "  "}, wantErr: ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(context.Background(), catalog, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("Resolve() id = %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}
