package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

type CourtCatalog struct {
	db *gorm.DB
}

func NewCourtCatalog(db *gorm.DB) *CourtCatalog {
	return &CourtCatalog{db: db}
}

func (c *CourtCatalog) ByID(ctx context.Context, id domaincourts.CourtID) (*domaincourts.Court, error) {
	var row courtRow
	if err := conn(ctx, c.db).Take(&row, "id = ?", int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domaincourts.ErrCourtNotFound
		}
		return nil, err
	}
	return &domaincourts.Court{
		ID:         domaincourts.CourtID(row.ID),
		ArenaID:    row.ArenaID,
		Name:       row.Name,
		HourlyRate: row.HourlyRate,
		Active:     row.Active,
		OpenHour:   row.OpenHour,
		CloseHour:  row.CloseHour,
	}, nil
}

func (c *CourtCatalog) PutCourt(ctx context.Context, court domaincourts.Court) error {
	row := courtRow{
		ID:         int64(court.ID),
		ArenaID:    court.ArenaID,
		Name:       court.Name,
		HourlyRate: court.HourlyRate,
		Active:     court.Active,
		OpenHour:   court.OpenHour,
		CloseHour:  court.CloseHour,
	}
	return conn(ctx, c.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

type VoucherCatalog struct {
	db *gorm.DB
}

func NewVoucherCatalog(db *gorm.DB) *VoucherCatalog {
	return &VoucherCatalog{db: db}
}

func (c *VoucherCatalog) ByID(ctx context.Context, id domainvouchers.VoucherID) (*domainvouchers.Voucher, error) {
	return c.take(ctx, "id = ?", int64(id))
}

func (c *VoucherCatalog) ByCode(ctx context.Context, code string) (*domainvouchers.Voucher, error) {
	return c.take(ctx, "code = ?", domainvouchers.NormalizeCode(code))
}

func (c *VoucherCatalog) take(ctx context.Context, query string, arg any) (*domainvouchers.Voucher, error) {
	var row voucherRow
	if err := conn(ctx, c.db).Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainvouchers.ErrVoucherNotFound
		}
		return nil, err
	}
	return &domainvouchers.Voucher{
		ID:          domainvouchers.VoucherID(row.ID),
		Code:        row.Code,
		Type:        domainvouchers.DiscountType(row.Type),
		Value:       row.Value,
		MinPurchase: row.MinPurchase,
		MaxDiscount: row.MaxDiscount,
		Active:      row.Active,
	}, nil
}

func (c *VoucherCatalog) PutVoucher(ctx context.Context, v domainvouchers.Voucher) error {
	row := voucherRow{
		ID:          int64(v.ID),
		Code:        domainvouchers.NormalizeCode(v.Code),
		Type:        string(v.Type),
		Value:       v.Value,
		MinPurchase: v.MinPurchase,
		MaxDiscount: v.MaxDiscount,
		Active:      v.Active,
	}
	return conn(ctx, c.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Catalogs pairs the two catalogs so fixtures can seed both.
type Catalogs struct {
	*CourtCatalog
	*VoucherCatalog
}

var (
	_ domaincourts.Catalog   = (*CourtCatalog)(nil)
	_ domainvouchers.Catalog = (*VoucherCatalog)(nil)
)
