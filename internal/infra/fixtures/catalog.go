package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

// CatalogWriter is implemented by every storage driver that can be seeded.
type CatalogWriter interface {
	PutCourt(ctx context.Context, court domaincourts.Court) error
	PutVoucher(ctx context.Context, voucher domainvouchers.Voucher) error
}

type Catalog struct {
	Courts   []courtFixture   `json:"courts"`
	Vouchers []voucherFixture `json:"vouchers"`
}

type courtFixture struct {
	ID         int64  `json:"id"`
	ArenaID    int64  `json:"arena_id"`
	Name       string `json:"name"`
	HourlyRate int64  `json:"hourly_rate"`
	Active     *bool  `json:"active"`
	OpenHour   int    `json:"open_hour"`
	CloseHour  int    `json:"close_hour"`
}

type voucherFixture struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	MinPurchase int64  `json:"min_purchase"`
	MaxDiscount int64  `json:"max_discount"`
	Active      *bool  `json:"active"`
}

func Read(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return c, nil
}

func (c Catalog) DomainCourts() []domaincourts.Court {
	out := make([]domaincourts.Court, 0, len(c.Courts))
	for _, fx := range c.Courts {
		out = append(out, domaincourts.Court{
			ID:         domaincourts.CourtID(fx.ID),
			ArenaID:    fx.ArenaID,
			Name:       fx.Name,
			HourlyRate: fx.HourlyRate,
			Active:     fx.Active == nil || *fx.Active,
			OpenHour:   fx.OpenHour,
			CloseHour:  fx.CloseHour,
		})
	}
	return out
}

func (c Catalog) DomainVouchers() []domainvouchers.Voucher {
	out := make([]domainvouchers.Voucher, 0, len(c.Vouchers))
	for _, fx := range c.Vouchers {
		out = append(out, domainvouchers.Voucher{
			ID:          domainvouchers.VoucherID(fx.ID),
			Code:        domainvouchers.NormalizeCode(fx.Code),
			Type:        domainvouchers.DiscountType(fx.Type),
			Value:       fx.Value,
			MinPurchase: fx.MinPurchase,
			MaxDiscount: fx.MaxDiscount,
			Active:      fx.Active == nil || *fx.Active,
		})
	}
	return out
}

// Load seeds w from the JSON file at path. A missing file is not an error.
func Load(ctx context.Context, path string, w CatalogWriter, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	catalog, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("catalog fixtures file not found, skipping", "path", path)
			return nil
		}
		return err
	}
	for _, court := range catalog.DomainCourts() {
		if err := w.PutCourt(ctx, court); err != nil {
			logger.Error("cannot store fixture court", "court_id", court.ID, "error", err)
			continue
		}
	}
	for _, v := range catalog.DomainVouchers() {
		if err := w.PutVoucher(ctx, v); err != nil {
			logger.Error("cannot store fixture voucher", "voucher_id", v.ID, "error", err)
			continue
		}
	}
	logger.Info("catalog fixtures imported", "courts", len(catalog.Courts), "vouchers", len(catalog.Vouchers))
	return nil
}
