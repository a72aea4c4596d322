package memory

import (
	"context"
	"sync"

	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

type CourtCatalog struct {
	mu    sync.RWMutex
	items map[domaincourts.CourtID]domaincourts.Court
}

func NewCourtCatalog(courts ...domaincourts.Court) *CourtCatalog {
	c := &CourtCatalog{items: make(map[domaincourts.CourtID]domaincourts.Court)}
	for _, court := range courts {
		c.items[court.ID] = court
	}
	return c
}

func (c *CourtCatalog) ByID(ctx context.Context, id domaincourts.CourtID) (*domaincourts.Court, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	court, ok := c.items[id]
	if !ok {
		return nil, domaincourts.ErrCourtNotFound
	}
	return &court, nil
}

func (c *CourtCatalog) PutCourt(ctx context.Context, court domaincourts.Court) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[court.ID] = court
	return nil
}

type VoucherCatalog struct {
	mu     sync.RWMutex
	byID   map[domainvouchers.VoucherID]domainvouchers.Voucher
	byCode map[string]domainvouchers.VoucherID
}

func NewVoucherCatalog(vouchers ...domainvouchers.Voucher) *VoucherCatalog {
	c := &VoucherCatalog{
		byID:   make(map[domainvouchers.VoucherID]domainvouchers.Voucher),
		byCode: make(map[string]domainvouchers.VoucherID),
	}
	for _, v := range vouchers {
		_ = c.PutVoucher(context.Background(), v)
	}
	return c
}

func (c *VoucherCatalog) ByID(ctx context.Context, id domainvouchers.VoucherID) (*domainvouchers.Voucher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byID[id]
	if !ok {
		return nil, domainvouchers.ErrVoucherNotFound
	}
	return &v, nil
}

func (c *VoucherCatalog) ByCode(ctx context.Context, code string) (*domainvouchers.Voucher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byCode[domainvouchers.NormalizeCode(code)]
	if !ok {
		return nil, domainvouchers.ErrVoucherNotFound
	}
	v := c.byID[id]
	return &v, nil
}

func (c *VoucherCatalog) PutVoucher(ctx context.Context, v domainvouchers.Voucher) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v.Code = domainvouchers.NormalizeCode(v.Code)
	c.byID[v.ID] = v
	if v.Code != "" {
		c.byCode[v.Code] = v.ID
	}
	return nil
}

var (
	_ domaincourts.Catalog   = (*CourtCatalog)(nil)
	_ domainvouchers.Catalog = (*VoucherCatalog)(nil)
)

// Catalogs pairs the two catalogs so fixtures can seed both.
type Catalogs struct {
	*CourtCatalog
	*VoucherCatalog
}
