package memory

import (
	"context"
	"errors"

	"courtbook/internal/app/uow"
	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory hands out units over shared in-memory stores. Units give no
// isolation or rollback; every repository call applies immediately.
type Factory struct {
	Bookings domainbooking.Repository
	Courts   domaincourts.Catalog
	Vouchers domainvouchers.Catalog
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Bookings == nil || f.Courts == nil || f.Vouchers == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{bookings: f.Bookings, courts: f.Courts, vouchers: f.Vouchers}, nil
}

type Unit struct {
	bookings domainbooking.Repository
	courts   domaincourts.Catalog
	vouchers domainvouchers.Catalog
}

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }
func (u *Unit) Courts() domaincourts.Catalog        { return u.courts }
func (u *Unit) Vouchers() domainvouchers.Catalog    { return u.vouchers }

func (u *Unit) Commit(ctx context.Context) error   { return nil }
func (u *Unit) Rollback(ctx context.Context) error { return nil }
