package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"courtbook/internal/app/uow"
	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory misconfigured")

// Factory opens a gorm transaction per unit. Repositories pick it up from
// the context the unit injects.
type Factory struct {
	DB *gorm.DB

	Bookings domainbooking.Repository
	Courts   domaincourts.Catalog
	Vouchers domainvouchers.Catalog
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Bookings == nil || f.Courts == nil || f.Vouchers == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx, bookings: f.Bookings, courts: f.Courts, vouchers: f.Vouchers}, nil
}

type Unit struct {
	tx *gorm.DB

	bookings domainbooking.Repository
	courts   domaincourts.Catalog
	vouchers domainvouchers.Catalog
}

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }
func (u *Unit) Courts() domaincourts.Catalog        { return u.courts }
func (u *Unit) Vouchers() domainvouchers.Catalog    { return u.vouchers }

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}
