package uow

import (
	"context"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Bookings() domainbooking.Repository
	Courts() domaincourts.Catalog
	Vouchers() domainvouchers.Catalog

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (a mongo
// session, a gorm transaction) in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
