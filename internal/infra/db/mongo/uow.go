package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"courtbook/internal/app/uow"
	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	Bookings domainbooking.Repository
	Courts   domaincourts.Catalog
	Vouchers domainvouchers.Catalog
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a session. Writable units run inside a snapshot transaction;
// read-only units share the session without one.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Bookings == nil || f.Courts == nil || f.Vouchers == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	unit := &Unit{
		session:  session,
		bookings: f.Bookings,
		courts:   f.Courts,
		vouchers: f.Vouchers,
	}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.inTxn = true
	return unit, nil
}

type Unit struct {
	session mongo.Session
	inTxn   bool

	bookings domainbooking.Repository
	courts   domaincourts.Catalog
	vouchers domainvouchers.Catalog
}

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }
func (u *Unit) Courts() domaincourts.Catalog        { return u.courts }
func (u *Unit) Vouchers() domainvouchers.Catalog    { return u.vouchers }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if !u.inTxn {
		return nil
	}
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
