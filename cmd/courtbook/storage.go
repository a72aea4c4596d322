package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paymentsapp "courtbook/internal/app/handlers/payments"
	"courtbook/internal/app/middleware"
	appoutbox "courtbook/internal/app/outbox"
	"courtbook/internal/app/uow"
	"courtbook/internal/infra/config"
	mongodb "courtbook/internal/infra/db/mongo"
	"courtbook/internal/infra/db/postgres"
	"courtbook/internal/infra/fixtures"
	"courtbook/internal/infra/inbox"
	"courtbook/internal/infra/obs"
	infraoutbox "courtbook/internal/infra/outbox"
	"courtbook/internal/infra/storage/memory"
)

const (
	inboxConsumer    = "courtbook-payments"
	memoryOutboxSize = 10_000
)

// storage bundles everything one driver provides.
type storage struct {
	factory      uow.UoWFactory
	outbox       appoutbox.Outbox
	relay        infraoutbox.Store
	inbox        paymentsapp.Inbox
	idempotency  middleware.IdempotencyStore
	catalogs     fixtures.CatalogWriter
	checks       map[string]obs.Check
	housekeeping func(ctx context.Context)
	close        func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return openMemory(cfg), nil
	}
}

func openMemory(cfg config.Config) *storage {
	bookings := memory.NewBookingRepository()
	courts := memory.NewCourtCatalog()
	vouchers := memory.NewVoucherCatalog()
	box := memory.NewOutbox(memoryOutboxSize)
	return &storage{
		factory:     memory.Factory{Bookings: bookings, Courts: courts, Vouchers: vouchers},
		outbox:      box,
		relay:       box,
		inbox:       memory.NewInbox(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		catalogs:    memory.Catalogs{CourtCatalog: courts, VoucherCatalog: vouchers},
		checks:      map[string]obs.Check{},
		close:       func(context.Context) error { return nil },
	}
}

func openMongo(ctx context.Context, cfg config.Config) (*storage, error) {
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	db := client.DB
	bookings := mongodb.NewBookingRepository(db)
	courts := mongodb.NewCourtCatalog(db)
	vouchers := mongodb.NewVoucherCatalog(db)
	box := infraoutbox.NewMongoStore(db)
	idem := mongodb.NewIdempotencyStore(db, cfg.IdempotencyTTL)
	processed := inbox.NewStore(db, inboxConsumer)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for name, ensure := range map[string]func(context.Context) error{
		"bookings":    bookings.EnsureIndexes,
		"vouchers":    vouchers.EnsureIndexes,
		"outbox":      box.EnsureIndexes,
		"idempotency": idem.EnsureIndexes,
		"inbox":       processed.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("mongo %s indexes: %w", name, err)
		}
	}

	return &storage{
		factory:     mongodb.Factory{DB: db, Bookings: bookings, Courts: courts, Vouchers: vouchers},
		outbox:      box,
		relay:       box,
		inbox:       processed,
		idempotency: idem,
		catalogs:    mongodb.Catalogs{CourtCatalog: courts, VoucherCatalog: vouchers},
		checks:      map[string]obs.Check{"mongo": client.Ping},
		close:       client.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	db, err := postgres.Open(cfg.PostgresDSN, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = postgres.Close(db)
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	bookings := postgres.NewBookingRepository(db)
	courts := postgres.NewCourtCatalog(db)
	vouchers := postgres.NewVoucherCatalog(db)
	box := postgres.NewOutboxStore(db)
	idem := postgres.NewIdempotencyStore(db, cfg.IdempotencyTTL)

	return &storage{
		factory:      postgres.Factory{DB: db, Bookings: bookings, Courts: courts, Vouchers: vouchers},
		outbox:       box,
		relay:        box,
		inbox:        postgres.NewInboxStore(db, inboxConsumer),
		idempotency:  idem,
		catalogs:     postgres.Catalogs{CourtCatalog: courts, VoucherCatalog: vouchers},
		checks:       map[string]obs.Check{"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
		housekeeping: purgeIdempotency(idem, logger),
		close:        func(context.Context) error { return postgres.Close(db) },
	}, nil
}

// purgeIdempotency deletes expired replay records once an hour; Mongo does
// this with a TTL index.
func purgeIdempotency(store *postgres.IdempotencyStore, logger *slog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.Purge(ctx)
				if err != nil {
					logger.Warn("idempotency purge failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("idempotency records purged", "count", n)
				}
			}
		}
	}
}
