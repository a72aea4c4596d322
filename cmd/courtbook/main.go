package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/expiry"
	bookingapp "courtbook/internal/app/handlers/booking"
	paymentsapp "courtbook/internal/app/handlers/payments"
	"courtbook/internal/app/middleware"
	"courtbook/internal/app/outbox"
	"courtbook/internal/app/queries"
	"courtbook/internal/domain/pricing"
	"courtbook/internal/infra/broadcast"
	"courtbook/internal/infra/config"
	"courtbook/internal/infra/fixtures"
	ginserver "courtbook/internal/infra/http/gin"
	"courtbook/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("courtbook stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}()

	fixturesPath := cfg.CatalogFixtures
	if fixturesPath == "" {
		fixturesPath = defaultCatalogFixturesPath()
	}
	if err := fixtures.Load(ctx, fixturesPath, store.catalogs, logger); err != nil {
		logger.Warn("catalog fixtures load failed", "error", err, "path", fixturesPath)
	}

	hub := broadcast.NewHub(cfg.SubscriberBuffer, logger)
	go hub.Run(ctx)

	app := buildApplication(cfg, store, hub, logger)

	sweeper := &expiry.Sweeper{Commands: app.commands, Interval: cfg.SweepInterval, Logger: logger}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("expiry sweeper stopped", "error", err)
		}
	}()
	logger.Info("expiry sweeper started",
		"grace_window", cfg.GraceWindow,
		"interval", cfg.SweepInterval,
		"max_reclaim_latency", expiry.MaxReclaimLatency(cfg.GraceWindow, cfg.SweepInterval),
	)
	if store.housekeeping != nil {
		go store.housekeeping(ctx)
	}

	closeMessaging, err := startMessaging(ctx, cfg, store, app.commands, logger)
	if err != nil {
		return err
	}
	defer closeMessaging()

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
		logger.Warn("JWT_SECRET not set, using an ephemeral development secret")
	}
	handlers := ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: app.commands, Queries: app.queries, Logger: logger},
		Slots:          ginserver.SlotsHandler{Queries: app.queries, Logger: logger},
		Events:         ginserver.EventsHandler{Hub: hub, KeepAlive: cfg.KeepAliveInterval, Logger: logger},
		Admin:          ginserver.AdminHandler{Sweeper: sweeper, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: secret, Logger: logger}.Handle,
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: store.checks}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "relay", cfg.OutboxRelay)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}

type application struct {
	commands commands.Bus
	queries  queries.Bus
}

func buildApplication(cfg config.Config, store *storage, hub *broadcast.Hub, logger *slog.Logger) application {
	policy := pricing.Policy{ServiceFee: cfg.ServiceFee, ProtectionCost: cfg.ProtectionCost}
	encoder := outbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	createHandler := &bookingapp.CreateBookingHandler{
		UoWFactory:    store.factory,
		Outbox:        store.outbox,
		Encoder:       encoder,
		Policy:        policy,
		GraceWindow:   cfg.GraceWindow,
		InvoicePrefix: cfg.InvoicePrefix,
		Logger:        logger,
	}
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingKey, createHandler)
	updateHandler := &bookingapp.UpdateBookingStatusHandler{
		UoWFactory: store.factory,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Policy:     policy,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, bookingapp.UpdateBookingStatusKey, updateHandler)
	expireHandler := &bookingapp.ExpireStaleHandler{
		UoWFactory: store.factory,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, bookingapp.ExpireStaleKey, expireHandler)
	outcomeHandler := &paymentsapp.RecordOutcomeHandler{
		UoWFactory: store.factory,
		Inbox:      store.inbox,
		Updater:    updateHandler,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, paymentsapp.RecordOutcomeKey, outcomeHandler)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetBookingKey, &bookingapp.GetBookingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, bookingapp.ListUserBookingsKey, &bookingapp.ListUserBookingsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, bookingapp.AvailableSlotsKey, &bookingapp.AvailableSlotsHandler{UoWFactory: store.factory})

	tracer := obs.Tracer()
	return application{
		commands: middleware.ChainCommands(
			commandBus,
			middleware.Tracing(tracer),
			middleware.Validation(),
			middleware.Idempotency(store.idempotency, nil),
			middleware.PublishCommitted(broadcast.DomainPublisher{Hub: hub, Logger: logger}, logger),
			middleware.Transaction(store.factory, nil),
		),
		queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryTracing(tracer),
			middleware.QueryValidation(),
		),
	}
}

func defaultCatalogFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "catalog.json"),
		filepath.Join("..", "..", "data", "catalog.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
