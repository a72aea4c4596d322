package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courtbook/internal/app/commands"
	paymentsapp "courtbook/internal/app/handlers/payments"
	"courtbook/internal/infra/broker"
	"courtbook/internal/infra/broker/kafka"
	"courtbook/internal/infra/broker/rabbitmq"
	"courtbook/internal/infra/config"
	infraoutbox "courtbook/internal/infra/outbox"
)

// startMessaging starts the outbox relay and the payment outcome consumer
// selected by cfg. The returned func closes broker connections.
func startMessaging(ctx context.Context, cfg config.Config, store *storage, bus commands.Bus, logger *slog.Logger) (func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("broker close failed", "error", err)
			}
		}
	}

	producer, closeProducer, err := newProducer(cfg)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		closers = append(closers, closeProducer)
		worker := &infraoutbox.Worker{
			Store:       store.relay,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox relay stopped", "error", err)
			}
		}()
		logger.Info("outbox relay started", "relay", cfg.OutboxRelay)
	}

	dispatcher := broker.OutcomeDispatcher{Commands: bus, Logger: logger}
	switch cfg.PaymentSource {
	case config.RelayKafka:
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, kafka.OutcomeHandler{Dispatcher: dispatcher}, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		closers = append(closers, consumer.Close)
		go func() {
			if err := consumer.Run(ctx, []string{cfg.KafkaPaymentTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payment consumer stopped", "error", err)
			}
		}()
	case config.RelayRabbitMQ:
		keys := []string{paymentsapp.OutcomePaid, paymentsapp.OutcomeAuthFailed}
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.PaymentExchange, cfg.PaymentQueue, keys, dispatcher, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("rabbitmq consumer: %w", err)
		}
		closers = append(closers, consumer.Close)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payment consumer stopped", "error", err)
			}
		}()
	}
	if cfg.PaymentSource != config.RelayNone {
		logger.Info("payment consumer started", "source", cfg.PaymentSource)
	}
	return closeAll, nil
}

func newProducer(cfg config.Config) (infraoutbox.Producer, func() error, error) {
	switch cfg.OutboxRelay {
	case config.RelayKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.ServiceName)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		return p, p.Close, nil
	case config.RelayRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		return p, p.Close, nil
	}
	return nil, nil, nil
}
