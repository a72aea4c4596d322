package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"courtbook/internal/infra/broker"
)

var ErrDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

// Consumer binds a durable queue to a topic exchange and feeds deliveries to
// the payment outcome dispatcher.
type Consumer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	dispatcher broker.OutcomeDispatcher
	logger     *slog.Logger
}

func NewConsumer(url, exchange, queue string, keys []string, dispatcher broker.OutcomeDispatcher, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare exchange: %w", err))
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("declare queue: %w", err))
	}
	for _, rk := range keys {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			return fail(fmt.Errorf("bind %s: %w", rk, err))
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name, dispatcher: dispatcher, logger: logger}, nil
}

// Run acknowledges handled deliveries and requeues the rest once.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	id := d.MessageId
	if id == "" {
		id = fmt.Sprintf("%s/%d", c.queue, d.DeliveryTag)
	}
	if err := c.dispatcher.Dispatch(ctx, d.Body, id); err != nil {
		c.logger.Warn("payment outcome failed",
			slog.String("message_id", id),
			slog.Bool("redelivered", d.Redelivered),
			slog.Any("err", err),
		)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
