package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

var ErrHubStopped = errors.New("broadcast: hub stopped")

// Subscription is one live client stream. Messages arrive on C until the
// subscription is removed or the hub stops, after which C is closed.
type Subscription struct {
	ID      uint64
	ch      chan Message
	once    sync.Once
	dropped atomic.Int64
}

func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Dropped counts messages skipped because the subscriber fell behind.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

type publishRequest struct {
	msg   Message
	reply chan Delivery
}

// Delivery counts one Publish: an attempt per registered subscriber, of which
// Dropped hit a full buffer.
type Delivery struct {
	Attempts int
	Dropped  int
}

func (d Delivery) Delivered() int { return d.Attempts - d.Dropped }

// Hub fans messages out to every subscriber. A single goroutine started by Run
// owns the registry; all other methods talk to it over channels.
type Hub struct {
	Buffer int
	Logger *slog.Logger

	nextID      atomic.Uint64
	initOnce    sync.Once
	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	publish     chan publishRequest
	count       chan chan int
	done        chan struct{}
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	h := &Hub{Buffer: buffer, Logger: logger}
	h.init()
	return h
}

func (h *Hub) init() {
	h.initOnce.Do(func() {
		h.subscribe = make(chan *Subscription)
		h.unsubscribe = make(chan *Subscription)
		h.publish = make(chan publishRequest)
		h.count = make(chan chan int)
		h.done = make(chan struct{})
	})
}

// Run serves the hub until ctx is cancelled, then closes every subscription.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	h.init()
	subs := make(map[*Subscription]struct{})
	defer func() {
		close(h.done)
		for sub := range subs {
			close(sub.ch)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.subscribe:
			subs[sub] = struct{}{}
		case sub := <-h.unsubscribe:
			if _, ok := subs[sub]; ok {
				delete(subs, sub)
				close(sub.ch)
			}
		case req := <-h.publish:
			d := Delivery{Attempts: len(subs)}
			for sub := range subs {
				select {
				case sub.ch <- req.msg:
				default:
					d.Dropped++
					sub.dropped.Add(1)
					h.logger().Warn("subscriber buffer full, dropping message", "subscriber", sub.ID, "type", req.msg.Type)
				}
			}
			req.reply <- d
		case reply := <-h.count:
			reply <- len(subs)
		}
	}
}

// Subscribe registers a new subscriber. Once it returns, every later Publish
// reaches the subscription.
func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	h.init()
	sub := &Subscription{ID: h.nextID.Add(1), ch: make(chan Message, h.buffer())}
	select {
	case h.subscribe <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes sub. Repeated calls are no-ops.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.init()
	sub.once.Do(func() {
		select {
		case h.unsubscribe <- sub:
		case <-h.done:
		}
	})
}

// Publish attempts delivery of msg to every current subscriber without
// blocking on any of them. A subscriber with a full buffer loses msg and is
// counted in Dropped.
func (h *Hub) Publish(ctx context.Context, msg Message) (Delivery, error) {
	h.init()
	req := publishRequest{msg: msg, reply: make(chan Delivery, 1)}
	select {
	case h.publish <- req:
	case <-h.done:
		return Delivery{}, ErrHubStopped
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
	return <-req.reply, nil
}

// Subscribers reports the registry size.
func (h *Hub) Subscribers(ctx context.Context) (int, error) {
	h.init()
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-h.done:
		return 0, ErrHubStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-reply, nil
}

func (h *Hub) buffer() int {
	if h.Buffer <= 0 {
		return DefaultBuffer
	}
	return h.Buffer
}

func (h *Hub) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
