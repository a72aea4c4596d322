package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type storeStub struct {
	queue  []*Message
	sent   []string
	failed map[string]time.Time
}

func (s *storeStub) Claim(ctx context.Context, workerID string) (*Message, error) {
	if len(s.queue) == 0 {
		return nil, nil
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, nil
}

func (s *storeStub) MarkSent(ctx context.Context, id string) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *storeStub) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	if s.failed == nil {
		s.failed = map[string]time.Time{}
	}
	s.failed[id] = next
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type producerStub struct {
	out []published
	err error
}

func (p *producerStub) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

var workerNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newWorker(store Store, producer Producer) *Worker {
	return &Worker{
		Store:    store,
		Producer: producer,
		Backoff:  []time.Duration{time.Second, time.Minute},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return workerNow },
	}
}

func TestWorkerDrainPublishesCloudEvents(t *testing.T) {
	store := &storeStub{queue: []*Message{
		{ID: "m1", Name: "booking.updated", Aggregate: "INV-1", Payload: []byte(`{"Status":"confirmed"}`), Headers: map[string]string{"traceparent": "00-abc-def-01"}},
		{ID: "m2", Name: "slots.availability_updated", Aggregate: "3/2026-03-14", Payload: []byte(`{}`)},
	}}
	producer := &producerStub{}
	w := newWorker(store, producer)
	w.TopicPrefix = "prod."

	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() unexpected error: %v", err)
	}
	if len(store.sent) != 2 || len(producer.out) != 2 {
		t.Fatalf("sent=%v published=%d", store.sent, len(producer.out))
	}

	first := producer.out[0]
	if first.topic != "prod.booking.events.v1" || first.key != "INV-1" {
		t.Errorf("topic/key = %s/%s", first.topic, first.key)
	}
	if producer.out[1].topic != "prod.slots.events.v1" {
		t.Errorf("second topic = %s", producer.out[1].topic)
	}
	if first.headers["ce-type"] != "booking.updated.v1" || first.headers["content-type"] != "application/cloudevents+json" {
		t.Errorf("headers = %v", first.headers)
	}

	var env map[string]any
	if err := json.Unmarshal(first.payload, &env); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if env["id"] != "m1" || env["type"] != "booking.updated.v1" || env["source"] != "app://courtbook" || env["traceparent"] != "00-abc-def-01" {
		t.Errorf("envelope = %v", env)
	}
	data, _ := env["data"].(map[string]any)
	if data["Status"] != "confirmed" {
		t.Errorf("data = %v", env["data"])
	}
}

func TestWorkerBacksOffOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{name: "first retry", attempts: 0, want: time.Second},
		{name: "second retry", attempts: 1, want: time.Minute},
		{name: "capped", attempts: 7, want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &storeStub{queue: []*Message{{ID: "m1", Name: "booking.updated", Payload: []byte(`{}`), Attempts: tt.attempts}}}
			w := newWorker(store, &producerStub{err: errors.New("broker down")})

			claimed, err := w.ProcessOnce(context.Background())
			if err != nil || !claimed {
				t.Fatalf("ProcessOnce() = %v, %v", claimed, err)
			}
			if got := store.failed["m1"]; !got.Equal(workerNow.Add(tt.want)) {
				t.Errorf("next attempt = %v, want %v", got, workerNow.Add(tt.want))
			}
			if len(store.sent) != 0 {
				t.Error("failed message marked sent")
			}
		})
	}
}

func TestWorkerRejectsBadPayload(t *testing.T) {
	store := &storeStub{queue: []*Message{{ID: "m1", Name: "booking.updated", Payload: []byte(`not json`)}}}
	producer := &producerStub{}
	if err := newWorker(store, producer).Drain(context.Background()); err != nil {
		t.Fatalf("Drain() unexpected error: %v", err)
	}
	if _, ok := store.failed["m1"]; !ok || len(producer.out) != 0 {
		t.Errorf("failed=%v published=%d", store.failed, len(producer.out))
	}
}

func TestWorkerRunRequiresDependencies(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Errorf("Run() error = %v, want ErrWorkerNotConfigured", err)
	}
}
