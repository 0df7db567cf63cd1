package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	adapterout "readsync/internal/modules/sync/adapter/out"
	"readsync/internal/modules/sync/domain"
	"readsync/internal/modules/sync/service"
	"readsync/internal/platform/logging"
)

type memQueue struct {
	mu       sync.Mutex
	pending  []domain.Envelope
	enqueues int
}

func (q *memQueue) Enqueue(_ context.Context, env domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, env)
	q.enqueues++
	return nil
}

func (q *memQueue) List(_ context.Context) ([]domain.Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Envelope, len(q.pending))
	copy(out, q.pending)
	return out, nil
}

func (q *memQueue) Remove(_ context.Context, envelopeID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.pending[:0]
	for _, env := range q.pending {
		if env.ID != envelopeID {
			kept = append(kept, env)
		}
	}
	q.pending = kept
	return nil
}

func (q *memQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}

func testEnvelope(t *testing.T, id string) domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(id, domain.KindPageDelta, "phone", time.Now().UTC(), domain.PageDelta{
		SessionID: "s1", Page: 42, At: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func TestSendImmediateFallsBackToQueue(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	queue := &memQueue{}
	outbox := service.NewOutbox(link, queue, logging.Nop())

	// Not connected, so every send is unreachable.
	if err := outbox.SendImmediate(context.Background(), testEnvelope(t, "e1")); err != nil {
		t.Fatalf("fallback should absorb the transport failure: %v", err)
	}
	if n, _ := queue.Len(context.Background()); n != 1 {
		t.Fatalf("expected envelope parked in queue, len=%d", n)
	}
}

func TestSendImmediateSkipsQueueWhenReachable(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	var delivered []domain.Envelope
	var mu sync.Mutex
	link.Connect(
		func(_ context.Context, env domain.Envelope) error {
			mu.Lock()
			delivered = append(delivered, env)
			mu.Unlock()
			return nil
		},
		func(_ context.Context, _ domain.FullState) error { return nil },
	)
	queue := &memQueue{}
	outbox := service.NewOutbox(link, queue, logging.Nop())

	if err := outbox.SendImmediate(context.Background(), testEnvelope(t, "e1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0].ID != "e1" {
		t.Fatalf("expected direct delivery, got %d", len(delivered))
	}
	if queue.enqueues != 0 {
		t.Fatalf("expected no queue touch, enqueues=%d", queue.enqueues)
	}
}

func TestSendGuaranteedQueuesThenFlushes(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	var delivered int
	var mu sync.Mutex
	link.Connect(
		func(_ context.Context, _ domain.Envelope) error {
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		},
		func(_ context.Context, _ domain.FullState) error { return nil },
	)
	queue := &memQueue{}
	outbox := service.NewOutbox(link, queue, logging.Nop())

	if err := outbox.SendGuaranteed(context.Background(), testEnvelope(t, "e1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	mu.Lock()
	got := delivered
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected opportunistic flush to deliver, got %d", got)
	}
	if queue.enqueues != 1 {
		t.Fatalf("expected durable enqueue before flush, enqueues=%d", queue.enqueues)
	}
	if n, _ := queue.Len(context.Background()); n != 0 {
		t.Fatalf("expected queue drained, len=%d", n)
	}
}

func TestSendGuaranteedSurvivesUnreachablePeer(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	link.SetFailing(true)
	queue := &memQueue{}
	outbox := service.NewOutbox(link, queue, logging.Nop())

	if err := outbox.SendGuaranteed(context.Background(), testEnvelope(t, "e1")); err != nil {
		t.Fatalf("guaranteed send must not fail on transport: %v", err)
	}
	if n, _ := queue.Len(context.Background()); n != 1 {
		t.Fatalf("expected envelope retained, len=%d", n)
	}
}

func TestFlushStopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	var mu sync.Mutex
	delivered := 0
	link.Connect(
		func(_ context.Context, _ domain.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			if delivered >= 1 {
				return fmt.Errorf("peer went out of range")
			}
			delivered++
			return nil
		},
		func(_ context.Context, _ domain.FullState) error { return nil },
	)
	queue := &memQueue{}
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if err := queue.Enqueue(ctx, testEnvelope(t, fmt.Sprintf("e%d", i))); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	outbox := service.NewOutbox(link, queue, logging.Nop())

	sent, err := outbox.Flush(ctx)
	if err == nil {
		t.Fatal("expected flush to report the transport failure")
	}
	if sent != 1 {
		t.Fatalf("expected one envelope sent before the failure, got %d", sent)
	}
	if n, _ := queue.Len(ctx); n != 2 {
		t.Fatalf("expected unsent envelopes to stay durable, len=%d", n)
	}
}

func TestFlushDrainsAfterRecovery(t *testing.T) {
	t.Parallel()
	link := adapterout.NewLoopbackLink()
	link.Connect(
		func(_ context.Context, _ domain.Envelope) error { return nil },
		func(_ context.Context, _ domain.FullState) error { return nil },
	)
	link.SetFailing(true)
	queue := &memQueue{}
	ctx := context.Background()
	outbox := service.NewOutbox(link, queue, logging.Nop())

	for i := 1; i <= 3; i++ {
		if err := outbox.SendGuaranteed(ctx, testEnvelope(t, fmt.Sprintf("e%d", i))); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if n, _ := queue.Len(ctx); n != 3 {
		t.Fatalf("expected three pending, len=%d", n)
	}

	link.SetFailing(false)
	sent, err := outbox.Flush(ctx)
	if err != nil {
		t.Fatalf("flush after recovery: %v", err)
	}
	if sent != 3 {
		t.Fatalf("expected three sent, got %d", sent)
	}
	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("expected queue empty, len=%d", n)
	}
}
