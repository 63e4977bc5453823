package gojob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

func TestExpiryNotifier_EnqueuesExecutionMessage(t *testing.T) {
	q := NewMemoryQueue(4)
	if err := NewExpiryNotifier(q).NoteCallURLExpiry(context.Background(), 60*60*60); err != nil {
		t.Fatalf("note expiry: %v", err)
	}
	delivery, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	msg := delivery.Message()
	if msg.JobID != JobIDCallURLExpiry {
		t.Fatalf("expected job id %q, got %q", JobIDCallURLExpiry, msg.JobID)
	}
	if msg.IdempotencyKey != "loop.call_url.expiry:216000" {
		t.Fatalf("unexpected idempotency key %q", msg.IdempotencyKey)
	}
	seconds, err := ExpirySeconds(msg)
	if err != nil || seconds != 216000 {
		t.Fatalf("expected 216000, got %d (%v)", seconds, err)
	}
}

func TestExpiryNotifier_RequiresEnqueuer(t *testing.T) {
	if err := NewExpiryNotifier(nil).NoteCallURLExpiry(context.Background(), 1); err == nil {
		t.Fatalf("expected missing enqueuer error")
	}
}

func TestExpirySeconds_AcceptsBrokerEncodings(t *testing.T) {
	tests := map[string]any{
		"int64":       int64(90),
		"int":         90,
		"float64":     float64(90),
		"json number": json.Number("90"),
		"string":      " 90 ",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			msg := &job.ExecutionMessage{JobID: JobIDCallURLExpiry, Parameters: map[string]any{ParamExpirySeconds: value}}
			got, err := ExpirySeconds(msg)
			if err != nil || got != 90 {
				t.Fatalf("expected 90, got %d (%v)", got, err)
			}
		})
	}

	if _, err := ExpirySeconds(&job.ExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected unexpected job id error")
	}
	if _, err := ExpirySeconds(&job.ExecutionMessage{JobID: JobIDCallURLExpiry}); err == nil {
		t.Fatalf("expected missing parameter error")
	}
}

func drain(t *testing.T, consumer *ExpiryConsumer, q *MemoryQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := consumer.Drain(ctx, q); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestExpiryConsumer_AcksHandledMessage(t *testing.T) {
	q := NewMemoryQueue(4)
	if _, err := q.Enqueue(context.Background(), ExpiryMessage(120)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	hook := &capturingHook{}

	var seen atomic.Int64
	consumer, err := NewExpiryConsumer(q, func(_ context.Context, seconds int64) error {
		seen.Store(seconds)
		return nil
	}, WithHooks(hook))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	drain(t, consumer, q)
	if seen.Load() != 120 {
		t.Fatalf("expected handler to see 120, got %d", seen.Load())
	}
	if q.Len() != 0 || len(q.DeadLetters()) != 0 {
		t.Fatalf("expected queue to be drained")
	}
	started, succeeded, _, _ := hook.counts()
	if started != 1 || succeeded != 1 {
		t.Fatalf("unexpected hook counts %d/%d", started, succeeded)
	}
}

func TestExpiryConsumer_RetriesThenDeadLetters(t *testing.T) {
	q := NewMemoryQueue(4)
	if _, err := q.Enqueue(context.Background(), ExpiryMessage(30)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	hook := &capturingHook{}
	var calls atomic.Int32
	consumer, err := NewExpiryConsumer(q, func(context.Context, int64) error {
		calls.Add(1)
		return errors.New("unavailable")
	},
		WithRetryPolicy(worker.DefaultRetryPolicy{
			MaxAttempts: 2,
			Backoff:     worker.BackoffConfig{Strategy: worker.BackoffFixed, Interval: time.Millisecond},
		}),
		WithHooks(hook),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	drain(t, consumer, q)
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	_, _, failed, retried := hook.counts()
	if retried != 1 || failed != 1 {
		t.Fatalf("expected one retry and one failure, got %d/%d", retried, failed)
	}
	last := hook.lastEvent()
	if last.Attempt != 2 || last.Err == nil {
		t.Fatalf("unexpected final event %#v", last)
	}
	if q.Len() != 0 || len(q.DeadLetters()) != 1 {
		t.Fatalf("expected message to be dead lettered, pending=%d dead=%d", q.Len(), len(q.DeadLetters()))
	}
}

func TestExpiryConsumer_DeadLettersMalformedMessageWithoutRetry(t *testing.T) {
	q := NewMemoryQueue(4)
	malformed := &job.ExecutionMessage{JobID: JobIDCallURLExpiry, ScriptPath: JobIDCallURLExpiry}
	if _, err := q.Enqueue(context.Background(), malformed); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var calls atomic.Int32
	consumer, err := NewExpiryConsumer(q, func(context.Context, int64) error {
		calls.Add(1)
		return nil
	}, WithRetryPolicy(worker.DefaultRetryPolicy{MaxAttempts: 5}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	drain(t, consumer, q)
	if calls.Load() != 0 {
		t.Fatalf("handler must not run for malformed messages")
	}
	if len(q.DeadLetters()) != 1 {
		t.Fatalf("expected malformed message to be dead lettered")
	}
}

func TestExpiryConsumer_DeadLettersUnknownJob(t *testing.T) {
	q := NewMemoryQueue(4)
	if _, err := q.Enqueue(context.Background(), &job.ExecutionMessage{JobID: "other.job"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	consumer, err := NewExpiryConsumer(q, func(context.Context, int64) error { return nil })
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	drain(t, consumer, q)
	dead := q.DeadLetters()
	if len(dead) != 1 || dead[0].JobID != "other.job" {
		t.Fatalf("expected unknown job to be dead lettered, got %#v", dead)
	}
}

func TestExpiryConsumer_WorkerLogsThroughGoLogger(t *testing.T) {
	q := NewMemoryQueue(4)
	if _, err := q.Enqueue(context.Background(), &job.ExecutionMessage{JobID: "other.job"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var buf bytes.Buffer
	logger := glog.NewLogger(glog.WithWriter(&buf), glog.WithLevel(glog.Debug)).GetLogger("jobs")
	consumer, err := NewExpiryConsumer(q, func(context.Context, int64) error { return nil }, WithLogger(logger))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	drain(t, consumer, q)
	if !strings.Contains(buf.String(), "other.job") {
		t.Fatalf("expected worker log lines in go-logger output, got %q", buf.String())
	}
}

func TestNewExpiryConsumer_RequiresDequeuerAndHandler(t *testing.T) {
	if _, err := NewExpiryConsumer(nil, func(context.Context, int64) error { return nil }); err == nil {
		t.Fatalf("expected missing dequeuer error")
	}
	if _, err := NewExpiryConsumer(NewMemoryQueue(1), nil); err == nil {
		t.Fatalf("expected missing handler error")
	}
}

func TestMemoryQueue_NackDispositions(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	if _, err := q.Enqueue(ctx, ExpiryMessage(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	delivery, _ := q.Dequeue(ctx)
	if err := delivery.Nack(ctx, queue.NackOptions{}); err == nil {
		t.Fatalf("expected missing disposition to be rejected")
	}
	if err := delivery.Nack(ctx, queue.NackOptions{Disposition: queue.NackDispositionRetry}); err != nil {
		t.Fatalf("retry nack: %v", err)
	}

	redelivery, _ := q.Dequeue(ctx)
	attempts, ok := redelivery.(interface{ Attempts() int })
	if !ok || attempts.Attempts() != 2 {
		t.Fatalf("expected second attempt on redelivery")
	}
	if err := redelivery.Nack(ctx, queue.NackOptions{Disposition: queue.NackDispositionCanceled}); err != nil {
		t.Fatalf("cancel nack: %v", err)
	}
	if len(q.DeadLetters()) != 0 {
		t.Fatalf("expected canceled message to be dropped")
	}
	if err := q.WaitIdle(ctx); err != nil {
		t.Fatalf("expected idle queue: %v", err)
	}
}

func TestMemoryQueue_FullAndCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	receipt, err := q.Enqueue(context.Background(), ExpiryMessage(1))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if receipt.DispatchID == "" || receipt.EnqueuedAt.IsZero() {
		t.Fatalf("expected populated receipt, got %#v", receipt)
	}
	if _, err := q.Enqueue(context.Background(), ExpiryMessage(2)); err == nil {
		t.Fatalf("expected full queue error")
	}
	if _, err := q.Enqueue(context.Background(), &job.ExecutionMessage{}); err == nil {
		t.Fatalf("expected message without job id to be rejected")
	}
	_, _ = q.Dequeue(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := q.WaitIdle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected unacked delivery to keep the queue busy, got %v", err)
	}
}

type capturingHook struct {
	mu                                  sync.Mutex
	started, succeeded, failed, retried int
	last                                worker.Event
}

func (h *capturingHook) record(counter *int, event worker.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*counter++
	h.last = event
}

func (h *capturingHook) counts() (started, succeeded, failed, retried int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started, h.succeeded, h.failed, h.retried
}

func (h *capturingHook) lastEvent() worker.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *capturingHook) OnStart(_ context.Context, event worker.Event)   { h.record(&h.started, event) }
func (h *capturingHook) OnSuccess(_ context.Context, event worker.Event) { h.record(&h.succeeded, event) }
func (h *capturingHook) OnFailure(_ context.Context, event worker.Event) { h.record(&h.failed, event) }
func (h *capturingHook) OnRetry(_ context.Context, event worker.Event)   { h.record(&h.retried, event) }
