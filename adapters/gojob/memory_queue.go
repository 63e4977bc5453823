package gojob

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const idlePollInterval = 5 * time.Millisecond

// MemoryQueue is an in-process buffered queue used by the CLI and tests.
// Retry nacks put the message back at the tail after the requested delay.
// Dead lettered and failed messages are kept aside, canceled ones dropped.
type MemoryQueue struct {
	entries chan *memoryEntry
	seq     atomic.Int64

	mu sync.Mutex
	// outstanding counts accepted messages not yet acked or given up on
	outstanding int
	deadLetter  []*job.ExecutionMessage
}

type memoryEntry struct {
	msg      *job.ExecutionMessage
	attempts int
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &MemoryQueue{entries: make(chan *memoryEntry, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if err := queue.ValidateRequiredMessage(msg); err != nil {
		return queue.EnqueueReceipt{}, err
	}
	q.mu.Lock()
	q.outstanding++
	q.mu.Unlock()
	if err := q.push(ctx, &memoryEntry{msg: msg, attempts: 1}); err != nil {
		q.settle(nil)
		return queue.EnqueueReceipt{}, err
	}
	return queue.EnqueueReceipt{
		DispatchID: "memory-" + strconv.FormatInt(q.seq.Add(1), 10),
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (q *MemoryQueue) push(ctx context.Context, entry *memoryEntry) error {
	select {
	case q.entries <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("gojob: memory queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	select {
	case entry := <-q.entries:
		return &memoryDelivery{queue: q, entry: entry}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of pending messages.
func (q *MemoryQueue) Len() int {
	return len(q.entries)
}

// WaitIdle blocks until every accepted message has been acked, dead lettered
// or dropped.
func (q *MemoryQueue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if q.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *MemoryQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding == 0
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, len(q.deadLetter))
	copy(out, q.deadLetter)
	return out
}

func (q *MemoryQueue) settle(deadLetter *job.ExecutionMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstanding--
	if deadLetter != nil {
		q.deadLetter = append(q.deadLetter, deadLetter)
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	entry *memoryEntry
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.entry.msg
}

// Attempts is read by the go-job worker to number retries.
func (d *memoryDelivery) Attempts() int {
	return d.entry.attempts
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() { d.queue.settle(nil) })
	return nil
}

func (d *memoryDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	if err := queue.ValidateNackOptions(opts); err != nil {
		return err
	}
	var err error
	d.once.Do(func() {
		switch opts.Disposition {
		case queue.NackDispositionCanceled:
			d.queue.settle(nil)
			return
		case queue.NackDispositionDeadLetter, queue.NackDispositionFailed:
			d.queue.settle(d.entry.msg)
			return
		}
		next := &memoryEntry{msg: d.entry.msg, attempts: d.entry.attempts + 1}
		if opts.Delay <= 0 {
			err = d.requeue(ctx, next)
			return
		}
		time.AfterFunc(opts.Delay, func() {
			_ = d.requeue(context.WithoutCancel(ctx), next)
		})
	})
	return err
}

// requeue dead letters the message when the queue has no room for it.
func (d *memoryDelivery) requeue(ctx context.Context, next *memoryEntry) error {
	if err := d.queue.push(ctx, next); err != nil {
		d.queue.settle(next.msg)
		return err
	}
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
