// Package gojob moves call URL expiry notifications through a go-job queue.
package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-loop-client/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDCallURLExpiry = "loop.call_url.expiry"

	ParamExpirySeconds = "expiry_seconds"

	// TerminalMalformedExpiry marks expiry messages that can never succeed.
	TerminalMalformedExpiry job.TerminalErrorCode = "malformed_expiry"
)

// ExpiryMessage builds the execution message for a call URL expiry.
func ExpiryMessage(seconds int64) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDCallURLExpiry,
		ScriptPath:     JobIDCallURLExpiry,
		Parameters:     map[string]any{ParamExpirySeconds: seconds},
		IdempotencyKey: JobIDCallURLExpiry + ":" + strconv.FormatInt(seconds, 10),
	}
}

// ExpirySeconds reads the expiry parameter from msg. Brokers that round trip
// parameters through JSON hand it back as float64 or json.Number.
func ExpirySeconds(msg *job.ExecutionMessage) (int64, error) {
	if msg == nil {
		return 0, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDCallURLExpiry {
		return 0, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	switch value := msg.Parameters[ParamExpirySeconds].(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case float64:
		return int64(value), nil
	case json.Number:
		return value.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case nil:
		return 0, fmt.Errorf("gojob: %s parameter is required", ParamExpirySeconds)
	default:
		return 0, fmt.Errorf("gojob: unsupported %s type %T", ParamExpirySeconds, value)
	}
}

// ExpiryNotifier enqueues every call URL expiry it is told about.
type ExpiryNotifier struct {
	enqueuer queue.Enqueuer
}

func NewExpiryNotifier(enqueuer queue.Enqueuer) *ExpiryNotifier {
	return &ExpiryNotifier{enqueuer: enqueuer}
}

func (n *ExpiryNotifier) NoteCallURLExpiry(ctx context.Context, seconds int64) error {
	if n == nil || n.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	_, err := n.enqueuer.Enqueue(ctx, ExpiryMessage(seconds))
	return err
}

// ExpiryHandler receives dequeued expiries.
type ExpiryHandler func(ctx context.Context, seconds int64) error

// expiryTask is the job.Task the worker dispatches expiry messages to.
type expiryTask struct {
	handler ExpiryHandler
}

func (t *expiryTask) GetID() string                        { return JobIDCallURLExpiry }
func (t *expiryTask) GetPath() string                      { return JobIDCallURLExpiry }
func (t *expiryTask) GetConfig() job.Config                { return job.Config{} }
func (t *expiryTask) GetHandlerConfig() job.HandlerOptions { return job.HandlerOptions{} }
func (t *expiryTask) GetEngine() job.Engine                { return nil }

func (t *expiryTask) GetHandler() func() error {
	return func() error { return t.Execute(context.Background(), nil) }
}

func (t *expiryTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	seconds, err := ExpirySeconds(msg)
	if err != nil {
		return job.NewTerminalError(TerminalMalformedExpiry, err.Error(), err)
	}
	return t.handler(ctx, seconds)
}

// ConsumerOption configures an ExpiryConsumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	workerOpts []worker.Option
}

// WithRetryPolicy sets how failed expiries are nacked.
func WithRetryPolicy(policy worker.RetryPolicy) ConsumerOption {
	return func(cfg *consumerConfig) {
		if policy != nil {
			cfg.workerOpts = append(cfg.workerOpts, worker.WithRetryPolicy(policy))
		}
	}
}

// WithHooks attaches worker lifecycle hooks.
func WithHooks(hooks ...worker.Hook) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.workerOpts = append(cfg.workerOpts, worker.WithHooks(hooks...))
	}
}

// WithLogger routes the worker's own log lines through logger.
func WithLogger(logger glog.Logger) ConsumerOption {
	return func(cfg *consumerConfig) {
		if logger != nil {
			cfg.workerOpts = append(cfg.workerOpts, worker.WithLogger(jobLogger{Logger: logger}))
		}
	}
}

// WithWorkerOptions passes raw go-job worker options through.
func WithWorkerOptions(opts ...worker.Option) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.workerOpts = append(cfg.workerOpts, opts...)
	}
}

// ExpiryConsumer runs a go-job worker with the expiry task registered.
type ExpiryConsumer struct {
	worker *worker.Worker
}

func NewExpiryConsumer(dequeuer queue.Dequeuer, handler ExpiryHandler, opts ...ConsumerOption) (*ExpiryConsumer, error) {
	if dequeuer == nil || handler == nil {
		return nil, fmt.Errorf("gojob: expiry consumer requires a dequeuer and a handler")
	}
	cfg := consumerConfig{workerOpts: []worker.Option{worker.WithConcurrency(1)}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	w := worker.NewWorker(dequeuer, cfg.workerOpts...)
	if err := w.Register(&expiryTask{handler: handler}); err != nil {
		return nil, fmt.Errorf("gojob: register expiry task: %w", err)
	}
	return &ExpiryConsumer{worker: w}, nil
}

func (c *ExpiryConsumer) Start(ctx context.Context) error {
	return c.worker.Start(ctx)
}

func (c *ExpiryConsumer) Stop(ctx context.Context) error {
	return c.worker.Stop(ctx)
}

// Idler reports when a queue has nothing pending or in flight.
type Idler interface {
	WaitIdle(ctx context.Context) error
}

// Drain starts the worker, waits for q to settle and stops the worker. Hooks
// for every handled delivery have run when Drain returns.
func (c *ExpiryConsumer) Drain(ctx context.Context, q Idler) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	waitErr := q.WaitIdle(ctx)
	if err := c.Stop(context.WithoutCancel(ctx)); err != nil && waitErr == nil {
		return err
	}
	return waitErr
}

// jobLogger adapts a go-logger logger to the go-job logger contract.
type jobLogger struct {
	glog.Logger
}

func (l jobLogger) WithContext(ctx context.Context) job.Logger {
	return jobLogger{Logger: l.Logger.WithContext(ctx)}
}

var (
	_ core.CallURLExpiryNotifier = (*ExpiryNotifier)(nil)
	_ job.Task                   = (*expiryTask)(nil)
	_ job.Logger                 = jobLogger{}
)
