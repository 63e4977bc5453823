package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

// LoggingHook logs worker lifecycle events.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("job failed", append(eventFields(event), "error", event.Err)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("job retry scheduled", append(eventFields(event), "error", event.Err, "delay", event.Delay)...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	return fields
}

var _ worker.Hook = (*LoggingHook)(nil)
