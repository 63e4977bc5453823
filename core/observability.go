package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Observer records one counter, one histogram and one structured log line per
// completed operation.
type Observer struct {
	prefix  string
	logger  Logger
	metrics MetricsRecorder
}

func NewObserver(prefix string, logger Logger, metrics MetricsRecorder) *Observer {
	prefix = normalizeOperation(prefix)
	if prefix == "" {
		prefix = DefaultServiceName
	}
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &Observer{prefix: prefix, logger: logger, metrics: metrics}
}

func (o *Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if o == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := RedactSensitiveMap(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		enrichErrorFields(contextFields, err)
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"method", "status_code", "lang"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	o.metrics.IncCounter(ctx, o.prefix+"."+operation+".total", 1, cloneTags(tags))
	o.metrics.ObserveHistogram(ctx, o.prefix+"."+operation+".duration_ms", float64(elapsed), cloneTags(tags))

	if err != nil {
		o.log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.log(ctx, "info", operation+" succeeded", contextFields)
}

func (o *Observer) Debug(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, "debug", message, RedactSensitiveMap(fields))
}

func (o *Observer) Warn(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, "warn", message, RedactSensitiveMap(fields))
}

func (o *Observer) log(ctx context.Context, level string, message string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func enrichErrorFields(fields map[string]any, err error) {
	fields["error"] = err.Error()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return
	}
	fields["error_category"] = fmt.Sprint(rich.Category)
	if rich.TextCode != "" {
		fields["error_text_code"] = rich.TextCode
	}
	if rich.Code != 0 {
		fields["error_code"] = rich.Code
	}
	if len(rich.Metadata) > 0 {
		fields["error_metadata"] = RedactSensitiveMap(rich.Metadata)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
