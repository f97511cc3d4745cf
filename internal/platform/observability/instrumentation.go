package observability

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan logs the start of an operation and returns the function that
// closes it. Extra attrs (request id, model id) are repeated on both lines so
// a span can be matched up by grepping either end.
func StartSpan(ctx context.Context, component, operation string, attrs ...slog.Attr) (context.Context, func(error)) {
	logger, _ := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	base := make([]slog.Attr, 0, len(attrs)+2)
	base = append(base, slog.String("component", component), slog.String("operation", operation))
	base = append(base, attrs...)

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start", base...)

	return ctx, func(err error) {
		level := slog.LevelDebug
		end := append(make([]slog.Attr, 0, len(base)+2), base...)
		end = append(end, slog.Duration("duration", time.Since(start)))
		if err != nil {
			level = slog.LevelError
			end = append(end, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "obs span end", end...)
	}
}

// RecordMetric emits a metric datapoint as a log line. Labels are written in
// key order.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, _ := currentLogger()
	if logger == nil {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+2)
	attrs = append(attrs, slog.String("metric", name), slog.Float64("value", value))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, labels[k]))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}
