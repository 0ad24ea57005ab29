package eventx

import (
	"time"

	"github.com/Abraxas-365/eventcraft/logx"
)

// Logger receives diagnostics. *logx.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector receives runtime measurements. Implementations must be
// safe for concurrent use.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// Metric names reported to the MetricsCollector.
const (
	MetricBakes           = "eventx_bakes_total"
	MetricBakeDuration    = "eventx_bake_duration"
	MetricBakedCallbacks  = "eventx_baked_callbacks"
	MetricHandlerFailures = "eventx_handler_failures_total"
	MetricAccessDenied    = "eventx_access_denied_total"
)

type nopMetrics struct{}

func (nopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (nopMetrics) IncrementCounter(string, map[string]string)              {}
func (nopMetrics) RecordValue(string, float64, map[string]string)          {}

func defaultLogger() Logger {
	return logx.GetLogger().Named("eventx")
}
