// Package promx exports eventx runtime measurements to Prometheus.
//
//	metrics := promx.New(promx.WithNamespace("game"))
//	rt, _ := eventx.NewRuntime(eventx.WithMetrics(metrics))
//	http.Handle("/metrics", metrics.Handler())
package promx

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abraxas-365/eventcraft/logx"
)

// Collector implements eventx.MetricsCollector on a Prometheus registry.
// Vectors are created on first use, one per metric name and label key set.
type Collector struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64
	logger    *logx.Logger
	dropped   logx.Once

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace prefixes every metric name.
func WithNamespace(ns string) Option {
	return func(c *Collector) { c.namespace = ns }
}

// WithRegistry registers the metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Collector) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// WithBuckets sets the histogram buckets, in seconds.
func WithBuckets(buckets []float64) Option {
	return func(c *Collector) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// WithLogger sets where registration conflicts are reported.
func WithLogger(l *logx.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a collector with its own registry unless WithRegistry is given.
func New(opts ...Option) *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		buckets:    []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005, .01},
		logger:     logx.GetLogger().Named("promx"),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// IncrementCounter adds one to metric.
func (c *Collector) IncrementCounter(metric string, labels map[string]string) {
	keys := labelKeys(labels)
	c.mu.Lock()
	vec, ok := c.counters[vecKey(metric, keys)]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      metric,
			Help:      "eventx counter " + metric,
		}, keys)
		vec = register(c, metric, vec)
		c.counters[vecKey(metric, keys)] = vec
	}
	c.mu.Unlock()

	if vec != nil {
		vec.With(labels).Inc()
	}
}

// RecordDuration observes duration in seconds on the histogram metric_seconds.
func (c *Collector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	name := metric + "_seconds"
	keys := labelKeys(labels)
	c.mu.Lock()
	vec, ok := c.histograms[vecKey(name, keys)]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      name,
			Help:      "eventx duration " + metric,
			Buckets:   c.buckets,
		}, keys)
		vec = register(c, name, vec)
		c.histograms[vecKey(name, keys)] = vec
	}
	c.mu.Unlock()

	if vec != nil {
		vec.With(labels).Observe(duration.Seconds())
	}
}

// RecordValue sets the gauge metric to value.
func (c *Collector) RecordValue(metric string, value float64, labels map[string]string) {
	keys := labelKeys(labels)
	c.mu.Lock()
	vec, ok := c.gauges[vecKey(metric, keys)]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      metric,
			Help:      "eventx value " + metric,
		}, keys)
		vec = register(c, metric, vec)
		c.gauges[vecKey(metric, keys)] = vec
	}
	c.mu.Unlock()

	if vec != nil {
		vec.With(labels).Set(value)
	}
}

// register adds vec to the registry. An identical collector registered
// earlier is reused; any other conflict drops the metric.
func register[V prometheus.Collector](c *Collector, name string, vec V) V {
	err := c.registry.Register(vec)
	if err == nil {
		return vec
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(V); ok {
			return existing
		}
	}
	c.dropped.Warn(c.logger, name, "dropping metric %s: %v", name, err)
	var zero V
	return zero
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func vecKey(name string, keys []string) string {
	return name + "{" + strings.Join(keys, ",") + "}"
}
