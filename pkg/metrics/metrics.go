// Package metrics holds the Prometheus collectors of a runtime.
//
// Collectors are created per Metrics value and registered on the
// configured Registerer, so several runtimes can live in one process when
// each gets its own registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "islands").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "islands",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Navigation results.
const (
	ResultCommitted  = "committed"
	ResultStale      = "stale"
	ResultFailed     = "failed"
	ResultPrefetched = "prefetched"
)

// Metrics is the set of runtime collectors.
type Metrics struct {
	islandsHydrated    prometheus.Counter
	directiveErrors    *prometheus.CounterVec
	warnings           *prometheus.CounterVec
	budgetOverflows    prometheus.Counter
	navigations        *prometheus.CounterVec
	navigationDuration prometheus.Histogram
	flushDuration      prometheus.Histogram
	routerBusy         prometheus.Gauge
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		islandsHydrated: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "islands_hydrated_total",
			Help:        "Total number of islands hydrated as roots",
			ConstLabels: config.ConstLabels,
		}),

		directiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "directive_errors_total",
			Help:        "Total number of failed directive evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"directive"}),

		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "warnings_total",
			Help:        "Total number of runtime warnings by code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		budgetOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "budget_overflows_total",
			Help:        "Total number of jobs stopped by the re-entrant run budget",
			ConstLabels: config.ConstLabels,
		}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of client navigations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		navigationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Time from navigation start to fetch resolution",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Duration of scheduler flushes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		routerBusy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "router_busy",
			Help:        "Number of navigations in flight",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// IslandsHydrated adds n hydrated island roots.
func (m *Metrics) IslandsHydrated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.islandsHydrated.Add(float64(n))
}

// Warning counts a warning and, for E103, the failing directive.
func (m *Metrics) Warning(code, directive string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(code).Inc()
	switch code {
	case "E103":
		m.directiveErrors.WithLabelValues(directive).Inc()
	case "E104":
		m.budgetOverflows.Inc()
	}
}

// Navigation records a resolved navigation.
func (m *Metrics) Navigation(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(result).Inc()
	if result != ResultPrefetched {
		m.navigationDuration.Observe(d.Seconds())
	}
}

// Flush observes the duration of one scheduler flush.
func (m *Metrics) Flush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.Observe(d.Seconds())
}

// RouterBusy sets the number of navigations in flight.
func (m *Metrics) RouterBusy(n int) {
	if m == nil {
		return
	}
	m.routerBusy.Set(float64(n))
}
