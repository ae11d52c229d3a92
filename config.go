package islands

import (
	"log/slog"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/islands/internal/config"
	"github.com/vango-dev/islands/internal/errors"
	"github.com/vango-dev/islands/pkg/directive"
	"github.com/vango-dev/islands/pkg/reactive"
	"github.com/vango-dev/islands/pkg/router"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Options configures a Runtime.
type Options struct {
	// Prefix is the directive attribute prefix.
	// Default: "data-wp-".
	Prefix string

	// MaxEffectRuns caps how often one effect or render may re-run within a
	// single flush before it is stopped with warning E104.
	// Default: 100.
	MaxEffectRuns int

	// Logger is the structured logger for the runtime.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Registerer receives the runtime's Prometheus collectors.
	// If nil, no metrics are recorded.
	Registerer prometheus.Registerer

	// Tracer creates hydration and navigation spans.
	// If nil, the global OpenTelemetry tracer provider is used.
	Tracer trace.Tracer

	// Fetcher loads pages for client navigation.
	// Default: an HTTP fetcher using http.DefaultClient.
	Fetcher router.Fetcher

	// URL is the location of the document.
	// Default: "/".
	URL *url.URL

	// OnFullLoad is called when a navigation cannot be done in place.
	OnFullLoad func(*url.URL)

	// OnWarning is called for every warning, after it was logged.
	OnWarning func(*errors.Error)
}

// Option configures a Runtime.
type Option func(*Options)

// WithPrefix sets the directive attribute prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithMaxEffectRuns sets the re-entrant run budget per flush.
func WithMaxEffectRuns(n int) Option {
	return func(o *Options) {
		o.MaxEffectRuns = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics records metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = t
	}
}

// WithFetcher sets how pages are loaded on navigation.
func WithFetcher(f router.Fetcher) Option {
	return func(o *Options) {
		o.Fetcher = f
	}
}

// WithURL sets the location of the document.
func WithURL(u *url.URL) Option {
	return func(o *Options) {
		o.URL = u
	}
}

// WithFullLoad sets the full page load fallback of the router.
func WithFullLoad(fn func(*url.URL)) Option {
	return func(o *Options) {
		o.OnFullLoad = fn
	}
}

// WithWarningHandler registers fn for every warning.
func WithWarningHandler(fn func(*errors.Error)) Option {
	return func(o *Options) {
		o.OnWarning = fn
	}
}

// FromConfig returns the options described by an islands.json file. A
// configured S3 bucket becomes the page fetcher.
func FromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithPrefix(cfg.Prefix),
		WithMaxEffectRuns(cfg.MaxEffectRuns),
	}
	if cfg.S3.Bucket != "" {
		client := router.NewS3Client(router.S3Options{
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		opts = append(opts, WithFetcher(router.NewS3Fetcher(client, cfg.S3.Bucket, cfg.S3.Prefix)))
	}
	return opts
}

func defaultOptions() Options {
	return Options{
		Prefix:        directive.DefaultPrefix,
		MaxEffectRuns: reactive.DefaultMaxRuns,
		Logger:        slog.Default(),
	}
}
