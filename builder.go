package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/observe"
	"github.com/MrEthical07/goSession/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goSession"

// Builder assembles a Controller. A Builder is used once: configure it, call
// Build, and discard it.
type Builder struct {
	config    Config
	provider  provider.Client
	logger    *slog.Logger
	auditSink AuditSink
	tracing   trace.TracerProvider

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithProvider sets the identity backend. It is required.
func (b *Builder) WithProvider(p provider.Client) *Builder {
	b.provider = p
	return b
}

// WithLogger sets the logger for transitions and swallowed sign-out
// failures. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for audit events. Audit must also be
// enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets where provider-call spans are recorded. The
// default is the global provider from otel.GetTracerProvider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracing = tp
	return b
}

// WithMetricsEnabled turns the operation counters on or off.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms turns the provider latency histogram on or off.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the controller goroutine.
// The caller must Close the returned Controller.
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := b.tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	lifetime, stop := context.WithCancel(context.Background())

	c := &Controller{
		cfg:      cfg,
		provider: b.provider,
		logger:   logger.With("component", "session", "provider", b.provider.Name()),
		tracer:   tp.Tracer(tracerName),
		metrics:  NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		state:    observe.New(State{}),
		ops:      make(chan *op, cfg.Controller.QueueSize),
		lifetime: lifetime,
		stop:     stop,
		loopDone: make(chan struct{}),
		now:      time.Now,
	}

	b.built = true
	go c.run()

	return c, nil
}
