// Package engine is the orchestration entry point of the learning engine.
//
// Interactions flow through feature extraction, the preference store, the
// insight repository and the experiment runner. Memory batches flow through
// the knowledge index, the connection discoverer and the meta-insight
// generator. Every public operation degrades to an empty result instead of
// failing; only input validation errors are returned.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/events"
	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
	"github.com/fyrsmithlabs/learnd/internal/preference"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
	"github.com/fyrsmithlabs/learnd/internal/secrets"
	"github.com/fyrsmithlabs/learnd/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/learnd/internal/engine"

// ErrNilStore is returned by New without a memory store.
var ErrNilStore = errors.New("memory store is required")

// Engine owns every registry of the learning engine.
type Engine struct {
	store     memorystore.Store
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	now       func() time.Time
	scrubber  secrets.Scrubber

	learningRate    float64
	preferenceDecay float64

	extractor   *interaction.Extractor
	preferences *preference.Store
	insights    *insight.Repository
	experiments *experiment.Runner
	index       *knowledge.Index
	discoverer  *knowledge.Discoverer
	synthesizer *knowledge.Synthesizer
	reflector   *reflection.Generator

	interactionsCounter metric.Int64Counter
	memoriesCounter     metric.Int64Counter

	// saveMu serializes snapshot writes so pruning never removes a newer save.
	saveMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPublisher sets the event publisher. The default discards events.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithTelemetry takes tracer and meter from t instead of the globals.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t.Tracer(instrumentationName)
			e.meter = t.Meter(instrumentationName)
		}
	}
}

// WithClock overrides the timestamp source of every component.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires an engine from configuration.
func New(cfg *config.Config, store memorystore.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg == nil {
		cfg = config.Default()
	}

	e := &Engine{
		store:           store,
		publisher:       events.Nop{},
		logger:          zap.NewNop(),
		tracer:          otel.Tracer(instrumentationName),
		meter:           otel.Meter(instrumentationName),
		now:             time.Now,
		learningRate:    cfg.Learning.LearningRate,
		preferenceDecay: cfg.Maintenance.PreferenceDecay,
	}
	for _, opt := range opts {
		opt(e)
	}

	scrubber, err := secrets.New(secrets.ConfigFrom(cfg.Privacy))
	if err != nil {
		return nil, fmt.Errorf("invalid privacy config: %w", err)
	}
	e.scrubber = scrubber

	e.extractor = interaction.NewExtractor(nil)
	e.preferences = preference.NewStore(preference.WithClock(e.now))
	e.insights = insight.NewRepository(insight.ThresholdsFrom(cfg.Learning),
		insight.WithLogger(e.logger.Named("insight")),
		insight.WithClock(e.now),
	)
	e.experiments = experiment.NewRunner(experiment.ConfigFrom(cfg.Experiments), e.insights,
		experiment.WithLogger(e.logger.Named("experiment")),
		experiment.WithClock(e.now),
	)
	e.index = knowledge.NewIndex(store, knowledge.WithIndexLogger(e.logger.Named("knowledge")))
	e.discoverer = knowledge.NewDiscoverer(e.index, store, knowledge.DiscovererConfigFrom(cfg.Knowledge),
		knowledge.WithDiscovererLogger(e.logger.Named("knowledge")),
		knowledge.WithDiscovererClock(e.now),
	)
	e.synthesizer = knowledge.NewSynthesizer(e.index, e.discoverer, store,
		knowledge.WithSynthesizerLogger(e.logger.Named("knowledge")),
		knowledge.WithSynthesizerClock(e.now),
		knowledge.WithSynthesizerRedactor(func(text string) string {
			return secrets.Redact(e.scrubber, text)
		}),
	)
	e.reflector = reflection.NewGenerator(e.index, e.discoverer, store, reflection.ConfigFrom(cfg.Knowledge),
		reflection.WithLogger(e.logger.Named("reflection")),
		reflection.WithClock(e.now),
	)

	e.initMetrics()
	return e, nil
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) initMetrics() {
	var err error

	e.interactionsCounter, err = e.meter.Int64Counter(
		"learnd.engine.interactions_total",
		metric.WithDescription("Total number of interactions processed"),
		metric.WithUnit("{interaction}"),
	)
	if err != nil {
		e.logger.Warn("failed to create interactions counter", zap.Error(err))
	}

	e.memoriesCounter, err = e.meter.Int64Counter(
		"learnd.engine.memories_processed_total",
		metric.WithDescription("Total number of memory ids processed for knowledge"),
		metric.WithUnit("{memory}"),
	)
	if err != nil {
		e.logger.Warn("failed to create memories counter", zap.Error(err))
	}
}

func (e *Engine) addCounter(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// publish emits an event, logging failures.
func (e *Engine) publish(ctx context.Context, eventType string, data any) {
	if err := e.publisher.Publish(ctx, eventType, data); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
