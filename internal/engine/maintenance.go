package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaintenanceResult summarizes one Maintain call.
type MaintenanceResult struct {
	DecayedInsights    int  `json:"decayed_insights"`
	PreferencesDecayed bool `json:"preferences_decayed"`
}

// Maintain applies staleness decay to insights and, when configured, pulls
// preference strengths back toward neutral.
func (e *Engine) Maintain(ctx context.Context) MaintenanceResult {
	_, span := e.tracer.Start(ctx, "engine.maintain")
	defer span.End()

	res := MaintenanceResult{DecayedInsights: e.insights.Decay(e.now())}
	if e.preferenceDecay > 0 {
		e.preferences.Decay(e.preferenceDecay)
		res.PreferencesDecayed = true
	}

	span.SetAttributes(
		attribute.Int("insights.decayed", res.DecayedInsights),
		attribute.Bool("preferences.decayed", res.PreferencesDecayed),
	)
	e.logger.Info("maintenance completed",
		zap.Int("decayed_insights", res.DecayedInsights),
		zap.Bool("preferences_decayed", res.PreferencesDecayed),
	)
	return res
}

// ErrSchedulerRunning is returned by Start on a running scheduler.
var ErrSchedulerRunning = errors.New("scheduler is already running")

// MaintenanceScheduler runs Engine.Maintain on a fixed interval.
//
// Start and Stop are safe for concurrent use. A panicking run is logged and
// the scheduler keeps going.
type MaintenanceScheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMaintenanceScheduler creates a stopped scheduler.
func NewMaintenanceScheduler(e *Engine, interval time.Duration, logger *zap.Logger) (*MaintenanceScheduler, error) {
	if e == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceScheduler{engine: e, interval: interval, logger: logger}, nil
}

// Start launches the background loop.
func (s *MaintenanceScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	s.logger.Info("maintenance scheduler started", zap.Duration("interval", s.interval))
	go s.run(s.stopCh, s.doneCh)
	return nil
}

// Stop signals the loop to exit and waits for it. Stopping a stopped
// scheduler is a no-op.
func (s *MaintenanceScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

// Running reports whether the loop is active.
func (s *MaintenanceScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *MaintenanceScheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.safeMaintain()
		case <-stop:
			return
		}
	}
}

func (s *MaintenanceScheduler) safeMaintain() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("maintenance run panicked, continuing scheduler",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.engine.Maintain(ctx)
}
