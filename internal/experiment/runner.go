package experiment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InsightUpdater applies experiment outcomes to the target insight.
type InsightUpdater interface {
	ForceVerify(id, evidence string) error
	Reject(id, evidence string) error
}

// Runner manages experiments. Result maps are guarded by one mutex.
type Runner struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
	order       []string
	cfg         Config
	updater     InsightUpdater
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner. updater may be nil when experiments carry no
// target insight.
func NewRunner(cfg Config, updater InsightUpdater, opts ...Option) *Runner {
	r := &Runner{
		experiments: make(map[string]*Experiment),
		cfg:         cfg,
		updater:     updater,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start creates an ACTIVE experiment with empty results.
func (r *Runner) Start(hypothesis, targetInsightID, category string, variants []string) (*Experiment, error) {
	if strings.TrimSpace(hypothesis) == "" {
		return nil, ErrEmptyHypothesis
	}
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if v == "" || seen[v] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVariant, v)
		}
		seen[v] = true
	}

	exp := &Experiment{
		ID:              uuid.NewString(),
		Hypothesis:      hypothesis,
		TargetInsightID: targetInsightID,
		Category:        category,
		Variants:        append([]string(nil), variants...),
		Results:         map[string]float64{},
		Observations:    map[string]int{},
		Status:          StatusActive,
		StartedAt:       r.now(),
	}

	r.mu.Lock()
	r.experiments[exp.ID] = exp
	r.order = append(r.order, exp.ID)
	r.mu.Unlock()

	StartedTotal.Inc()
	r.logger.Info("experiment started",
		zap.String("experiment_id", exp.ID),
		zap.Strings("variants", exp.Variants),
		zap.String("target_insight_id", targetInsightID),
	)
	out := exp.clone()
	return &out, nil
}

// RecordResult folds one outcome into the variant's running rate:
// success pulls it halfway to 1, failure halves it. Once every variant has a
// result the experiment may resolve.
func (r *Runner) RecordResult(id, variant string, success bool) (*Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, ErrExperimentNotFound
	}
	if exp.Status.Terminal() {
		return nil, ErrExperimentClosed
	}
	if !exp.hasVariant(variant) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	old, ok := exp.Results[variant]
	if !ok {
		old = r.cfg.Prior
	}
	if success {
		exp.Results[variant] = (old + 1) / 2
	} else {
		exp.Results[variant] = old / 2
	}
	exp.Observations[variant]++
	ResultsTotal.WithLabelValues(outcomeLabel(success)).Inc()

	r.resolve(exp)
	out := exp.clone()
	return &out, nil
}

func (r *Runner) resolve(exp *Experiment) {
	for _, v := range exp.Variants {
		if exp.Observations[v] == 0 {
			return
		}
	}

	best, bestRate := "", -1.0
	allLow := true
	for _, v := range exp.Variants {
		rate := exp.Results[v]
		if rate > bestRate {
			best, bestRate = v, rate
		}
		if rate >= r.cfg.RejectThreshold {
			allLow = false
		}
	}

	switch {
	case bestRate > r.cfg.ConfirmThreshold:
		r.finish(exp, StatusCompletedConfirmed, best,
			fmt.Sprintf("confirmed: variant %s reached %.2f", best, bestRate))
		r.applyToInsight(exp, true)
	case allLow:
		r.finish(exp, StatusCompletedRejected, best,
			fmt.Sprintf("rejected: every variant below %.2f", r.cfg.RejectThreshold))
		r.applyToInsight(exp, false)
	}
}

func (r *Runner) finish(exp *Experiment, status Status, best, conclusion string) {
	now := r.now()
	exp.Status = status
	exp.CompletedAt = &now
	exp.BestVariant = best
	exp.Conclusion = conclusion
	ConcludedTotal.WithLabelValues(string(status)).Inc()
	r.logger.Info("experiment concluded",
		zap.String("experiment_id", exp.ID),
		zap.String("status", string(status)),
		zap.String("best_variant", best),
	)
}

// applyToInsight is best-effort: a missing or inactive target is logged.
func (r *Runner) applyToInsight(exp *Experiment, confirmed bool) {
	if exp.TargetInsightID == "" || r.updater == nil {
		return
	}
	evidence := fmt.Sprintf("experiment %s: %s", exp.ID, exp.Conclusion)
	var err error
	if confirmed {
		err = r.updater.ForceVerify(exp.TargetInsightID, evidence)
	} else {
		err = r.updater.Reject(exp.TargetInsightID, evidence)
	}
	if err != nil {
		r.logger.Warn("failed to apply experiment outcome to insight",
			zap.String("experiment_id", exp.ID),
			zap.String("insight_id", exp.TargetInsightID),
			zap.Error(err),
		)
	}
}

// Abort closes an active experiment as ABORTED.
func (r *Runner) Abort(id, reason string) (*Experiment, error) {
	return r.close(id, StatusAborted, "aborted: "+reason)
}

// Conclude closes an active experiment as INCONCLUSIVE, keeping the best
// variant observed so far.
func (r *Runner) Conclude(id string) (*Experiment, error) {
	return r.close(id, StatusInconclusive, "inconclusive: closed before reaching a threshold")
}

func (r *Runner) close(id string, status Status, conclusion string) (*Experiment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, ErrExperimentNotFound
	}
	if exp.Status.Terminal() {
		return nil, ErrExperimentClosed
	}

	best, bestRate := "", -1.0
	for _, v := range exp.Variants {
		if rate, ok := exp.Results[v]; ok && rate > bestRate {
			best, bestRate = v, rate
		}
	}
	r.finish(exp, status, best, conclusion)
	out := exp.clone()
	return &out, nil
}

// Get returns a copy of the experiment.
func (r *Runner) Get(id string) (*Experiment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.experiments[id]
	if !ok {
		return nil, false
	}
	out := exp.clone()
	return &out, true
}

// List returns experiments newest first, optionally only active ones.
func (r *Runner) List(activeOnly bool) []Experiment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Experiment, 0, len(r.order))
	for _, id := range r.order {
		exp := r.experiments[id]
		if activeOnly && exp.Status.Terminal() {
			continue
		}
		out = append(out, exp.clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
