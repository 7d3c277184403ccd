package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/events"
	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/logging"
	"github.com/fyrsmithlabs/learnd/internal/preference"
)

// ProcessInteraction runs one interaction through the learning pipeline and
// returns the insight transitions it caused. Invalid interactions are logged
// and dropped.
func (e *Engine) ProcessInteraction(ctx context.Context, i interaction.Interaction) []insight.Transition {
	i.Normalize(e.now())
	if logging.ValidateID(i.ID, "interaction id") == nil {
		ctx = logging.WithInteractionID(ctx, i.ID)
	}

	ctx, span := e.tracer.Start(ctx, "engine.process_interaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("interaction.id", i.ID),
		attribute.String("interaction.type", string(i.Type)),
	)
	log := e.logger.With(logging.ContextFields(ctx)...)

	if err := i.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("dropping invalid interaction",
			zap.String("interaction_id", i.ID),
			zap.Error(err),
		)
		e.addCounter(ctx, e.interactionsCounter, 1, attribute.String("result", "invalid"))
		return nil
	}

	features := e.extractor.Extract(i)
	e.preferences.Apply(preference.Observe(i, features), e.learningRate)
	transitions := e.insights.Observe(i, features)

	if fb := i.Feedback; fb != nil && fb.ExperimentID != "" {
		e.recordExperimentFeedback(ctx, log, fb)
	}

	for _, t := range transitions {
		if eventType, ok := transitionEvent(t.Kind); ok {
			e.publish(ctx, eventType, t)
		}
	}

	span.SetAttributes(attribute.Int("insight.transitions", len(transitions)))
	e.addCounter(ctx, e.interactionsCounter, 1,
		attribute.String("result", "ok"),
		attribute.String("type", string(i.Type)),
	)
	log.Debug("interaction processed",
		zap.String("type", string(i.Type)),
		zap.Int("transitions", len(transitions)),
	)
	return transitions
}

func (e *Engine) recordExperimentFeedback(ctx context.Context, log *zap.Logger, fb *interaction.Feedback) {
	exp, err := e.experiments.RecordResult(fb.ExperimentID, fb.Variant, fb.Succeeded())
	if err != nil {
		log.Warn("experiment feedback not recorded",
			zap.String("experiment_id", fb.ExperimentID),
			zap.String("variant", fb.Variant),
			zap.Error(err),
		)
		return
	}
	if exp.Status.Terminal() {
		e.publish(ctx, events.ExperimentConcluded, exp)
	}
}

func transitionEvent(k insight.TransitionKind) (string, bool) {
	switch k {
	case insight.TransitionCreated:
		return events.InsightCreated, true
	case insight.TransitionVerified:
		return events.InsightVerified, true
	case insight.TransitionDeactivated:
		return events.InsightDeactivated, true
	default:
		return "", false
	}
}

// GetInsights returns insights matching the filter, highest confidence first.
func (e *Engine) GetInsights(categories []insight.Category, minConfidence float64, activeOnly bool, limit int) []insight.Insight {
	return e.insights.Query(insight.Filter{
		Categories:    categories,
		MinConfidence: minConfidence,
		ActiveOnly:    activeOnly,
		Limit:         limit,
	})
}

// GetInsight returns one insight by id.
func (e *Engine) GetInsight(id string) (*insight.Insight, bool) {
	return e.insights.Get(id)
}

// GetPreferences returns the preference model for a category.
func (e *Engine) GetPreferences(category string) (*preference.Model, bool) {
	return e.preferences.Get(category)
}

// AllPreferences returns every preference model.
func (e *Engine) AllPreferences() []preference.Model {
	return e.preferences.All()
}

// StartExperiment starts an experiment. A non-empty targetInsightID must name
// a known insight.
func (e *Engine) StartExperiment(hypothesis, targetInsightID, category string, variants []string) (*experiment.Experiment, error) {
	if targetInsightID != "" {
		if _, ok := e.insights.Get(targetInsightID); !ok {
			return nil, insight.ErrInsightNotFound
		}
	}
	return e.experiments.Start(hypothesis, targetInsightID, category, variants)
}

// RecordExperimentResult records one variant outcome.
func (e *Engine) RecordExperimentResult(ctx context.Context, id, variant string, success bool) (*experiment.Experiment, error) {
	exp, err := e.experiments.RecordResult(id, variant, success)
	if err != nil {
		return nil, err
	}
	if exp.Status.Terminal() {
		e.publish(ctx, events.ExperimentConcluded, exp)
	}
	return exp, nil
}

// AbortExperiment closes an active experiment as aborted.
func (e *Engine) AbortExperiment(ctx context.Context, id, reason string) (*experiment.Experiment, error) {
	exp, err := e.experiments.Abort(id, reason)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events.ExperimentConcluded, exp)
	return exp, nil
}

// ConcludeExperiment closes an active experiment as inconclusive.
func (e *Engine) ConcludeExperiment(ctx context.Context, id string) (*experiment.Experiment, error) {
	exp, err := e.experiments.Conclude(id)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events.ExperimentConcluded, exp)
	return exp, nil
}

// GetExperiment returns one experiment by id.
func (e *Engine) GetExperiment(id string) (*experiment.Experiment, bool) {
	return e.experiments.Get(id)
}

// GetExperiments lists experiments newest first.
func (e *Engine) GetExperiments(activeOnly bool) []experiment.Experiment {
	return e.experiments.List(activeOnly)
}
