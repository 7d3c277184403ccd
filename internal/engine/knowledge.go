package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/events"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
)

// BatchResult summarizes one ProcessNewMemories call.
type BatchResult struct {
	Categorized   int                      `json:"categorized"`
	Uncategorized int                      `json:"uncategorized"`
	Failed        int                      `json:"failed"`
	Connections   []knowledge.Connection   `json:"connections"`
	MetaInsights  []reflection.MetaInsight `json:"meta_insights"`
}

// ProcessNewMemories categorizes a batch of memories, discovers connections
// for each categorized one and then regenerates meta-insights once.
func (e *Engine) ProcessNewMemories(ctx context.Context, memoryIDs []string) BatchResult {
	ctx, span := e.tracer.Start(ctx, "engine.process_new_memories")
	defer span.End()
	span.SetAttributes(attribute.Int("memory.count", len(memoryIDs)))

	var res BatchResult
	var categorized []string
	for _, id := range memoryIDs {
		domains, err := e.index.Categorize(ctx, id)
		if err != nil {
			res.Failed++
			e.logger.Warn("failed to categorize memory",
				zap.String("memory_id", id),
				zap.Error(err),
			)
			continue
		}
		if len(domains) == 0 {
			res.Uncategorized++
			continue
		}
		res.Categorized++
		categorized = append(categorized, id)
	}

	for _, id := range categorized {
		conns, err := e.discoverer.Discover(ctx, id)
		if err != nil {
			if !errors.Is(err, knowledge.ErrNotCategorized) {
				e.logger.Warn("connection discovery failed",
					zap.String("memory_id", id),
					zap.Error(err),
				)
			}
			continue
		}
		for _, c := range conns {
			e.publish(ctx, events.KnowledgeConnection, c)
		}
		res.Connections = append(res.Connections, conns...)
	}

	res.MetaInsights = e.GenerateMetaInsights(ctx)

	span.SetAttributes(
		attribute.Int("memory.categorized", res.Categorized),
		attribute.Int("knowledge.connections", len(res.Connections)),
	)
	e.addCounter(ctx, e.memoriesCounter, int64(len(memoryIDs)))
	return res
}

// FindConceptCandidates returns clusters of connected memories.
func (e *Engine) FindConceptCandidates() [][]string {
	return e.synthesizer.FindCandidates()
}

// SynthesizeConcept merges the memories into a named concept, or returns nil
// when fewer than two memories are usable.
func (e *Engine) SynthesizeConcept(ctx context.Context, memoryIDs []string, name string) *knowledge.Concept {
	ctx, span := e.tracer.Start(ctx, "engine.synthesize_concept")
	defer span.End()
	span.SetAttributes(attribute.Int("memory.count", len(memoryIDs)))

	c, err := e.synthesizer.Synthesize(ctx, memoryIDs, name)
	if err != nil {
		e.logger.Debug("concept not synthesized", zap.Error(err))
		return nil
	}
	e.publish(ctx, events.KnowledgeConcept, c)
	return c
}

// GenerateMetaInsights runs the reflection scans and publishes the results.
func (e *Engine) GenerateMetaInsights(ctx context.Context) []reflection.MetaInsight {
	ctx, span := e.tracer.Start(ctx, "engine.generate_meta_insights")
	defer span.End()

	batch := e.reflector.Generate(ctx)
	for _, m := range batch {
		e.publish(ctx, events.ReflectionMetaInsight, m)
	}
	span.SetAttributes(attribute.Int("meta_insights", len(batch)))
	return batch
}

// GetKnowledgeDomains returns every domain.
func (e *Engine) GetKnowledgeDomains() []knowledge.Domain {
	return e.index.Domains()
}

// GetKnowledgeConnections returns every discovered connection.
func (e *Engine) GetKnowledgeConnections() []knowledge.Connection {
	return e.discoverer.Connections()
}

// GetSynthesizedConcepts returns every synthesized concept.
func (e *Engine) GetSynthesizedConcepts() []knowledge.Concept {
	return e.synthesizer.Concepts()
}

// GetMetaCognitiveInsights returns every meta-insight generated so far.
func (e *Engine) GetMetaCognitiveInsights() []reflection.MetaInsight {
	return e.reflector.All()
}

// AddKnowledgeDomain registers a user-defined domain.
func (e *Engine) AddKnowledgeDomain(name, description, parentID string, keywords []string) (*knowledge.Domain, error) {
	return e.index.AddDomain(name, description, parentID, keywords)
}
