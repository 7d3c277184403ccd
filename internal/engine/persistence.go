package engine

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
	"github.com/fyrsmithlabs/learnd/internal/preference"
)

// Retrieval tags for persisted learning state.
const (
	TagInsight    = memorystore.TagInsightState
	TagPreference = memorystore.TagPreferenceState

	insightPriority    = 3
	preferencePriority = 2
)

// SaveToMemory writes every insight and preference model to the memory store
// as JSON records. When every write succeeds and the store can delete, the
// previous snapshot records are removed; otherwise they are kept and
// LoadFromMemory picks the newest per id. It reports false when any write
// failed.
func (e *Engine) SaveToMemory(ctx context.Context) bool {
	ctx, span := e.tracer.Start(ctx, "engine.save_to_memory")
	defer span.End()

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	previous := e.snapshotIDs(ctx)

	ok := true
	insights := e.insights.All()
	for i := range insights {
		ins := &insights[i]
		meta := map[string]string{
			memorystore.TagKey: TagInsight,
			"insight_id":       ins.ID,
			"category":         string(ins.Category),
		}
		if !e.saveJSON(ctx, ins, insightPriority, meta) {
			ok = false
		}
	}

	prefs := e.preferences.All()
	for i := range prefs {
		meta := map[string]string{
			memorystore.TagKey: TagPreference,
			"category":         prefs[i].Category,
		}
		if !e.saveJSON(ctx, &prefs[i], preferencePriority, meta) {
			ok = false
		}
	}

	pruned := 0
	if ok {
		pruned = e.pruneSnapshots(ctx, previous)
	}

	span.SetAttributes(
		attribute.Int("insights", len(insights)),
		attribute.Int("preferences", len(prefs)),
		attribute.Int("pruned", pruned),
		attribute.Bool("ok", ok),
	)
	if !ok {
		span.SetStatus(codes.Error, "one or more records failed to save")
	}
	e.logger.Info("learning state saved",
		zap.Int("insights", len(insights)),
		zap.Int("preferences", len(prefs)),
		zap.Int("pruned", pruned),
		zap.Bool("ok", ok),
	)
	return ok
}

// snapshotIDs lists the ids of existing state records. It returns nil when
// the store cannot delete or the search fails, which disables pruning.
func (e *Engine) snapshotIDs(ctx context.Context) []string {
	if _, ok := e.store.(memorystore.Deleter); !ok {
		return nil
	}
	var ids []string
	for _, tag := range []string{TagInsight, TagPreference} {
		recs, err := e.store.SearchMemories(ctx, memorystore.Query{Tag: tag})
		if err != nil {
			e.logger.Warn("failed to list previous snapshots", zap.String("tag", tag), zap.Error(err))
			return nil
		}
		for i := range recs {
			ids = append(ids, recs[i].ID)
		}
	}
	return ids
}

func (e *Engine) pruneSnapshots(ctx context.Context, ids []string) int {
	deleter, ok := e.store.(memorystore.Deleter)
	if !ok || len(ids) == 0 {
		return 0
	}
	if err := deleter.DeleteMemories(ctx, ids); err != nil {
		e.logger.Warn("failed to prune previous snapshots", zap.Int("records", len(ids)), zap.Error(err))
		return 0
	}
	return len(ids)
}

func (e *Engine) saveJSON(ctx context.Context, v any, priority int, meta map[string]string) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn("failed to encode learning state", zap.Error(err))
		return false
	}
	if _, err := e.store.CreateMemory(ctx, string(raw), priority, 0, 0, meta); err != nil {
		e.logger.Warn("failed to save learning state",
			zap.String("tag", meta[memorystore.TagKey]),
			zap.Error(err),
		)
		return false
	}
	return true
}

// LoadFromMemory restores insights and preference models from the memory
// store. Undecodable or invalid records are skipped individually. It reports
// false only when the store could not be searched.
func (e *Engine) LoadFromMemory(ctx context.Context) bool {
	ctx, span := e.tracer.Start(ctx, "engine.load_from_memory")
	defer span.End()

	insightRecs, err := e.store.SearchMemories(ctx, memorystore.Query{Tag: TagInsight})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("failed to search saved insights", zap.Error(err))
		return false
	}
	prefRecs, err := e.store.SearchMemories(ctx, memorystore.Query{Tag: TagPreference})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("failed to search saved preferences", zap.Error(err))
		return false
	}

	// Records arrive newest first, so the first occurrence of an id wins.
	seen := map[string]bool{}
	var insights []insight.Insight
	skipped := 0
	for _, rec := range insightRecs {
		var ins insight.Insight
		if err := json.Unmarshal([]byte(rec.Content), &ins); err != nil {
			e.logger.Warn("skipping undecodable insight record",
				zap.String("memory_id", rec.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if seen[ins.ID] {
			continue
		}
		seen[ins.ID] = true
		insights = append(insights, ins)
	}
	loaded, invalid := e.insights.Restore(insights)

	seenCat := map[string]bool{}
	var models []preference.Model
	for _, rec := range prefRecs {
		var m preference.Model
		if err := json.Unmarshal([]byte(rec.Content), &m); err != nil {
			e.logger.Warn("skipping undecodable preference record",
				zap.String("memory_id", rec.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		if seenCat[m.Category] {
			continue
		}
		seenCat[m.Category] = true
		models = append(models, m)
	}
	prefsLoaded := e.preferences.Restore(models)

	span.SetAttributes(
		attribute.Int("insights.loaded", loaded),
		attribute.Int("preferences.loaded", prefsLoaded),
		attribute.Int("skipped", skipped+invalid),
	)
	e.logger.Info("learning state loaded",
		zap.Int("insights", loaded),
		zap.Int("preferences", prefsLoaded),
		zap.Int("skipped", skipped+invalid),
	)
	return true
}
