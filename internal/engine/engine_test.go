package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/events"
	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/logging"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
	"github.com/fyrsmithlabs/learnd/internal/preference"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
	"github.com/fyrsmithlabs/learnd/internal/telemetry"
)

type harness struct {
	engine   *Engine
	store    *memorystore.MemStore
	recorder *events.Recorder
	logs     *logging.TestLogger
	tel      *telemetry.TestTelemetry
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    memorystore.NewMemStore(),
		recorder: &events.Recorder{},
		logs:     logging.NewTestLogger(),
		tel:      telemetry.NewTestTelemetry(),
		now:      time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
	}
	h.engine = h.build(t, h.store)
	return h
}

func (h *harness) build(t *testing.T, store memorystore.Store) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Maintenance.PreferenceDecay = 0.1
	e, err := New(cfg, store,
		WithLogger(h.logs.Underlying()),
		WithPublisher(h.recorder),
		WithTelemetry(h.tel.Telemetry),
		WithClock(func() time.Time { return h.now }),
	)
	require.NoError(t, err)
	return e
}

func sent(content string) interaction.Interaction {
	return interaction.New(interaction.TypeMessageSent, content)
}

type brokenStore struct {
	*memorystore.MemStore
}

var errStoreDown = errors.New("store down")

func (brokenStore) CreateMemory(context.Context, string, int, float64, float64, map[string]string) (string, error) {
	return "", errStoreDown
}

func (brokenStore) SearchMemories(context.Context, memorystore.Query) ([]memorystore.Record, error) {
	return nil, errStoreDown
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(config.Default(), nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestProcessInteraction_DropsInvalid(t *testing.T) {
	h := newHarness(t)
	i := interaction.New("BOGUS", "hello")

	assert.Nil(t, h.engine.ProcessInteraction(context.Background(), i))
	h.logs.AssertLogged(t, zapcore.WarnLevel, "dropping invalid interaction")
	assert.Empty(t, h.engine.AllPreferences())
}

func TestProcessInteraction_LogsCorrelationFields(t *testing.T) {
	h := newHarness(t)
	i := sent("ok thanks")
	i.ID = "int-42"
	ctx := logging.WithRequestID(context.Background(), "req-7")

	h.engine.ProcessInteraction(ctx, i)

	h.logs.AssertField(t, "interaction processed", "interaction.id", "int-42")
	h.logs.AssertField(t, "interaction processed", "request.id", "req-7")
	h.logs.AssertTraceCorrelation(t, "interaction processed")
}

func TestProcessInteraction_UpdatesPreferences(t *testing.T) {
	h := newHarness(t)
	h.engine.ProcessInteraction(context.Background(), sent("This is great, thanks!"))

	m, ok := h.engine.GetPreferences(preference.CategoryTone)
	require.True(t, ok)
	assert.Greater(t, m.Values["positive"], preference.DefaultStrength)
	assert.Equal(t, 1, m.UpdateCount)

	h.tel.AssertSpanExists(t, "engine.process_interaction")
}

func TestProcessInteraction_GeneratesInsights(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		h.engine.ProcessInteraction(ctx, sent("ok thanks"))
	}

	var short *insight.Insight
	for _, ins := range h.engine.GetInsights(nil, 0, true, 0) {
		if ins.HasTag("pattern:short_messages") {
			ins := ins
			short = &ins
		}
	}
	require.NotNil(t, short, "short message habit is detected")
	assert.Equal(t, insight.CategoryCommunicationStyle, short.Category)
	assert.GreaterOrEqual(t, h.recorder.Count(events.InsightCreated), 1)
}

func TestProcessInteraction_ExperimentFeedback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	target, err := h.engine.insights.Create(insight.CategoryTonePreferences, "Prefers a casual tone", []string{"tone:casual"})
	require.NoError(t, err)

	exp, err := h.engine.StartExperiment("casual replies land better", target.ID, "TONE_PREFERENCES", []string{"casual"})
	require.NoError(t, err)

	fb := interaction.New(interaction.TypeExplicitFeedback, "")
	fb.Feedback = &interaction.Feedback{Rating: 5, ExperimentID: exp.ID, Variant: "casual"}
	h.engine.ProcessInteraction(ctx, fb)

	got, ok := h.engine.GetExperiment(exp.ID)
	require.True(t, ok)
	assert.Equal(t, experiment.StatusCompletedConfirmed, got.Status)
	assert.Equal(t, 1, h.recorder.Count(events.ExperimentConcluded))

	ins, ok := h.engine.GetInsight(target.ID)
	require.True(t, ok)
	assert.Equal(t, insight.LevelConfirmed, ins.Level)
	assert.Equal(t, 1.0, ins.Confidence)
}

func TestEngine_ConcurrentInteractionsAndResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Results only ever go to one variant, so the experiment stays open.
	exp, err := h.engine.StartExperiment("short answers win", "", "COMMUNICATION_STYLE", []string{"short", "long"})
	require.NoError(t, err)

	const workers, perWorker = 8, 20
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				h.engine.ProcessInteraction(ctx, sent("ok thanks"))
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				_, err := h.engine.RecordExperimentResult(ctx, exp.ID, "short", n%2 == 0)
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				_ = h.engine.GetInsights(nil, 0, true, 0)
				_ = h.engine.AllPreferences()
				if n%5 == 0 {
					h.engine.SaveToMemory(ctx)
				}
			}
		}()
	}
	wg.Wait()

	m, ok := h.engine.GetPreferences(preference.CategoryCommunication)
	require.True(t, ok)
	assert.Equal(t, workers*perWorker*2, m.UpdateCount)

	got, ok := h.engine.GetExperiment(exp.ID)
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, got.Observations["short"])
	assert.Equal(t, experiment.StatusActive, got.Status)
}

func TestStartExperiment_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.StartExperiment("h", "missing", "c", []string{"a"})
	assert.ErrorIs(t, err, insight.ErrInsightNotFound)

	_, err = h.engine.StartExperiment("h", "", "c", nil)
	assert.ErrorIs(t, err, experiment.ErrNoVariants)
}

func TestExperimentLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	exp, err := h.engine.StartExperiment("morning check-ins work", "", "DAILY_PATTERNS", []string{"a", "b"})
	require.NoError(t, err)
	_, err = h.engine.RecordExperimentResult(ctx, exp.ID, "a", true)
	require.NoError(t, err)
	assert.Len(t, h.engine.GetExperiments(true), 1)

	aborted, err := h.engine.AbortExperiment(ctx, exp.ID, "no longer relevant")
	require.NoError(t, err)
	assert.Equal(t, experiment.StatusAborted, aborted.Status)
	assert.Empty(t, h.engine.GetExperiments(true))
	assert.Equal(t, 1, h.recorder.Count(events.ExperimentConcluded))

	_, err = h.engine.ConcludeExperiment(ctx, exp.ID)
	assert.ErrorIs(t, err, experiment.ErrExperimentClosed)
}

func TestProcessInteraction_NonFiniteSettingValue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, raw := range []string{"NaN", "+Inf", "0.2"} {
		i := interaction.New(interaction.TypeSettingChanged, "")
		i.Metadata = map[string]string{"setting": "volume", "value": raw}
		h.engine.ProcessInteraction(ctx, i)
	}

	m, ok := h.engine.GetPreferences(preference.CategorySettings)
	require.True(t, ok)
	v := m.Values["volume"]
	assert.False(t, math.IsNaN(v))
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)

	assert.True(t, h.engine.SaveToMemory(ctx))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		h.engine.ProcessInteraction(ctx, sent("ok thanks"))
	}
	saved := h.engine.GetInsights(nil, 0, false, 0)
	require.NotEmpty(t, saved)

	require.True(t, h.engine.SaveToMemory(ctx))
	require.True(t, h.engine.SaveToMemory(ctx), "saving twice is harmless")

	_, err := h.store.CreateMemory(ctx, "{not json", 1, 0, 0, map[string]string{memorystore.TagKey: TagInsight})
	require.NoError(t, err)

	fresh := h.build(t, h.store)
	require.True(t, fresh.LoadFromMemory(ctx))

	loaded := fresh.GetInsights(nil, 0, false, 0)
	assert.Len(t, loaded, len(saved))
	ids := map[string]bool{}
	for _, ins := range loaded {
		ids[ins.ID] = true
	}
	for _, ins := range saved {
		assert.True(t, ids[ins.ID], "insight %s restored", ins.ID)
	}

	m, ok := fresh.GetPreferences(preference.CategoryCommunication)
	require.True(t, ok)
	orig, _ := h.engine.GetPreferences(preference.CategoryCommunication)
	assert.Equal(t, orig.Values, m.Values)
	h.logs.AssertLogged(t, zapcore.WarnLevel, "skipping undecodable insight record")
}

func TestSaveToMemory_ReplacesPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, text := range []string{"ok thanks", "great, thanks", "perfect"} {
		h.engine.ProcessInteraction(ctx, sent(text))
	}
	require.True(t, h.engine.SaveToMemory(ctx))
	after := h.store.Len()
	require.Positive(t, after)

	for i := 0; i < 12; i++ {
		require.True(t, h.engine.SaveToMemory(ctx))
	}
	assert.Equal(t, after, h.store.Len())

	for _, m := range h.engine.GenerateMetaInsights(ctx) {
		assert.NotEqual(t, reflection.TypeGrowth, m.Type, m.Text)
	}

	fresh := h.build(t, h.store)
	require.True(t, fresh.LoadFromMemory(ctx))
	assert.Len(t, fresh.GetInsights(nil, 0, false, 0), len(h.engine.GetInsights(nil, 0, false, 0)))
}

func TestSaveAndLoad_StoreFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.build(t, brokenStore{memorystore.NewMemStore()})

	e.ProcessInteraction(ctx, sent("hello there"))
	assert.False(t, e.SaveToMemory(ctx))
	assert.False(t, e.LoadFromMemory(ctx))
}

func TestProcessNewMemories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ids []string
	for _, text := range []string{
		"Quantum energy models describe particle motion through complex systems",
		"Software models describe particle motion through complex systems",
		"Had a lovely walk by the river",
	} {
		id, err := h.store.CreateMemory(ctx, text, 1, 0, 0, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	ids = append(ids, "missing")

	res := h.engine.ProcessNewMemories(ctx, ids)
	assert.Equal(t, 2, res.Categorized)
	assert.Equal(t, 1, res.Uncategorized)
	assert.Equal(t, 1, res.Failed)
	require.NotEmpty(t, res.Connections)
	assert.Equal(t, knowledge.RelSupports, res.Connections[0].Relationship)
	assert.NotEmpty(t, res.MetaInsights, "uncovered domains are reported as gaps")

	assert.Equal(t, len(res.Connections), h.recorder.Count(events.KnowledgeConnection))
	assert.Equal(t, len(res.MetaInsights), h.recorder.Count(events.ReflectionMetaInsight))
	assert.Len(t, h.engine.GetKnowledgeConnections(), len(res.Connections))
	assert.Len(t, h.engine.GetMetaCognitiveInsights(), len(res.MetaInsights))

	candidates := h.engine.FindConceptCandidates()
	require.Len(t, candidates, 1)

	concept := h.engine.SynthesizeConcept(ctx, candidates[0], "Motion modelling")
	require.NotNil(t, concept)
	assert.Equal(t, 1, h.recorder.Count(events.KnowledgeConcept))
	assert.Len(t, h.engine.GetSynthesizedConcepts(), 1)

	assert.Nil(t, h.engine.SynthesizeConcept(ctx, ids[:1], "too small"))
	h.tel.AssertSpanExists(t, "engine.process_new_memories")
}

func TestSynthesizeConcept_RedactsPersonalData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.store.CreateMemory(ctx, "Ask jane@corp.io about quantum physics", 1, 0, 0, nil)
	require.NoError(t, err)
	b, err := h.store.CreateMemory(ctx, "Software algorithm design notes", 1, 0, 0, nil)
	require.NoError(t, err)

	concept := h.engine.SynthesizeConcept(ctx, []string{a, b}, "Study plan")
	require.NotNil(t, concept)
	assert.NotContains(t, concept.Description, "jane")
	assert.Contains(t, concept.Description, "[REDACTED]")

	rec, err := h.store.GetMemory(ctx, concept.MemoryID)
	require.NoError(t, err)
	assert.NotContains(t, rec.Content, "jane")
}

func TestNew_PrivacyDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Privacy.Disabled = true
	store := memorystore.NewMemStore()
	e, err := New(cfg, store)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := store.CreateMemory(ctx, "Ask jane about quantum physics", 1, 0, 0, nil)
	require.NoError(t, err)
	b, err := store.CreateMemory(ctx, "Software algorithm design notes", 1, 0, 0, nil)
	require.NoError(t, err)

	concept := e.SynthesizeConcept(ctx, []string{a, b}, "Study plan")
	require.NotNil(t, concept)
	assert.Contains(t, concept.Description, "jane")
}

func TestAddKnowledgeDomain(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.AddKnowledgeDomain("Gardening", "", "missing", []string{"garden"})
	assert.ErrorIs(t, err, knowledge.ErrParentNotFound)

	before := len(h.engine.GetKnowledgeDomains())
	d, err := h.engine.AddKnowledgeDomain("Gardening", "", "", []string{"garden"})
	require.NoError(t, err)
	assert.True(t, d.UserDefined)
	assert.Len(t, h.engine.GetKnowledgeDomains(), before+1)
}

func TestMaintain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.insights.Create(insight.CategoryDailyPatterns, "Active in the morning", []string{"daypart:morning"})
	require.NoError(t, err)
	h.engine.ProcessInteraction(ctx, sent("This is great, thanks!"))
	before, _ := h.engine.GetPreferences(preference.CategoryTone)

	res := h.engine.Maintain(ctx)
	assert.Equal(t, 0, res.DecayedInsights, "nothing is stale yet")
	assert.True(t, res.PreferencesDecayed)

	after, _ := h.engine.GetPreferences(preference.CategoryTone)
	assert.Less(t, after.Values["positive"], before.Values["positive"])

	h.now = h.now.Add(31 * 24 * time.Hour)
	res = h.engine.Maintain(ctx)
	assert.Equal(t, 1, res.DecayedInsights)
}

func TestMaintenanceScheduler(t *testing.T) {
	h := newHarness(t)

	_, err := NewMaintenanceScheduler(nil, time.Second, nil)
	assert.Error(t, err)
	_, err = NewMaintenanceScheduler(h.engine, 0, nil)
	assert.Error(t, err)

	s, err := NewMaintenanceScheduler(h.engine, 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerRunning)
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool {
		return h.logs.FilterMessage("maintenance completed").Len() > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	require.NoError(t, s.Stop())
}
