package insight

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extractor = interaction.NewExtractor(nil)

func observe(r *Repository, i interaction.Interaction) []Transition {
	if i.ID == "" {
		i.ID = "int-" + string(i.Type)
	}
	return r.Observe(i, extractor.Extract(i))
}

func message(content string) interaction.Interaction {
	return interaction.Interaction{Type: interaction.TypeMessageSent, Content: content}
}

func feedback(target string, rating int) interaction.Interaction {
	return interaction.Interaction{
		Type:     interaction.TypeExplicitFeedback,
		Feedback: &interaction.Feedback{Rating: rating, TargetID: target},
	}
}

func featureUse(name string) interaction.Interaction {
	return interaction.Interaction{
		Type:     interaction.TypeFeatureUsed,
		Metadata: map[string]string{"feature": name},
	}
}

// quietThresholds disables generation so tests observe only the insights
// they create.
func quietThresholds() Thresholds {
	th := DefaultThresholds()
	th.MinInteractions = 1 << 30
	return th
}

func TestRepository_TenReinforcementsConfirm(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, err := r.Create(CategorySubjectInterests, "Interested in science", []string{"topic:science"})
	require.NoError(t, err)

	levels := map[int]Level{}
	for n := 1; n <= 10; n++ {
		ts := observe(r, message("I love reading about physics"))
		require.Len(t, ts, 1)
		assert.Equal(t, TransitionReinforced, ts[0].Kind)
		got, _ := r.Get(ins.ID)
		levels[n] = got.Level
	}

	assert.Equal(t, LevelHypothesis, levels[2])
	assert.Equal(t, LevelEmerging, levels[3])
	assert.Equal(t, LevelProbable, levels[5])
	assert.Equal(t, LevelConfirmed, levels[10])

	got, _ := r.Get(ins.ID)
	assert.Equal(t, 10, got.Reinforcements)
	assert.GreaterOrEqual(t, got.Confidence, 0.9)
	assert.Len(t, got.Evidence, 10)
}

func TestRepository_ConfidenceBoundedAndLevelFloor(t *testing.T) {
	th := quietThresholds()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 25; run++ {
		r := NewRepository(th)
		ins, err := r.Create(CategorySubjectInterests, "Interested in science", []string{"topic:science"})
		require.NoError(t, err)

		for step := 0; step < 60; step++ {
			if rng.Intn(3) == 0 {
				observe(r, message("physics homework is terrible and awful"))
			} else {
				observe(r, message("physics is great"))
			}

			got, _ := r.Get(ins.ID)
			require.GreaterOrEqual(t, got.Confidence, 0.0)
			require.LessOrEqual(t, got.Confidence, 1.0)
			if got.Active {
				floor := levelFor(got.Reinforcements, got.Contradictions, th)
				require.GreaterOrEqual(t, got.Level.Rank(), floor.Rank(),
					"level %s below floor %s at r=%d c=%d", got.Level, floor, got.Reinforcements, got.Contradictions)
			}
		}
	}
}

func TestRepository_PositiveFeedbackVerifiesInOneTransition(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, err := r.Create(CategoryTonePreferences, "Prefers a casual tone", []string{"tone:casual"})
	require.NoError(t, err)

	fb := feedback(ins.ID, 5)
	fb.Content = "physics"
	ts := observe(r, fb)

	require.Len(t, ts, 1)
	assert.Equal(t, TransitionVerified, ts[0].Kind)
	assert.Equal(t, LevelHypothesis, ts[0].From)
	assert.Equal(t, LevelVerified, ts[0].To)

	got, _ := r.Get(ins.ID)
	assert.Equal(t, LevelVerified, got.Level)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestRepository_NegativeFeedbackDeactivates(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, err := r.Create(CategoryTonePreferences, "Prefers a casual tone", []string{"tone:casual"})
	require.NoError(t, err)

	ts := observe(r, feedback(ins.ID, 2))
	require.Len(t, ts, 1)
	assert.Equal(t, TransitionDeactivated, ts[0].Kind)

	got, _ := r.Get(ins.ID)
	assert.False(t, got.Active)

	assert.Empty(t, observe(r, feedback(ins.ID, 5)), "deactivation is terminal")

	neutral, err := r.Create(CategoryTonePreferences, "Prefers a formal tone", []string{"tone:formal"})
	require.NoError(t, err)
	assert.Empty(t, observe(r, feedback(neutral.ID, 3)))
}

func TestRepository_ContradictionsDeactivate(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, err := r.Create(CategoryCommunicationStyle, "Prefers short messages", []string{"pattern:short_messages"})
	require.NoError(t, err)

	long := message(longText())
	for n := 1; n <= 3; n++ {
		ts := observe(r, long)
		require.Len(t, ts, 1)
		assert.Equal(t, TransitionContradicted, ts[0].Kind)
	}

	ts := observe(r, long)
	require.Len(t, ts, 2)
	assert.Equal(t, TransitionDeactivated, ts[1].Kind)

	got, _ := r.Get(ins.ID)
	assert.False(t, got.Active)
	assert.Equal(t, 4, got.Contradictions)
	assert.InDelta(t, 0.0, got.Confidence, 1e-9)
}

func TestRepository_ContradictionDowngradesOneStep(t *testing.T) {
	r := NewRepository(quietThresholds())
	now := time.Now()
	loaded, skipped := r.Restore([]Insight{{
		ID:          "probable",
		Category:    CategoryCommunicationStyle,
		Description: "Prefers short messages",
		Confidence:  0.6,
		Level:       LevelProbable,
		Active:      true,
		Tags:        []string{"pattern:short_messages"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}})
	require.Equal(t, 1, loaded)
	require.Equal(t, 0, skipped)

	ts := observe(r, message(longText()))
	require.Len(t, ts, 1)
	assert.Equal(t, LevelProbable, ts[0].From)
	assert.Equal(t, LevelEmerging, ts[0].To)
	assert.InDelta(t, 0.5, ts[0].Confidence, 1e-9)
}

func TestRepository_ForceVerifyAndReject(t *testing.T) {
	r := NewRepository(quietThresholds())
	a, _ := r.Create(CategoryDailyPatterns, "Most active in the evening", []string{"daypart:evening"})
	b, _ := r.Create(CategoryDailyPatterns, "Most active in the morning", []string{"daypart:morning"})

	require.NoError(t, r.ForceVerify(a.ID, "experiment confirmed"))
	got, _ := r.Get(a.ID)
	assert.Equal(t, LevelConfirmed, got.Level)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Contains(t, got.Evidence, "experiment confirmed")

	require.NoError(t, r.Reject(b.ID, "experiment rejected"))
	got, _ = r.Get(b.ID)
	assert.False(t, got.Active)
	assert.LessOrEqual(t, got.Confidence, 0.2)

	assert.ErrorIs(t, r.Reject(b.ID, "again"), ErrInsightInactive)
	assert.ErrorIs(t, r.ForceVerify("missing", "x"), ErrInsightNotFound)
}

func TestRepository_ForceVerifyKeepsVerified(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, _ := r.Create(CategoryTonePreferences, "Prefers a casual tone", []string{"tone:casual"})
	observe(r, feedback(ins.ID, 5))

	require.NoError(t, r.ForceVerify(ins.ID, "experiment confirmed"))
	got, _ := r.Get(ins.ID)
	assert.Equal(t, LevelVerified, got.Level)
}

func TestRepository_GeneratesAfterMinimum(t *testing.T) {
	th := DefaultThresholds()
	th.MinInteractions = 10
	r := NewRepository(th)

	for n := 0; n < 9; n++ {
		assert.Empty(t, observe(r, featureUse("voice_notes")))
	}

	ts := observe(r, featureUse("voice_notes"))
	require.Len(t, ts, 1)
	assert.Equal(t, TransitionCreated, ts[0].Kind)
	assert.Equal(t, CategoryActivityPreferences, ts[0].Category)
	assert.Equal(t, LevelEmerging, ts[0].To)

	got, _ := r.Get(ts[0].InsightID)
	assert.Equal(t, []string{"feature:voice_notes"}, got.Tags)
	assert.NotEmpty(t, got.Evidence)

	more := observe(r, featureUse("voice_notes"))
	require.Len(t, more, 1)
	assert.Equal(t, TransitionReinforced, more[0].Kind, "covered pattern is reinforced, not duplicated")
	assert.Len(t, r.All(), 1)
}

func TestRepository_GenerationRespectsCapAndEnabled(t *testing.T) {
	th := DefaultThresholds()
	th.MinInteractions = 1
	th.MaxPerCategory = 1
	r := NewRepository(th)

	for n := 0; n < 3; n++ {
		observe(r, featureUse("maps"))
		observe(r, featureUse("camera"))
	}
	assert.Len(t, r.Query(Filter{Categories: []Category{CategoryActivityPreferences}}), 1)

	th.EnabledCategories = []Category{CategoryDailyPatterns}
	disabled := NewRepository(th)
	for n := 0; n < 5; n++ {
		observe(disabled, featureUse("maps"))
	}
	assert.Empty(t, disabled.All())
}

func TestRepository_GeneratesTopicInterest(t *testing.T) {
	th := DefaultThresholds()
	th.MinInteractions = 2
	r := NewRepository(th)

	observe(r, message("quantum physics is fascinating"))
	ts := observe(r, message("I read about space and astronomy today"))

	require.Len(t, ts, 1)
	got, _ := r.Get(ts[0].InsightID)
	assert.Equal(t, CategorySubjectInterests, got.Category)
	assert.Equal(t, LevelHypothesis, got.Level)
	assert.True(t, got.HasTag("topic:science"))
}

func TestRepository_Query(t *testing.T) {
	r := NewRepository(quietThresholds())
	low, _ := r.Create(CategorySubjectInterests, "Interested in music", []string{"topic:music"})
	high, _ := r.Create(CategorySubjectInterests, "Interested in science", []string{"topic:science"})
	other, _ := r.Create(CategoryDailyPatterns, "Most active at night", []string{"daypart:night"})
	require.NoError(t, r.ForceVerify(high.ID, "confirmed"))
	require.NoError(t, r.Reject(other.ID, "rejected"))

	all := r.Query(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, high.ID, all[0].ID)

	active := r.Query(Filter{ActiveOnly: true})
	assert.Len(t, active, 2)

	byCat := r.Query(Filter{Categories: []Category{CategorySubjectInterests}, MinConfidence: 0.5})
	require.Len(t, byCat, 1)
	assert.Equal(t, high.ID, byCat[0].ID)

	limited := r.Query(Filter{Limit: 1, ActiveOnly: true})
	require.Len(t, limited, 1)
	assert.NotEqual(t, low.ID, limited[0].ID)
}

func TestRepository_Decay(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRepository(quietThresholds(), WithClock(func() time.Time { return start }))
	stale, _ := r.Create(CategorySubjectInterests, "Interested in music", []string{"topic:music"})
	verified, _ := r.Create(CategorySubjectInterests, "Interested in science", []string{"topic:science"})
	observe(r, feedback(verified.ID, 5))

	assert.Equal(t, 0, r.Decay(start.Add(24*time.Hour)))
	assert.Equal(t, 1, r.Decay(start.Add(31*24*time.Hour)))

	got, _ := r.Get(stale.ID)
	assert.InDelta(t, 0.28, got.Confidence, 1e-9)
	v, _ := r.Get(verified.ID)
	assert.Equal(t, 1.0, v.Confidence)
}

func TestRepository_RestoreSkipsInvalid(t *testing.T) {
	r := NewRepository(quietThresholds())
	now := time.Now()
	valid := Insight{ID: "a", Category: CategoryHealthWellness, Description: "Sleeps late", Level: LevelEmerging, Confidence: 0.5, Active: true, CreatedAt: now, UpdatedAt: now}

	loaded, skipped := r.Restore([]Insight{
		valid,
		{ID: "b", Category: "NOT_A_CATEGORY", Description: "x", Level: LevelHypothesis},
		{ID: "c", Category: CategoryHealthWellness, Description: "x", Level: "MAYBE"},
		{ID: "d", Category: CategoryHealthWellness, Description: "x", Level: LevelHypothesis, Confidence: 3},
	})
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 3, skipped)

	valid.Confidence = 0.7
	loaded, _ = r.Restore([]Insight{valid})
	assert.Equal(t, 1, loaded)
	assert.Len(t, r.All(), 1)
	got, _ := r.Get("a")
	assert.Equal(t, 0.7, got.Confidence)
}

func TestNewInsight_Validation(t *testing.T) {
	_, err := NewInsight("BOGUS", "d", LevelHypothesis, 0.3, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidCategory)
	_, err = NewInsight(CategoryDecisionMaking, "", LevelHypothesis, 0.3, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDescription)
	_, err = NewInsight(CategoryDecisionMaking, "d", "HIGH", 0.3, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	_, err = NewInsight(CategoryDecisionMaking, "d", LevelHypothesis, 1.3, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfidence)
}

func TestLevel_Order(t *testing.T) {
	assert.Less(t, LevelHypothesis.Rank(), LevelEmerging.Rank())
	assert.Less(t, LevelConfirmed.Rank(), LevelVerified.Rank())
	assert.Equal(t, LevelConfirmed, LevelVerified.Down())
	assert.Equal(t, LevelHypothesis, LevelHypothesis.Down())
	assert.False(t, Level("x").Valid())
}

func TestRepository_ConcurrentObserveAndRead(t *testing.T) {
	r := NewRepository(quietThresholds())
	ins, err := r.Create(CategorySubjectInterests, "Interested in science", []string{"topic:science"})
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				observe(r, message("I love reading about physics"))
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				_ = r.Query(Filter{ActiveOnly: true})
				_, _ = r.Get(ins.ID)
				_ = r.All()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, r.Observed())
	got, ok := r.Get(ins.ID)
	require.True(t, ok)
	assert.Equal(t, workers*perWorker, got.Reinforcements)
	assert.Equal(t, LevelConfirmed, got.Level)
}

func TestThresholdsFrom(t *testing.T) {
	th := ThresholdsFrom(configWith(3, []string{"DAILY_PATTERNS", "bogus"}))
	assert.Equal(t, 3, th.MinInteractions)
	assert.Equal(t, []Category{CategoryDailyPatterns}, th.EnabledCategories)
	assert.Equal(t, 0.7, th.ReinforceThreshold)
	assert.Equal(t, DefaultThresholds().ConfirmedMaxContradictions, th.ConfirmedMaxContradictions)

	zero, two := 0, 2
	th = ThresholdsFrom(config.LearningConfig{
		ConfirmedReinforcements:     8,
		ProbableReinforcements:      4,
		EmergingReinforcements:      2,
		ConfirmedMaxContradictions:  &zero,
		ProbableMaxContradictions:   &two,
		ConfirmedConfidenceFloor:    0.85,
		DeactivateMinContradictions: 5,
	})
	assert.Equal(t, 8, th.ConfirmedReinforcements)
	assert.Equal(t, 4, th.ProbableReinforcements)
	assert.Equal(t, 2, th.EmergingReinforcements)
	assert.Equal(t, 0, th.ConfirmedMaxContradictions)
	assert.Equal(t, 2, th.ProbableMaxContradictions)
	assert.Equal(t, 0.85, th.ConfirmedConfidenceFloor)
	assert.Equal(t, 5, th.DeactivateMinContradictions)
}

func TestThresholdsFrom_DrivesLevels(t *testing.T) {
	zero := 0
	th := ThresholdsFrom(config.LearningConfig{
		EmergingReinforcements:     1,
		ProbableReinforcements:     2,
		ConfirmedReinforcements:    3,
		ConfirmedMaxContradictions: &zero,
	})

	assert.Equal(t, LevelEmerging, levelFor(1, 0, th))
	assert.Equal(t, LevelConfirmed, levelFor(3, 0, th))
	assert.Equal(t, LevelProbable, levelFor(3, 1, th), "no contradictions tolerated at CONFIRMED")
	assert.Equal(t, LevelEmerging, levelFor(3, 1, DefaultThresholds()))
}

func longText() string {
	b := make([]byte, 300)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
