package reflection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

type fakeIndex struct {
	domains []knowledge.Domain
	counts  map[string]int
	of      map[string][]string
}

func (f *fakeIndex) Domains() []knowledge.Domain  { return f.domains }
func (f *fakeIndex) Counts() map[string]int       { return f.counts }
func (f *fakeIndex) DomainsOf(id string) []string { return f.of[id] }

type fakeConnections []knowledge.Connection

func (f fakeConnections) Connections() []knowledge.Connection { return f }

type failingSearchStore struct {
	*memorystore.MemStore
}

func (failingSearchStore) SearchMemories(context.Context, memorystore.Query) ([]memorystore.Record, error) {
	return nil, errors.New("store offline")
}

func byType(insights []MetaInsight, typ InsightType) []MetaInsight {
	var out []MetaInsight
	for _, m := range insights {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestGenerate_GapForUnderCoveredDomain(t *testing.T) {
	store := memorystore.NewMemStore()
	index := knowledge.NewIndex(store)
	disc := knowledge.NewDiscoverer(index, store, knowledge.DefaultDiscovererConfig())
	ctx := context.Background()

	for _, text := range []string{
		"software releases this week",
		"debugging code all afternoon",
		"a new programming framework",
		"the internet was slow",
	} {
		id, err := store.CreateMemory(ctx, text, 1, 0, 0, nil)
		require.NoError(t, err)
		_, err = index.Categorize(ctx, id)
		require.NoError(t, err)
	}

	gen := NewGenerator(index, disc, store, DefaultConfig())
	gaps := byType(gen.Generate(ctx), TypeKnowledgeGap)

	var humanities, technology string
	for _, d := range index.Domains() {
		switch d.Name {
		case "Humanities":
			humanities = d.ID
		case "Technology":
			technology = d.ID
		}
	}

	referenced := map[string]bool{}
	for _, g := range gaps {
		require.Len(t, g.AffectedDomains, 1)
		referenced[g.AffectedDomains[0]] = true
		assert.GreaterOrEqual(t, g.Confidence, 0.7)
		assert.LessOrEqual(t, g.Confidence, 1.0)
		assert.NotEmpty(t, g.Recommendations)
	}
	assert.True(t, referenced[humanities], "empty domain is a gap")
	assert.False(t, referenced[technology], "best-covered domain is not a gap")
}

func TestGenerate_GapThreshold(t *testing.T) {
	idx := &fakeIndex{
		domains: []knowledge.Domain{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		counts:  map[string]int{"a": 10, "b": 2, "c": 3},
	}
	gen := NewGenerator(idx, fakeConnections(nil), memorystore.NewMemStore(), DefaultConfig())

	gaps := byType(gen.Generate(context.Background()), TypeKnowledgeGap)
	require.Len(t, gaps, 1, "coverage 0.3 is not below the threshold")
	assert.Equal(t, []string{"b"}, gaps[0].AffectedDomains)
	assert.Equal(t, 1.0, gaps[0].Confidence)
}

func TestGenerate_NoGapsWithoutMemories(t *testing.T) {
	store := memorystore.NewMemStore()
	index := knowledge.NewIndex(store)
	gen := NewGenerator(index, fakeConnections(nil), store, DefaultConfig())

	assert.Empty(t, gen.Generate(context.Background()))
}

func TestGenerate_Conflicts(t *testing.T) {
	idx := &fakeIndex{
		counts: map[string]int{},
		of: map[string][]string{
			"m1": {"d1"},
			"m2": {"d2"},
			"m3": {"d1", "d3"},
		},
	}

	tests := []struct {
		name    string
		conns   fakeConnections
		want    float64
		domains []string
	}{
		{
			name: "two strong contradictions",
			conns: fakeConnections{
				{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.8},
				{SourceID: "m3", TargetID: "m1", Relationship: knowledge.RelContradicts, Confidence: 0.9},
				{SourceID: "m2", TargetID: "m3", Relationship: knowledge.RelContradicts, Confidence: 0.5},
				{SourceID: "m1", TargetID: "m3", Relationship: knowledge.RelSupports, Confidence: 0.95},
			},
			want:    0.8,
			domains: []string{"d1", "d2", "d3"},
		},
		{
			name: "bonus capped",
			conns: fakeConnections{
				{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.7},
				{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.7},
				{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.7},
				{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.7},
			},
			want:    0.9,
			domains: []string{"d1", "d2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(idx, tt.conns, memorystore.NewMemStore(), DefaultConfig())
			conflicts := byType(gen.Generate(context.Background()), TypeConflict)
			require.Len(t, conflicts, 1)
			assert.InDelta(t, tt.want, conflicts[0].Confidence, 1e-9)
			assert.ElementsMatch(t, tt.domains, conflicts[0].AffectedDomains)
		})
	}

	gen := NewGenerator(idx, fakeConnections{
		{SourceID: "m1", TargetID: "m2", Relationship: knowledge.RelContradicts, Confidence: 0.6},
	}, memorystore.NewMemStore(), DefaultConfig())
	assert.Empty(t, byType(gen.Generate(context.Background()), TypeConflict))
}

func TestGenerate_Growth(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	idx := &fakeIndex{counts: map[string]int{}}

	store := memorystore.NewMemStore()
	store.SetClock(func() time.Time { return now.Add(-30 * 24 * time.Hour) })
	for i := 0; i < 10; i++ {
		_, err := store.CreateMemory(ctx, fmt.Sprintf("old memory %d", i), 1, 0, 0, nil)
		require.NoError(t, err)
	}
	store.SetClock(func() time.Time { return now.Add(-time.Hour) })
	for i := 0; i < 20; i++ {
		_, err := store.CreateMemory(ctx, fmt.Sprintf("recent memory %d", i), 1, 0, 0, nil)
		require.NoError(t, err)
	}

	gen := NewGenerator(idx, fakeConnections(nil), store, DefaultConfig(), WithClock(func() time.Time { return now }))
	assert.Empty(t, byType(gen.Generate(ctx), TypeGrowth), "exactly 20 is not a burst")

	_, err := store.CreateMemory(ctx, "one more", 1, 0, 0, nil)
	require.NoError(t, err)
	growth := byType(gen.Generate(ctx), TypeGrowth)
	require.Len(t, growth, 1)
	assert.Equal(t, 0.8, growth[0].Confidence)
	assert.Contains(t, growth[0].Text, "21")
}

func TestGenerate_GrowthIgnoresDerivedRecords(t *testing.T) {
	ctx := context.Background()
	store := memorystore.NewMemStore()

	for i := 0; i < 12; i++ {
		_, err := store.CreateMemory(ctx, fmt.Sprintf(`{"id":"i%d"}`, i), 3, 0, 0,
			map[string]string{memorystore.TagKey: memorystore.TagInsightState})
		require.NoError(t, err)
		_, err = store.CreateMemory(ctx, fmt.Sprintf(`{"category":"c%d"}`, i), 2, 0, 0,
			map[string]string{memorystore.TagKey: memorystore.TagPreferenceState})
		require.NoError(t, err)
		_, err = store.CreateSemanticMemory(ctx, fmt.Sprintf("concept %d", i), 0.7, 3, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := store.CreateMemory(ctx, fmt.Sprintf("user memory %d", i), 1, 0, 0, nil)
		require.NoError(t, err)
	}

	gen := NewGenerator(&fakeIndex{counts: map[string]int{}}, fakeConnections(nil), store, DefaultConfig())
	assert.Empty(t, byType(gen.Generate(ctx), TypeGrowth))
}

func TestGenerate_GrowthStoreFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := failingSearchStore{memorystore.NewMemStore()}
	gen := NewGenerator(&fakeIndex{counts: map[string]int{}}, fakeConnections(nil), store, DefaultConfig(),
		WithLogger(zap.New(core)))

	assert.Empty(t, gen.Generate(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("growth scan failed").Len())
}

func TestGenerate_RerunIsEquivalent(t *testing.T) {
	idx := &fakeIndex{
		domains: []knowledge.Domain{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		counts:  map[string]int{"a": 10, "b": 0},
	}
	gen := NewGenerator(idx, fakeConnections(nil), memorystore.NewMemStore(), DefaultConfig())
	ctx := context.Background()

	first := gen.Generate(ctx)
	second := gen.Generate(ctx)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Text, second[0].Text)
	assert.Equal(t, first[0].Type, second[0].Type)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	assert.Len(t, gen.Latest(), 1)
	assert.Len(t, gen.All(), 2)
}

func TestConfigFrom(t *testing.T) {
	c := ConfigFrom(config.KnowledgeConfig{
		GrowthWindow:    config.Duration(48 * time.Hour),
		GrowthThreshold: 5,
	})
	assert.Equal(t, 48*time.Hour, c.GrowthWindow)
	assert.Equal(t, 5, c.GrowthThreshold)
	assert.Equal(t, 0.3, c.GapThreshold)
	assert.Equal(t, 0.6, c.ConflictConfidence)
}
