package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

type fixture struct {
	store *memorystore.MemStore
	index *Index
	disc  *Discoverer
	synth *Synthesizer
}

func newFixture(t *testing.T, cfg DiscovererConfig) *fixture {
	t.Helper()
	store := memorystore.NewMemStore()
	index := NewIndex(store)
	disc := NewDiscoverer(index, store, cfg)
	return &fixture{
		store: store,
		index: index,
		disc:  disc,
		synth: NewSynthesizer(index, disc, store),
	}
}

// remember stores content and categorizes it.
func (f *fixture) remember(t *testing.T, content string) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.store.CreateMemory(ctx, content, 1, 0, 0, nil)
	require.NoError(t, err)
	_, err = f.index.Categorize(ctx, id)
	require.NoError(t, err)
	return id
}

func domainID(t *testing.T, ix *Index, name string) string {
	t.Helper()
	for _, d := range ix.Domains() {
		if d.Name == name {
			return d.ID
		}
	}
	t.Fatalf("domain %q not found", name)
	return ""
}

type failingLinkStore struct {
	*memorystore.MemStore
}

func (failingLinkStore) ConnectMemories(context.Context, string, string) error {
	return errors.New("link failed")
}

func TestNewIndex_SeedsStarterDomains(t *testing.T) {
	ix := NewIndex(memorystore.NewMemStore())
	domains := ix.Domains()
	require.Len(t, domains, len(starterDomains))

	science := domainID(t, ix, "Science")
	for _, child := range []string{"Physics", "Biology", "Chemistry"} {
		d, ok := ix.Domain(domainID(t, ix, child))
		require.True(t, ok)
		assert.Equal(t, science, d.ParentID, child)
		assert.False(t, d.UserDefined)
	}
}

func TestAddDomain(t *testing.T) {
	ix := NewIndex(memorystore.NewMemStore())

	_, err := ix.AddDomain("Gardening", "plants", "missing-parent", []string{"garden"})
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = ix.AddDomain("  ", "", "", nil)
	assert.ErrorIs(t, err, ErrEmptyDomainName)

	_, err = ix.AddDomain("science", "", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateDomain)

	d, err := ix.AddDomain("Gardening", "plants", domainID(t, ix, "Personal"), []string{"Garden", "garden", " Compost "})
	require.NoError(t, err)
	assert.True(t, d.UserDefined)
	assert.Equal(t, []string{"garden", "compost"}, d.Keywords)

	assert.Equal(t, []string{d.ID}, ix.Match("Turning the COMPOST heap"))
}

func TestAddDomain_MultiWordKeywords(t *testing.T) {
	ix := NewIndex(memorystore.NewMemStore())

	d, err := ix.AddDomain("Data Science", "", "", []string{"Machine Learning", "time-series", "learning"})
	require.NoError(t, err)
	assert.Equal(t, []string{"machine", "learning", "time", "series"}, d.Keywords)

	assert.Contains(t, ix.Match("Notes from a machine learning workshop"), d.ID)
	assert.Contains(t, ix.Match("Forecasting a time series"), d.ID)

	_, err = ix.AddDomain("Punctuation", "", "", []string{" -- "})
	require.NoError(t, err)
}

func TestCategorize(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	ctx := context.Background()

	physics := f.remember(t, "Quantum gravity keeps me up at night")
	both := f.remember(t, "Writing software to simulate particle motion")
	none := f.remember(t, "Had a lovely walk by the river")

	assert.Equal(t, []string{domainID(t, f.index, "Physics")}, f.index.DomainsOf(physics))
	assert.ElementsMatch(t,
		[]string{domainID(t, f.index, "Technology"), domainID(t, f.index, "Physics")},
		f.index.DomainsOf(both))
	assert.Empty(t, f.index.DomainsOf(none))
	assert.False(t, f.index.IsCategorized(none))

	assert.Equal(t, []string{physics, both}, f.index.CategorizedMemories())
	assert.Equal(t, []string{physics, both}, f.index.MemoriesIn(domainID(t, f.index, "Physics")))

	counts := f.index.Counts()
	assert.Len(t, counts, len(starterDomains))
	assert.Equal(t, 2, counts[domainID(t, f.index, "Physics")])
	assert.Equal(t, 0, counts[domainID(t, f.index, "Humanities")])

	_, err := f.index.Categorize(ctx, "does-not-exist")
	assert.ErrorIs(t, err, memorystore.ErrNotFound)
}

func TestDiscover_SupportsWhenManyWordsShared(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	ctx := context.Background()

	src := f.remember(t, "Quantum energy models describe particle motion through complex systems")
	tgt := f.remember(t, "Software models describe particle motion through complex systems")

	conns, err := f.disc.Discover(ctx, src)
	require.NoError(t, err)
	require.Len(t, conns, 1)

	c := conns[0]
	assert.Equal(t, RelSupports, c.Relationship)
	assert.Equal(t, tgt, c.TargetID)
	assert.Greater(t, c.Similarity, 0.4)
	assert.InDelta(t, 0.5+0.5*c.Similarity, c.Confidence, 1e-9)

	rec, err := f.store.GetMemory(ctx, src)
	require.NoError(t, err)
	assert.Contains(t, rec.Links, tgt)
}

func TestDiscover_NoConnectionWithoutSharedWords(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())

	src := f.remember(t, "Quantum energy models describe particle motion")
	f.remember(t, "Family dinner with friends tonight")

	conns, err := f.disc.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, conns)
	assert.Empty(t, f.disc.Connections())
}

func TestDiscover_Classification(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
		want   Relationship
	}{
		{
			name:   "negated word asserted by target",
			source: "Regular exercise is not healthy for tired muscles",
			target: "Regular exercise keeps muscles healthy at work",
			want:   RelContradicts,
		},
		{
			name:   "much longer target",
			source: "quantum physics matters greatly",
			target: "quantum physics matters greatly for software, quantum physics matters greatly indeed",
			want:   RelExemplifies,
		},
		{
			name:   "few shared words",
			source: "quantum gravity puzzles",
			target: "software gravity puzzles",
			want:   RelRelatesTo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultDiscovererConfig())
			src := f.remember(t, tt.source)
			f.remember(t, tt.target)

			conns, err := f.disc.Discover(context.Background(), src)
			require.NoError(t, err)
			require.Len(t, conns, 1)
			assert.Equal(t, tt.want, conns[0].Relationship)
			assert.NotEmpty(t, conns[0].Explanation)
			assert.LessOrEqual(t, conns[0].Confidence, 1.0)
		})
	}
}

func TestDiscover_Uncategorized(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	id := f.remember(t, "Had a lovely walk by the river")

	conns, err := f.disc.Discover(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotCategorized)
	assert.Nil(t, conns)
}

func TestDiscover_SkipsSameDomainOnly(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	src := f.remember(t, "quantum gravity puzzles")
	f.remember(t, "quantum gravity puzzles again")

	conns, err := f.disc.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestDiscover_Dedupe(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, DefaultDiscovererConfig())
	src := f.remember(t, "quantum gravity puzzles")
	f.remember(t, "software gravity puzzles")

	first, err := f.disc.Discover(ctx, src)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := f.disc.Discover(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, f.disc.Connections(), 1)

	cfg := DefaultDiscovererConfig()
	cfg.KeepDuplicates = true
	g := newFixture(t, cfg)
	src = g.remember(t, "quantum gravity puzzles")
	g.remember(t, "software gravity puzzles")
	_, err = g.disc.Discover(ctx, src)
	require.NoError(t, err)
	_, err = g.disc.Discover(ctx, src)
	require.NoError(t, err)
	conns := g.disc.Connections()
	require.Len(t, conns, 2)
	assert.NotEqual(t, conns[0].ID, conns[1].ID)
}

func TestDiscover_MaxCandidates(t *testing.T) {
	cfg := DefaultDiscovererConfig()
	cfg.MaxCandidates = 1
	f := newFixture(t, cfg)

	src := f.remember(t, "quantum gravity puzzles")
	f.remember(t, "software gravity puzzles")
	f.remember(t, "programming gravity puzzles")

	conns, err := f.disc.Discover(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestDiscover_StoreLinkFailureKeepsConnection(t *testing.T) {
	mem := memorystore.NewMemStore()
	store := failingLinkStore{mem}
	index := NewIndex(store)
	disc := NewDiscoverer(index, store, DefaultDiscovererConfig())
	ctx := context.Background()

	src, err := store.CreateMemory(ctx, "quantum gravity puzzles", 1, 0, 0, nil)
	require.NoError(t, err)
	tgt, err := store.CreateMemory(ctx, "software gravity puzzles", 1, 0, 0, nil)
	require.NoError(t, err)
	for _, id := range []string{src, tgt} {
		_, err := index.Categorize(ctx, id)
		require.NoError(t, err)
	}

	conns, err := disc.Discover(ctx, src)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
	assert.True(t, disc.Connected(tgt, src))
}

func TestSynthesize_TooFewMemories(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	id := f.remember(t, "quantum gravity puzzles")
	ctx := context.Background()

	_, err := f.synth.Synthesize(ctx, nil, "x")
	assert.ErrorIs(t, err, ErrTooFewMemories)
	_, err = f.synth.Synthesize(ctx, []string{id}, "x")
	assert.ErrorIs(t, err, ErrTooFewMemories)
	_, err = f.synth.Synthesize(ctx, []string{id, id}, "x")
	assert.ErrorIs(t, err, ErrTooFewMemories)
	_, err = f.synth.Synthesize(ctx, []string{id, "missing"}, "x")
	assert.ErrorIs(t, err, ErrTooFewMemories)
	assert.Empty(t, f.synth.Concepts())
}

func TestSynthesize_TwoDomains(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	ctx := context.Background()

	// Stored but not yet categorized: synthesis falls back to live categorization.
	a, err := f.store.CreateMemory(ctx, "Quantum gravity puzzles. More later", 1, 0, 0, nil)
	require.NoError(t, err)
	b, err := f.store.CreateMemory(ctx, "Software algorithm design, in short", 1, 0, 0, nil)
	require.NoError(t, err)

	c, err := f.synth.Synthesize(ctx, []string{a, b}, "Computational physics")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Len(t, c.SourceDomains, 2)
	assert.GreaterOrEqual(t, len(c.Applications), 3)
	assert.Equal(t, []string{a, b}, c.SourceMemoryIDs)
	assert.InDelta(t, 0.7, c.Confidence, 1e-9, "certainty 1 with no connections")
	assert.Equal(t, "Computational physics: Quantum gravity puzzles; Software algorithm design", c.Description)

	require.NotEmpty(t, c.MemoryID)
	rec, err := f.store.GetMemory(ctx, c.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, memorystore.KindSemantic, rec.Kind)
	assert.Equal(t, ConceptTag, rec.Tag())
	assert.ElementsMatch(t, []string{a, b}, rec.Links)

	require.Len(t, f.synth.Concepts(), 1)
}

func TestSynthesize_RedactsFragments(t *testing.T) {
	store := memorystore.NewMemStore()
	index := NewIndex(store)
	disc := NewDiscoverer(index, store, DefaultDiscovererConfig())
	synth := NewSynthesizer(index, disc, store, WithSynthesizerRedactor(func(s string) string {
		return strings.ReplaceAll(s, "hunter2", "[REDACTED]")
	}))
	ctx := context.Background()

	a, err := store.CreateMemory(ctx, "quantum gravity password hunter2 today", 1, 0, 0, nil)
	require.NoError(t, err)
	b, err := store.CreateMemory(ctx, "software algorithm design", 1, 0, 0, nil)
	require.NoError(t, err)

	c, err := synth.Synthesize(ctx, []string{a, b}, "Notes")
	require.NoError(t, err)
	assert.NotContains(t, c.Description, "hunter2")
	assert.Contains(t, c.Description, "[REDACTED]")
}

func TestSynthesize_DensityRaisesConfidence(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	ctx := context.Background()

	a := f.remember(t, "quantum gravity puzzles")
	b := f.remember(t, "software gravity puzzles")
	_, err := f.disc.Discover(ctx, a)
	require.NoError(t, err)

	c, err := f.synth.Synthesize(ctx, []string{a, b}, "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
	assert.Contains(t, c.Name, "concept")
}

func TestFindCandidates(t *testing.T) {
	f := newFixture(t, DefaultDiscovererConfig())
	ctx := context.Background()

	a := f.remember(t, "quantum gravity puzzles")
	b := f.remember(t, "software gravity puzzles")
	c := f.remember(t, "programming gravity puzzles")
	f.remember(t, "Family dinner with friends tonight")

	assert.Empty(t, f.synth.FindCandidates())

	for _, id := range []string{a, b} {
		_, err := f.disc.Discover(ctx, id)
		require.NoError(t, err)
	}

	clusters := f.synth.FindCandidates()
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{a, b, c}, clusters[0])
}

func TestNegatedSpan(t *testing.T) {
	word, ok := negatedSpan("I do not enjoy loud music", "I enjoy loud music")
	assert.True(t, ok)
	assert.Equal(t, "enjoy", word)

	_, ok = negatedSpan("I do not enjoy loud music", "I don't enjoy loud music")
	assert.False(t, ok, "target negates the same word")

	_, ok = negatedSpan("I enjoy loud music", "I enjoy loud music")
	assert.False(t, ok)
}
