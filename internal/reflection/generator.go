package reflection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

// DomainIndex is the view of the knowledge index the generator reads.
type DomainIndex interface {
	Domains() []knowledge.Domain
	Counts() map[string]int
	DomainsOf(memoryID string) []string
}

// ConnectionSource lists discovered connections.
type ConnectionSource interface {
	Connections() []knowledge.Connection
}

var (
	_ DomainIndex      = (*knowledge.Index)(nil)
	_ ConnectionSource = (*knowledge.Discoverer)(nil)
)

// Generator produces meta-insights and keeps every batch it generated.
type Generator struct {
	mu          sync.RWMutex
	index       DomainIndex
	connections ConnectionSource
	store       memorystore.Store
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
	latest      []MetaInsight
	all         []MetaInsight
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a generator.
func NewGenerator(index DomainIndex, connections ConnectionSource, store memorystore.Store, cfg Config, opts ...Option) *Generator {
	g := &Generator{
		index:       index,
		connections: connections,
		store:       store,
		cfg:         cfg,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the gap, conflict and growth scans and returns the new batch.
func (g *Generator) Generate(ctx context.Context) []MetaInsight {
	now := g.now()

	var batch []MetaInsight
	batch = append(batch, g.gaps(now)...)
	if c := g.conflicts(now); c != nil {
		batch = append(batch, *c)
	}
	if gr := g.growth(ctx, now); gr != nil {
		batch = append(batch, *gr)
	}

	g.mu.Lock()
	g.latest = batch
	g.all = append(g.all, batch...)
	g.mu.Unlock()

	for _, m := range batch {
		GeneratedTotal.WithLabelValues(string(m.Type)).Inc()
	}
	g.logger.Debug("meta-insights generated", zap.Int("count", len(batch)))
	return cloneAll(batch)
}

// gaps reports every domain whose count relative to the best-covered domain
// is below the gap threshold. Nothing is reported while no domain has
// memories.
func (g *Generator) gaps(now time.Time) []MetaInsight {
	counts := g.index.Counts()
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return nil
	}

	var out []MetaInsight
	for _, d := range g.index.Domains() {
		coverage := float64(counts[d.ID]) / float64(best)
		if coverage >= g.cfg.GapThreshold {
			continue
		}
		out = append(out, MetaInsight{
			ID: uuid.NewString(),
			Text: fmt.Sprintf("Knowledge of %s is thin: %d memories versus %d in the best-covered domain",
				d.Name, counts[d.ID], best),
			Type:            TypeKnowledgeGap,
			Confidence:      clamp01(0.7 + (1 - coverage)),
			AffectedDomains: []string{d.ID},
			Recommendations: []string{
				fmt.Sprintf("Explore topics related to %s", d.Name),
				fmt.Sprintf("Ask about %s when it comes up naturally", strings.ToLower(d.Name)),
			},
			CreatedAt: now,
		})
	}
	return out
}

// conflicts summarizes every high-confidence contradiction in one insight.
func (g *Generator) conflicts(now time.Time) *MetaInsight {
	count := 0
	seen := map[string]bool{}
	var domains []string
	for _, c := range g.connections.Connections() {
		if c.Relationship != knowledge.RelContradicts || c.Confidence <= g.cfg.ConflictConfidence {
			continue
		}
		count++
		for _, memID := range []string{c.SourceID, c.TargetID} {
			for _, d := range g.index.DomainsOf(memID) {
				if !seen[d] {
					seen[d] = true
					domains = append(domains, d)
				}
			}
		}
	}
	if count == 0 {
		return nil
	}

	return &MetaInsight{
		ID:              uuid.NewString(),
		Text:            fmt.Sprintf("Found %d contradicting pieces of knowledge across %d domains", count, len(domains)),
		Type:            TypeConflict,
		Confidence:      clamp01(0.6 + min(0.1*float64(count), 0.3)),
		AffectedDomains: domains,
		Recommendations: []string{
			"Review contradicting memories and confirm which is current",
			"Prefer the most recent statement until clarified",
		},
		CreatedAt: now,
	}
}

// growth reports a burst of memories created within the trailing window.
func (g *Generator) growth(ctx context.Context, now time.Time) *MetaInsight {
	recent, err := g.store.SearchMemories(ctx, memorystore.Query{Since: now.Add(-g.cfg.GrowthWindow)})
	if err != nil {
		g.logger.Warn("growth scan failed", zap.Error(err))
		return nil
	}
	// Engine state snapshots and synthesized concepts are not new knowledge.
	added := 0
	for i := range recent {
		if !recent[i].Derived() {
			added++
		}
	}
	if added <= g.cfg.GrowthThreshold {
		return nil
	}

	return &MetaInsight{
		ID:         uuid.NewString(),
		Text:       fmt.Sprintf("Knowledge grew quickly: %d new memories in the last %s", added, g.cfg.GrowthWindow),
		Type:       TypeGrowth,
		Confidence: 0.8,
		Recommendations: []string{
			"Synthesize concepts from recently connected memories",
		},
		CreatedAt: now,
	}
}

// Latest returns the most recent batch.
func (g *Generator) Latest() []MetaInsight {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneAll(g.latest)
}

// All returns every insight generated so far, oldest batch first.
func (g *Generator) All() []MetaInsight {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneAll(g.all)
}

func cloneAll(in []MetaInsight) []MetaInsight {
	out := make([]MetaInsight, 0, len(in))
	for i := range in {
		out = append(out, in[i].clone())
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
