package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

// Relationship classifies a connection between two memories.
type Relationship string

const (
	RelContradicts Relationship = "contradicts"
	RelExemplifies Relationship = "exemplifies"
	RelSupports    Relationship = "supports"
	RelRelatesTo   Relationship = "relates_to"
)

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	switch r {
	case RelContradicts, RelExemplifies, RelSupports, RelRelatesTo:
		return true
	default:
		return false
	}
}

// Connection is a directed, append-only edge between two memories.
type Connection struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"source_id"`
	TargetID     string       `json:"target_id"`
	Relationship Relationship `json:"relationship"`
	Confidence   float64      `json:"confidence"`
	Similarity   float64      `json:"similarity"`
	Explanation  string       `json:"explanation"`
	DiscoveredAt time.Time    `json:"discovered_at"`
}

func (c Connection) key() string {
	return c.SourceID + "|" + c.TargetID + "|" + string(c.Relationship)
}

// DiscovererConfig bounds and tunes discovery.
type DiscovererConfig struct {
	// SimilarityThreshold is the Jaccard similarity a pair must exceed.
	SimilarityThreshold float64
	// MaxCandidates bounds the candidates scanned per source.
	MaxCandidates int
	// MinSharedForSupport is the shared significant word count for supports.
	MinSharedForSupport int
	// KeepDuplicates records every re-discovery instead of one per
	// (source, target, relationship).
	KeepDuplicates bool
}

// DefaultDiscovererConfig returns the built-in discovery parameters.
func DefaultDiscovererConfig() DiscovererConfig {
	return DiscovererConfig{
		SimilarityThreshold: 0.4,
		MaxCandidates:       20,
		MinSharedForSupport: 5,
	}
}

// DiscovererConfigFrom overlays the knowledge config section on the defaults.
func DiscovererConfigFrom(cfg config.KnowledgeConfig) DiscovererConfig {
	c := DefaultDiscovererConfig()
	if cfg.SimilarityThreshold > 0 {
		c.SimilarityThreshold = cfg.SimilarityThreshold
	}
	if cfg.MaxCandidates > 0 {
		c.MaxCandidates = cfg.MaxCandidates
	}
	c.KeepDuplicates = cfg.KeepDuplicateConnections
	return c
}

type pairText struct {
	source, target      string
	similarity          float64
	shared              int
	minSharedForSupport int
	negated             string
}

// relationshipRule classifies a pair. Rules are evaluated in order; the first
// match wins.
type relationshipRule struct {
	rel        Relationship
	match      func(p *pairText) bool
	confidence func(sim float64) float64
	explain    func(p *pairText) string
}

var relationshipRules = []relationshipRule{
	{
		rel: RelContradicts,
		match: func(p *pairText) bool {
			word, ok := negatedSpan(p.source, p.target)
			p.negated = word
			return ok
		},
		confidence: func(sim float64) float64 { return 0.6 + 0.4*sim },
		explain: func(p *pairText) string {
			return fmt.Sprintf("source negates %q which the target asserts", p.negated)
		},
	},
	{
		rel: RelExemplifies,
		match: func(p *pairText) bool {
			a, b := len([]rune(p.source)), len([]rune(p.target))
			return a > 2*b || b > 2*a
		},
		confidence: func(sim float64) float64 { return 0.5 + 0.4*sim },
		explain: func(p *pairText) string {
			return "one memory is a detailed instance of the other"
		},
	},
	{
		rel: RelSupports,
		match: func(p *pairText) bool {
			return p.shared >= p.minSharedForSupport
		},
		confidence: func(sim float64) float64 { return 0.5 + 0.5*sim },
		explain: func(p *pairText) string {
			return fmt.Sprintf("memories share %d significant words", p.shared)
		},
	},
	{
		rel:        RelRelatesTo,
		match:      func(*pairText) bool { return true },
		confidence: func(sim float64) float64 { return sim },
		explain: func(p *pairText) string {
			return fmt.Sprintf("lexical similarity %.2f across domains", p.similarity)
		},
	},
}

func classify(p *pairText) (Relationship, float64, string) {
	for _, rule := range relationshipRules {
		if rule.match(p) {
			return rule.rel, clamp01(rule.confidence(p.similarity)), rule.explain(p)
		}
	}
	return RelRelatesTo, clamp01(p.similarity), ""
}

// Discoverer finds cross-domain connections between categorized memories.
type Discoverer struct {
	mu          sync.RWMutex
	index       *Index
	store       memorystore.Store
	cfg         DiscovererConfig
	logger      *zap.Logger
	now         func() time.Time
	connections []Connection
	keys        map[string]bool
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithDiscovererLogger sets the discoverer logger.
func WithDiscovererLogger(l *zap.Logger) DiscovererOption {
	return func(d *Discoverer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDiscovererClock overrides the timestamp source.
func WithDiscovererClock(now func() time.Time) DiscovererOption {
	return func(d *Discoverer) { d.now = now }
}

// NewDiscoverer creates a discoverer over the index and store.
func NewDiscoverer(index *Index, store memorystore.Store, cfg DiscovererConfig, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		index:  index,
		store:  store,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
		keys:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover compares the source memory with categorized memories from at least
// one other domain and records a connection for every pair above the
// similarity threshold. It returns the connections created by this call. An
// uncategorized source yields ErrNotCategorized.
func (d *Discoverer) Discover(ctx context.Context, sourceID string) ([]Connection, error) {
	sourceDomains := d.index.DomainsOf(sourceID)
	if len(sourceDomains) == 0 {
		return nil, ErrNotCategorized
	}

	src, err := d.store.GetMemory(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading source memory %s: %w", sourceID, err)
	}
	srcWords := significantWords(src.Content)

	var created []Connection
	for _, candID := range d.candidates(sourceID, sourceDomains) {
		cand, err := d.store.GetMemory(ctx, candID)
		if err != nil {
			d.logger.Warn("skipping unreadable candidate memory",
				zap.String("memory_id", candID),
				zap.Error(err),
			)
			continue
		}

		sim, shared := jaccard(srcWords, significantWords(cand.Content))
		if sim <= d.cfg.SimilarityThreshold {
			continue
		}

		pair := &pairText{
			source:              src.Content,
			target:              cand.Content,
			similarity:          sim,
			shared:              shared,
			minSharedForSupport: d.cfg.MinSharedForSupport,
		}
		rel, conf, explanation := classify(pair)
		conn := Connection{
			ID:           uuid.NewString(),
			SourceID:     sourceID,
			TargetID:     candID,
			Relationship: rel,
			Confidence:   conf,
			Similarity:   sim,
			Explanation:  explanation,
			DiscoveredAt: d.now(),
		}
		if !d.record(conn) {
			continue
		}
		created = append(created, conn)

		if err := d.store.ConnectMemories(ctx, sourceID, candID); err != nil {
			d.logger.Warn("failed to link memories in store",
				zap.String("source_id", sourceID),
				zap.String("target_id", candID),
				zap.Error(err),
			)
		}
	}

	if len(created) > 0 {
		d.logger.Debug("connections discovered",
			zap.String("source_id", sourceID),
			zap.Int("count", len(created)),
		)
	}
	return created, nil
}

// candidates returns up to MaxCandidates categorized memories that belong to
// a domain the source is not in.
func (d *Discoverer) candidates(sourceID string, sourceDomains []string) []string {
	inSource := make(map[string]bool, len(sourceDomains))
	for _, id := range sourceDomains {
		inSource[id] = true
	}

	var out []string
	for _, memID := range d.index.CategorizedMemories() {
		if memID == sourceID {
			continue
		}
		for _, dom := range d.index.DomainsOf(memID) {
			if !inSource[dom] {
				out = append(out, memID)
				break
			}
		}
		if len(out) >= d.cfg.MaxCandidates {
			break
		}
	}
	return out
}

func (d *Discoverer) record(c Connection) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := c.key()
	if d.keys[k] && !d.cfg.KeepDuplicates {
		return false
	}
	d.keys[k] = true
	d.connections = append(d.connections, c)
	ConnectionsTotal.WithLabelValues(string(c.Relationship)).Inc()
	return true
}

// Connections returns every recorded connection in discovery order.
func (d *Discoverer) Connections() []Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Connection(nil), d.connections...)
}

// ConnectionsOf returns connections touching the memory in either direction.
func (d *Discoverer) ConnectionsOf(memoryID string) []Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Connection
	for _, c := range d.connections {
		if c.SourceID == memoryID || c.TargetID == memoryID {
			out = append(out, c)
		}
	}
	return out
}

// Connected reports whether any connection joins a and b in either direction.
func (d *Discoverer) Connected(a, b string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, c := range d.connections {
		if (c.SourceID == a && c.TargetID == b) || (c.SourceID == b && c.TargetID == a) {
			return true
		}
	}
	return false
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
