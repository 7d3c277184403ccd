package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

// Index categorizes memories into domains by keyword membership.
type Index struct {
	mu       sync.RWMutex
	store    memorystore.Store
	logger   *zap.Logger
	domains  map[string]*Domain
	order    []string
	keywords map[string][]string

	// memoryDomains maps memory id to its matched domain ids.
	memoryDomains map[string][]string
	// memoryOrder lists categorized memory ids in first-seen order.
	memoryOrder []string
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexLogger sets the index logger.
func WithIndexLogger(l *zap.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// NewIndex creates an index seeded with the starter domains.
func NewIndex(store memorystore.Store, opts ...IndexOption) *Index {
	ix := &Index{
		store:         store,
		logger:        zap.NewNop(),
		domains:       make(map[string]*Domain),
		keywords:      make(map[string][]string),
		memoryDomains: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(ix)
	}

	byName := map[string]string{}
	for _, seed := range starterDomains {
		d := ix.register(seed.name, seed.description, byName[seed.parent], seed.keywords, false)
		byName[seed.name] = d.ID
	}
	return ix
}

// AddDomain registers a user-defined domain. A non-empty parentID must name an
// existing domain.
func (ix *Index) AddDomain(name, description, parentID string, keywords []string) (*Domain, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyDomainName
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if parentID != "" {
		if _, ok := ix.domains[parentID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
	}
	for _, d := range ix.domains {
		if strings.EqualFold(d.Name, name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, name)
		}
	}

	d := ix.registerLocked(name, description, parentID, keywords, true)
	out := d.clone()
	ix.logger.Info("knowledge domain added",
		zap.String("domain_id", d.ID),
		zap.String("name", d.Name),
		zap.Int("keywords", len(d.Keywords)),
	)
	return &out, nil
}

func (ix *Index) register(name, description, parentID string, keywords []string, userDefined bool) *Domain {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.registerLocked(name, description, parentID, keywords, userDefined)
}

func (ix *Index) registerLocked(name, description, parentID string, keywords []string, userDefined bool) *Domain {
	d := &Domain{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		ParentID:    parentID,
		Keywords:    normalizeKeywords(keywords),
		UserDefined: userDefined,
	}
	ix.domains[d.ID] = d
	ix.order = append(ix.order, d.ID)
	for _, k := range d.Keywords {
		ix.keywords[k] = append(ix.keywords[k], d.ID)
	}
	DomainsGauge.Set(float64(len(ix.domains)))
	return d
}

// Domains returns every domain in registration order.
func (ix *Index) Domains() []Domain {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Domain, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.domains[id].clone())
	}
	return out
}

// Domain returns a copy of the domain with the given id.
func (ix *Index) Domain(id string) (*Domain, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	d, ok := ix.domains[id]
	if !ok {
		return nil, false
	}
	out := d.clone()
	return &out, true
}

// Categorize loads the memory text and records the distinct domains whose
// keywords it contains. A memory matching nothing stays uncategorized and an
// empty result is returned.
func (ix *Index) Categorize(ctx context.Context, memoryID string) ([]string, error) {
	rec, err := ix.store.GetMemory(ctx, memoryID)
	if err != nil {
		CategorizedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading memory %s: %w", memoryID, err)
	}
	return ix.CategorizeText(memoryID, rec.Content), nil
}

// CategorizeText categorizes already-loaded memory content.
func (ix *Index) CategorizeText(memoryID, content string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	matched := ix.matchLocked(content)
	if len(matched) == 0 {
		CategorizedTotal.WithLabelValues("uncategorized").Inc()
		return nil
	}

	if _, seen := ix.memoryDomains[memoryID]; !seen {
		ix.memoryOrder = append(ix.memoryOrder, memoryID)
	}
	ix.memoryDomains[memoryID] = matched
	CategorizedTotal.WithLabelValues("matched").Inc()
	return append([]string(nil), matched...)
}

// Match returns the domains the text would be categorized into without
// recording anything.
func (ix *Index) Match(content string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.matchLocked(content)
}

func (ix *Index) matchLocked(content string) []string {
	seen := map[string]bool{}
	var matched []string
	for _, tok := range interaction.Tokenize(content) {
		ids, ok := ix.keywords[tok]
		if !ok && strings.HasSuffix(tok, "s") {
			ids = ix.keywords[strings.TrimSuffix(tok, "s")]
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				matched = append(matched, id)
			}
		}
	}
	return matched
}

// DomainsOf returns the domain ids recorded for a memory.
func (ix *Index) DomainsOf(memoryID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.memoryDomains[memoryID]...)
}

// IsCategorized reports whether the memory has at least one domain.
func (ix *Index) IsCategorized(memoryID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.memoryDomains[memoryID]) > 0
}

// MemoriesIn returns the memories categorized into a domain, in first-seen
// order.
func (ix *Index) MemoriesIn(domainID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, id := range ix.memoryOrder {
		for _, d := range ix.memoryDomains[id] {
			if d == domainID {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// Counts returns the number of categorized memories per domain. Every
// registered domain is present, including empty ones.
func (ix *Index) Counts() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	counts := make(map[string]int, len(ix.domains))
	for id := range ix.domains {
		counts[id] = 0
	}
	for _, ds := range ix.memoryDomains {
		for _, d := range ds {
			counts[d]++
		}
	}
	return counts
}

// CategorizedMemories returns every categorized memory id in first-seen order.
func (ix *Index) CategorizedMemories() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.memoryOrder...)
}

// DomainNames resolves ids to names, sorted, skipping unknown ids.
func (ix *Index) DomainNames(ids []string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := ix.domains[id]; ok {
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}
