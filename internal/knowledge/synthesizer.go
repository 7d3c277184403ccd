package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/memorystore"
)

const (
	// ConceptTag tags derived concept memories in the store.
	ConceptTag = "synthesized_concept"

	conceptPriority    = 5
	fragmentWords      = 8
	maxDomainScenarios = 3
)

// Concept is a named unit synthesized from two or more connected memories.
type Concept struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	SourceMemoryIDs []string  `json:"source_memory_ids"`
	SourceDomains   []string  `json:"source_domains"`
	Confidence      float64   `json:"confidence"`
	Applications    []string  `json:"applications"`
	MemoryID        string    `json:"memory_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (c *Concept) clone() Concept {
	out := *c
	out.SourceMemoryIDs = append([]string(nil), c.SourceMemoryIDs...)
	out.SourceDomains = append([]string(nil), c.SourceDomains...)
	out.Applications = append([]string(nil), c.Applications...)
	return out
}

// Synthesizer merges clusters of memories into concepts.
type Synthesizer struct {
	mu         sync.RWMutex
	index      *Index
	discoverer *Discoverer
	store      memorystore.Store
	logger     *zap.Logger
	now        func() time.Time
	redact     func(string) string
	concepts   []Concept
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSynthesizerLogger sets the synthesizer logger.
func WithSynthesizerLogger(l *zap.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSynthesizerClock overrides the timestamp source.
func WithSynthesizerClock(now func() time.Time) SynthesizerOption {
	return func(s *Synthesizer) { s.now = now }
}

// WithSynthesizerRedactor filters memory fragments before they are written
// into a concept description.
func WithSynthesizerRedactor(redact func(string) string) SynthesizerOption {
	return func(s *Synthesizer) {
		if redact != nil {
			s.redact = redact
		}
	}
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(index *Index, discoverer *Discoverer, store memorystore.Store, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		index:      index,
		discoverer: discoverer,
		store:      store,
		logger:     zap.NewNop(),
		now:        time.Now,
		redact:     func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds a concept from the given memories. Unreadable memories
// are skipped; fewer than two readable memories yields ErrTooFewMemories.
// The concept is kept even when writing its derived memory fails.
func (s *Synthesizer) Synthesize(ctx context.Context, memoryIDs []string, name string) (*Concept, error) {
	ids := dedupe(memoryIDs)
	if len(ids) < 2 {
		return nil, ErrTooFewMemories
	}

	var (
		records   []*memorystore.Record
		certainty float64
		domainSet = map[string]bool{}
		domains   []string
	)
	for _, id := range ids {
		rec, err := s.store.GetMemory(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable memory for concept",
				zap.String("memory_id", id),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
		certainty += rec.Certainty

		ds := s.index.DomainsOf(id)
		if len(ds) == 0 {
			ds = s.index.CategorizeText(id, rec.Content)
		}
		for _, d := range ds {
			if !domainSet[d] {
				domainSet[d] = true
				domains = append(domains, d)
			}
		}
	}
	if len(records) < 2 {
		return nil, ErrTooFewMemories
	}

	sourceIDs := make([]string, len(records))
	for i, rec := range records {
		sourceIDs[i] = rec.ID
	}

	avgCertainty := certainty / float64(len(records))
	density := s.density(sourceIDs)
	domainNames := s.domainNames(domains)

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultConceptName(domainNames)
	}

	c := Concept{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     describe(name, records, s.redact),
		SourceMemoryIDs: sourceIDs,
		SourceDomains:   domains,
		Confidence:      clamp01(avgCertainty * (0.7 + 0.3*density)),
		Applications:    applications(name, domainNames),
		CreatedAt:       s.now(),
	}
	c.MemoryID = s.persist(ctx, &c)

	s.mu.Lock()
	s.concepts = append(s.concepts, c)
	s.mu.Unlock()

	ConceptsTotal.Inc()
	s.logger.Info("concept synthesized",
		zap.String("concept_id", c.ID),
		zap.String("name", c.Name),
		zap.Int("sources", len(c.SourceMemoryIDs)),
		zap.Int("domains", len(c.SourceDomains)),
		zap.Float64("confidence", c.Confidence),
	)
	out := c.clone()
	return &out, nil
}

// density is the fraction of member pairs already joined by a connection.
func (s *Synthesizer) density(ids []string) float64 {
	possible := len(ids) * (len(ids) - 1) / 2
	if possible == 0 {
		return 0
	}
	connected := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if s.discoverer.Connected(ids[i], ids[j]) {
				connected++
			}
		}
	}
	return clamp01(float64(connected) / float64(possible))
}

func (s *Synthesizer) domainNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.index.Domain(id); ok {
			names = append(names, d.Name)
		}
	}
	return names
}

// persist writes the derived semantic memory and links it to every source.
// It returns the new memory id, or "" when the store rejects the write.
func (s *Synthesizer) persist(ctx context.Context, c *Concept) string {
	meta := map[string]string{
		memorystore.TagKey: ConceptTag,
		"concept_id":       c.ID,
		"concept_name":     c.Name,
	}
	memID, err := s.store.CreateSemanticMemory(ctx, c.Description, c.Confidence, conceptPriority, meta)
	if err != nil {
		s.logger.Warn("failed to store concept memory",
			zap.String("concept_id", c.ID),
			zap.Error(err),
		)
		return ""
	}
	for _, src := range c.SourceMemoryIDs {
		if err := s.store.ConnectMemories(ctx, memID, src); err != nil {
			s.logger.Warn("failed to link concept memory",
				zap.String("concept_id", c.ID),
				zap.String("memory_id", src),
				zap.Error(err),
			)
		}
	}
	return memID
}

// Concepts returns every synthesized concept in creation order.
func (s *Synthesizer) Concepts() []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Concept, 0, len(s.concepts))
	for i := range s.concepts {
		out = append(out, s.concepts[i].clone())
	}
	return out
}

// FindCandidates groups memories into connected components over the
// discovered connections. Only components with two or more members are
// returned, largest first.
func (s *Synthesizer) FindCandidates() [][]string {
	conns := s.discoverer.Connections()

	parent := map[string]string{}
	var order []string
	var find func(string) string
	find = func(x string) string {
		if _, ok := parent[x]; !ok {
			parent[x] = x
			order = append(order, x)
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, c := range conns {
		a, b := find(c.SourceID), find(c.TargetID)
		if a != b {
			parent[b] = a
		}
	}

	groups := map[string][]string{}
	var roots []string
	for _, id := range order {
		r := find(id)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], id)
	}

	var out [][]string
	for _, r := range roots {
		if len(groups[r]) >= 2 {
			out = append(out, groups[r])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func describe(name string, records []*memorystore.Record, redact func(string) string) string {
	frags := make([]string, 0, len(records))
	for _, rec := range records {
		if f := fragment(redact(rec.Content), fragmentWords); f != "" {
			frags = append(frags, f)
		}
	}
	return fmt.Sprintf("%s: %s", name, strings.Join(frags, "; "))
}

func applications(name string, domainNames []string) []string {
	var out []string
	for i, d := range domainNames {
		if i >= maxDomainScenarios {
			break
		}
		out = append(out, fmt.Sprintf("Apply %s when reasoning about %s topics", name, d))
	}
	if len(domainNames) >= 2 {
		out = append(out, fmt.Sprintf("Use %s to bridge %s", name, strings.Join(domainNames, " and ")))
	}
	return out
}

func defaultConceptName(domainNames []string) string {
	if len(domainNames) == 0 {
		return "Unnamed concept"
	}
	return strings.Join(domainNames, "-") + " concept"
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
