package memorystore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store guarded by a RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	links   map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemStore creates an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Record),
		links:   make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// SetClock overrides the creation-time source.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemStore) CreateMemory(_ context.Context, content string, priority int, valence, intensity float64, metadata map[string]string) (string, error) {
	return s.insert(KindEpisodic, content, priority, valence, intensity, DefaultEpisodicCertainty, metadata)
}

func (s *MemStore) CreateSemanticMemory(_ context.Context, content string, certainty float64, priority int, metadata map[string]string) (string, error) {
	return s.insert(KindSemantic, content, priority, 0, 0, certainty, metadata)
}

func (s *MemStore) insert(kind Kind, content string, priority int, valence, intensity, certainty float64, metadata map[string]string) (string, error) {
	if strings.TrimSpace(content) == "" {
		recordOp("create", ErrEmptyContent)
		return "", ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		Priority:  priority,
		Valence:   valence,
		Intensity: intensity,
		Certainty: clamp01(certainty),
		Metadata:  copyMetadata(metadata),
		CreatedAt: s.now(),
	}
	s.records[rec.ID] = rec
	recordOp("create", nil)
	return rec.ID, nil
}

func (s *MemStore) GetMemory(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		recordOp("get", ErrNotFound)
		return nil, ErrNotFound
	}
	out := s.snapshot(rec)
	recordOp("get", nil)
	return &out, nil
}

// ConnectMemories links a and b in both directions. Linking an existing pair
// is a no-op.
func (s *MemStore) ConnectMemories(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[a]; !ok {
		recordOp("connect", ErrNotFound)
		return ErrNotFound
	}
	if _, ok := s.records[b]; !ok {
		recordOp("connect", ErrNotFound)
		return ErrNotFound
	}
	s.link(a, b)
	s.link(b, a)
	recordOp("connect", nil)
	return nil
}

func (s *MemStore) link(from, to string) {
	set, ok := s.links[from]
	if !ok {
		set = make(map[string]struct{})
		s.links[from] = set
	}
	set[to] = struct{}{}
}

func (s *MemStore) SearchMemories(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if q.matches(rec) {
			out = append(out, s.snapshot(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	recordOp("search", nil)
	return out, nil
}

// DeleteMemories removes the given records and their links.
func (s *MemStore) DeleteMemories(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.records, id)
		for peer := range s.links[id] {
			delete(s.links[peer], id)
		}
		delete(s.links, id)
	}
	recordOp("delete", nil)
	return nil
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemStore) snapshot(rec *Record) Record {
	out := *rec
	out.Metadata = copyMetadata(rec.Metadata)
	if set := s.links[rec.ID]; len(set) > 0 {
		out.Links = make([]string, 0, len(set))
		for id := range set {
			out.Links = append(out.Links, id)
		}
		sort.Strings(out.Links)
	}
	return out
}

var (
	_ Store   = (*MemStore)(nil)
	_ Deleter = (*MemStore)(nil)
)
