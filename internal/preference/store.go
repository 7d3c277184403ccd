// Package preference maintains per-category option strengths updated by
// exponential smoothing.
package preference

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultStrength is the strength of an option never observed.
const DefaultStrength = 0.5

// Model is the preference state of one category.
type Model struct {
	Category    string             `json:"category"`
	Values      map[string]float64 `json:"values"`
	UpdateCount int                `json:"update_count"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (m *Model) clone() Model {
	out := *m
	out.Values = make(map[string]float64, len(m.Values))
	for k, v := range m.Values {
		out.Values[k] = v
	}
	return out
}

// Store holds preference models keyed by category.
type Store struct {
	mu     sync.RWMutex
	models map[string]*Model
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{models: make(map[string]*Model), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update moves the strength of key in category toward observation:
// new = current*(1-rate) + observation*rate, clamped to [0,1]. It returns the
// new strength. A non-finite observation is ignored and the current strength
// returned.
func (s *Store) Update(category, key string, observation, rate float64) float64 {
	rate = clamp01(rate)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !finite(observation) {
		if m, ok := s.models[category]; ok {
			if v, ok := m.Values[key]; ok {
				return v
			}
		}
		return DefaultStrength
	}

	m, ok := s.models[category]
	if !ok {
		m = &Model{Category: category, Values: make(map[string]float64), CreatedAt: now}
		s.models[category] = m
	}

	current, ok := m.Values[key]
	if !ok {
		current = DefaultStrength
	}
	next := clamp01(current*(1-rate) + observation*rate)
	m.Values[key] = next
	m.UpdateCount++
	m.UpdatedAt = now
	UpdatesTotal.WithLabelValues(category).Inc()
	return next
}

// Get returns a copy of the category's model.
func (s *Store) Get(category string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[category]
	if !ok {
		return nil, false
	}
	out := m.clone()
	return &out, true
}

// All returns copies of every model ordered by category.
func (s *Store) All() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Decay pulls every strength toward DefaultStrength by factor in [0,1].
func (s *Store) Decay(factor float64) {
	factor = clamp01(factor)
	if factor == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.models {
		for k, v := range m.Values {
			m.Values[k] = v + (DefaultStrength-v)*factor
		}
	}
}

// Restore replaces the models for each given category. Values are clamped
// and non-finite values reset to DefaultStrength; models without a category
// are skipped. It returns the number restored.
func (s *Store) Restore(models []Model) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range models {
		if m.Category == "" {
			continue
		}
		cp := m.clone()
		for k, v := range cp.Values {
			if !finite(v) {
				v = DefaultStrength
			}
			cp.Values[k] = clamp01(v)
		}
		s.models[cp.Category] = &cp
		n++
	}
	return n
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// clamp01 bounds v to [0,1]; NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
