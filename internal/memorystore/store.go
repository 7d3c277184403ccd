// Package memorystore provides the persistent memory-record collaborator used
// by the learning engine, with in-process, SQLite and PostgreSQL backends.
package memorystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"go.uber.org/zap"
)

// TagKey is the metadata key used as a retrieval tag.
const TagKey = "tag"

// Tags of records holding the engine's own learning state.
const (
	TagInsightState    = "user_insight"
	TagPreferenceState = "user_preference"
)

// Kind distinguishes first-hand memories from derived ones.
type Kind string

const (
	KindEpisodic Kind = "episodic"
	KindSemantic Kind = "semantic"
)

// DefaultEpisodicCertainty is the certainty assigned to first-hand memories.
const DefaultEpisodicCertainty = 1.0

var (
	// ErrNotFound is returned when a memory id does not exist.
	ErrNotFound = errors.New("memory not found")

	// ErrEmptyContent is returned when creating a memory with no content.
	ErrEmptyContent = errors.New("memory content cannot be empty")

	// ErrUnknownDriver is returned by Open for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown memory store driver")
)

// Record is one memory item.
type Record struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Content   string            `json:"content"`
	Priority  int               `json:"priority"`
	Valence   float64           `json:"valence"`
	Intensity float64           `json:"intensity"`
	Certainty float64           `json:"certainty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Links     []string          `json:"links,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Tag returns the record's retrieval tag, if any.
func (r *Record) Tag() string {
	return r.Metadata[TagKey]
}

// Derived reports whether the record was written by the learning engine
// itself: a state snapshot or a semantic memory synthesized from others.
func (r *Record) Derived() bool {
	if r.Kind == KindSemantic {
		return true
	}
	switch r.Tag() {
	case TagInsightState, TagPreferenceState:
		return true
	}
	return false
}

// Query selects memories by text, tag and creation time. Zero fields are
// unconstrained. Results are ordered newest first.
type Query struct {
	Text  string
	Tag   string
	Since time.Time
	Until time.Time
	Limit int
}

func (q Query) matches(r *Record) bool {
	if q.Text != "" && !strings.Contains(strings.ToLower(r.Content), strings.ToLower(q.Text)) {
		return false
	}
	if q.Tag != "" && r.Tag() != q.Tag {
		return false
	}
	if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !r.CreatedAt.Before(q.Until) {
		return false
	}
	return true
}

// Store is the memory-record collaborator. Callers treat every write as
// best-effort; no transactional guarantees are assumed.
type Store interface {
	CreateMemory(ctx context.Context, content string, priority int, valence, intensity float64, metadata map[string]string) (string, error)
	GetMemory(ctx context.Context, id string) (*Record, error)
	ConnectMemories(ctx context.Context, a, b string) error
	SearchMemories(ctx context.Context, q Query) ([]Record, error)
	CreateSemanticMemory(ctx context.Context, content string, certainty float64, priority int, metadata map[string]string) (string, error)
}

// Deleter is implemented by stores that can remove records. Deleting an
// unknown id is not an error.
type Deleter interface {
	DeleteMemories(ctx context.Context, ids []string) error
}

// Open returns the store selected by cfg.Driver. The returned close function
// releases backend resources and is never nil.
func Open(cfg config.MemoryStoreConfig, logger *zap.Logger) (Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "memory":
		return NewMemStore(), func() error { return nil }, nil
	case "sqlite", "":
		s, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := OpenPostgres(cfg.DSN.Value(), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
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
