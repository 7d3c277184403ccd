package reflection

import (
	"time"

	"github.com/fyrsmithlabs/learnd/internal/config"
)

// InsightType classifies a meta-cognitive insight.
type InsightType string

const (
	// TypeKnowledgeGap marks an under-covered domain.
	TypeKnowledgeGap InsightType = "knowledge_gap"
	// TypeConflict marks contradictory knowledge.
	TypeConflict InsightType = "conflict"
	// TypeGrowth marks a burst of new memories.
	TypeGrowth InsightType = "growth"
)

// MetaInsight is a reflective observation about the knowledge base.
type MetaInsight struct {
	// ID is the unique identifier for this insight.
	ID string `json:"id"`
	// Text is the human-readable observation.
	Text string `json:"text"`
	// Type classifies the observation.
	Type InsightType `json:"type"`
	// Confidence score for this insight (0-1).
	Confidence float64 `json:"confidence"`
	// AffectedDomains are the domain ids the insight refers to.
	AffectedDomains []string `json:"affected_domains,omitempty"`
	// Recommendations suggest follow-up actions.
	Recommendations []string `json:"recommendations,omitempty"`
	// CreatedAt is when the insight was generated.
	CreatedAt time.Time `json:"created_at"`
}

func (m *MetaInsight) clone() MetaInsight {
	out := *m
	out.AffectedDomains = append([]string(nil), m.AffectedDomains...)
	out.Recommendations = append([]string(nil), m.Recommendations...)
	return out
}

// Config holds the scan thresholds.
type Config struct {
	// GapThreshold is the coverage ratio below which a domain is a gap.
	GapThreshold float64
	// ConflictConfidence is the confidence a contradiction must exceed.
	ConflictConfidence float64
	// GrowthWindow is the trailing window for the growth scan.
	GrowthWindow time.Duration
	// GrowthThreshold is the memory count the window must exceed.
	GrowthThreshold int
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return Config{
		GapThreshold:       0.3,
		ConflictConfidence: 0.6,
		GrowthWindow:       7 * 24 * time.Hour,
		GrowthThreshold:    20,
	}
}

// ConfigFrom overlays the knowledge config section on the defaults.
func ConfigFrom(cfg config.KnowledgeConfig) Config {
	c := DefaultConfig()
	if cfg.GapThreshold > 0 {
		c.GapThreshold = cfg.GapThreshold
	}
	if cfg.ConflictConfidence > 0 {
		c.ConflictConfidence = cfg.ConflictConfidence
	}
	if cfg.GrowthWindow > 0 {
		c.GrowthWindow = cfg.GrowthWindow.Duration()
	}
	if cfg.GrowthThreshold > 0 {
		c.GrowthThreshold = cfg.GrowthThreshold
	}
	return c
}
