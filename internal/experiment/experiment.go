// Package experiment runs lightweight hypothesis tests over named variants.
package experiment

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/config"
)

var (
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrExperimentClosed   = errors.New("experiment is no longer active")
	ErrUnknownVariant     = errors.New("unknown variant")
	ErrEmptyHypothesis    = errors.New("hypothesis cannot be empty")
	ErrNoVariants         = errors.New("experiment needs at least one variant")
	ErrDuplicateVariant   = errors.New("duplicate variant")
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusActive             Status = "ACTIVE"
	StatusCompletedConfirmed Status = "COMPLETED_CONFIRMED"
	StatusCompletedRejected  Status = "COMPLETED_REJECTED"
	StatusInconclusive       Status = "INCONCLUSIVE"
	StatusAborted            Status = "ABORTED"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompletedConfirmed, StatusCompletedRejected, StatusInconclusive, StatusAborted:
		return true
	default:
		return false
	}
}

// Experiment is a hypothesis test. It is immutable once terminal.
type Experiment struct {
	ID              string             `json:"id"`
	Hypothesis      string             `json:"hypothesis"`
	TargetInsightID string             `json:"target_insight_id,omitempty"`
	Category        string             `json:"category"`
	Variants        []string           `json:"variants"`
	Results         map[string]float64 `json:"results"`
	Observations    map[string]int     `json:"observations"`
	Status          Status             `json:"status"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Conclusion      string             `json:"conclusion,omitempty"`
	BestVariant     string             `json:"best_variant,omitempty"`
}

func (e *Experiment) clone() Experiment {
	out := *e
	out.Variants = append([]string(nil), e.Variants...)
	out.Results = make(map[string]float64, len(e.Results))
	for k, v := range e.Results {
		out.Results[k] = v
	}
	out.Observations = make(map[string]int, len(e.Observations))
	for k, v := range e.Observations {
		out.Observations[k] = v
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func (e *Experiment) hasVariant(v string) bool {
	for _, name := range e.Variants {
		if name == v {
			return true
		}
	}
	return false
}

// Config holds the resolution thresholds.
type Config struct {
	ConfirmThreshold float64
	RejectThreshold  float64
	// Prior is the rate assumed for a variant before its first result.
	Prior float64
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return Config{ConfirmThreshold: 0.7, RejectThreshold: 0.3, Prior: 0.5}
}

// ConfigFrom overlays the experiments config section on the defaults.
func ConfigFrom(cfg config.ExperimentsConfig) Config {
	c := DefaultConfig()
	if cfg.ConfirmThreshold > 0 {
		c.ConfirmThreshold = cfg.ConfirmThreshold
	}
	if cfg.RejectThreshold > 0 {
		c.RejectThreshold = cfg.RejectThreshold
	}
	return c
}
