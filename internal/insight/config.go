package insight

import (
	"time"

	"github.com/fyrsmithlabs/learnd/internal/config"
)

// Thresholds parameterize the insight state machine and generation.
type Thresholds struct {
	MinInteractions     int
	MaxPerCategory      int
	RecentWindow        int
	ReinforceThreshold  float64
	ContradictThreshold float64
	ReinforceDelta      float64
	ContradictDelta     float64

	ConfirmedReinforcements     int
	ConfirmedMaxContradictions  int
	ProbableReinforcements      int
	ProbableMaxContradictions   int
	EmergingReinforcements      int
	ConfirmedConfidenceFloor    float64
	DeactivateMinContradictions int

	StaleAfter time.Duration
	DecayDelta float64

	// EnabledCategories limits generation; empty enables all.
	EnabledCategories []Category
}

// DefaultThresholds returns the built-in heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinInteractions:     10,
		MaxPerCategory:      5,
		RecentWindow:        50,
		ReinforceThreshold:  0.7,
		ContradictThreshold: -0.5,
		ReinforceDelta:      0.05,
		ContradictDelta:     0.1,

		ConfirmedReinforcements:     10,
		ConfirmedMaxContradictions:  1,
		ProbableReinforcements:      5,
		ProbableMaxContradictions:   2,
		EmergingReinforcements:      3,
		ConfirmedConfidenceFloor:    0.9,
		DeactivateMinContradictions: 3,

		StaleAfter: 30 * 24 * time.Hour,
		DecayDelta: 0.02,
	}
}

// ThresholdsFrom overlays the learning config on the defaults. Unknown
// category names are ignored.
func ThresholdsFrom(cfg config.LearningConfig) Thresholds {
	th := DefaultThresholds()
	if cfg.MinInteractions > 0 {
		th.MinInteractions = cfg.MinInteractions
	}
	if cfg.MaxInsightsPerCategory > 0 {
		th.MaxPerCategory = cfg.MaxInsightsPerCategory
	}
	if cfg.RecentWindow > 0 {
		th.RecentWindow = cfg.RecentWindow
	}
	if cfg.ReinforceThreshold != 0 {
		th.ReinforceThreshold = cfg.ReinforceThreshold
	}
	if cfg.ContradictThreshold != 0 {
		th.ContradictThreshold = cfg.ContradictThreshold
	}
	if cfg.ReinforceDelta > 0 {
		th.ReinforceDelta = cfg.ReinforceDelta
	}
	if cfg.ContradictDelta > 0 {
		th.ContradictDelta = cfg.ContradictDelta
	}
	if cfg.StaleAfter > 0 {
		th.StaleAfter = cfg.StaleAfter.Duration()
	}
	if cfg.DecayDelta > 0 {
		th.DecayDelta = cfg.DecayDelta
	}
	if cfg.ConfirmedReinforcements > 0 {
		th.ConfirmedReinforcements = cfg.ConfirmedReinforcements
	}
	if cfg.ProbableReinforcements > 0 {
		th.ProbableReinforcements = cfg.ProbableReinforcements
	}
	if cfg.EmergingReinforcements > 0 {
		th.EmergingReinforcements = cfg.EmergingReinforcements
	}
	if cfg.ConfirmedMaxContradictions != nil && *cfg.ConfirmedMaxContradictions >= 0 {
		th.ConfirmedMaxContradictions = *cfg.ConfirmedMaxContradictions
	}
	if cfg.ProbableMaxContradictions != nil && *cfg.ProbableMaxContradictions >= 0 {
		th.ProbableMaxContradictions = *cfg.ProbableMaxContradictions
	}
	if cfg.ConfirmedConfidenceFloor > 0 && cfg.ConfirmedConfidenceFloor <= 1 {
		th.ConfirmedConfidenceFloor = cfg.ConfirmedConfidenceFloor
	}
	if cfg.DeactivateMinContradictions > 0 {
		th.DeactivateMinContradictions = cfg.DeactivateMinContradictions
	}
	for _, name := range cfg.EnabledCategories {
		if c := Category(name); c.Valid() {
			th.EnabledCategories = append(th.EnabledCategories, c)
		}
	}
	return th
}

func (th Thresholds) enabled(c Category) bool {
	if len(th.EnabledCategories) == 0 {
		return true
	}
	for _, e := range th.EnabledCategories {
		if e == c {
			return true
		}
	}
	return false
}
