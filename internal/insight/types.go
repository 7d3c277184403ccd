// Package insight owns confidence-scored beliefs about the user and the
// transitions that revise them.
package insight

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsightNotFound   = errors.New("insight not found")
	ErrInvalidCategory   = errors.New("invalid insight category")
	ErrInvalidLevel      = errors.New("invalid confidence level")
	ErrEmptyDescription  = errors.New("insight description cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
	ErrInsightInactive   = errors.New("insight is inactive")
)

// Category is the aspect of the user an insight describes.
type Category string

const (
	CategoryCommunicationStyle   Category = "COMMUNICATION_STYLE"
	CategoryTonePreferences      Category = "TONE_PREFERENCES"
	CategorySubjectInterests     Category = "SUBJECT_INTERESTS"
	CategoryDailyPatterns        Category = "DAILY_PATTERNS"
	CategorySocialContext        Category = "SOCIAL_CONTEXT"
	CategoryEmotionalTriggers    Category = "EMOTIONAL_TRIGGERS"
	CategoryDecisionMaking       Category = "DECISION_MAKING"
	CategoryTimeManagement       Category = "TIME_MANAGEMENT"
	CategoryActivityPreferences  Category = "ACTIVITY_PREFERENCES"
	CategoryConversationFlow     Category = "CONVERSATION_FLOW"
	CategoryExpertKnowledgeAreas Category = "EXPERT_KNOWLEDGE_AREAS"
	CategoryCreativeExpression   Category = "CREATIVE_EXPRESSION"
	CategoryHealthWellness       Category = "HEALTH_WELLNESS"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryCommunicationStyle, CategoryTonePreferences, CategorySubjectInterests,
	CategoryDailyPatterns, CategorySocialContext, CategoryEmotionalTriggers,
	CategoryDecisionMaking, CategoryTimeManagement, CategoryActivityPreferences,
	CategoryConversationFlow, CategoryExpertKnowledgeAreas, CategoryCreativeExpression,
	CategoryHealthWellness,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCommunicationStyle, CategoryTonePreferences, CategorySubjectInterests,
		CategoryDailyPatterns, CategorySocialContext, CategoryEmotionalTriggers,
		CategoryDecisionMaking, CategoryTimeManagement, CategoryActivityPreferences,
		CategoryConversationFlow, CategoryExpertKnowledgeAreas, CategoryCreativeExpression,
		CategoryHealthWellness:
		return true
	default:
		return false
	}
}

// ParseCategory validates s as a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Level is the confidence level of an insight. Levels are ordered
// HYPOTHESIS < EMERGING < PROBABLE < CONFIRMED < VERIFIED.
type Level string

const (
	LevelHypothesis Level = "HYPOTHESIS"
	LevelEmerging   Level = "EMERGING"
	LevelProbable   Level = "PROBABLE"
	LevelConfirmed  Level = "CONFIRMED"
	LevelVerified   Level = "VERIFIED"
)

// Rank returns the position of l in the level order, or -1 when unknown.
func (l Level) Rank() int {
	switch l {
	case LevelHypothesis:
		return 0
	case LevelEmerging:
		return 1
	case LevelProbable:
		return 2
	case LevelConfirmed:
		return 3
	case LevelVerified:
		return 4
	default:
		return -1
	}
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l.Rank() >= 0
}

// Down returns the level one step below l. HYPOTHESIS stays put.
func (l Level) Down() Level {
	switch l {
	case LevelVerified:
		return LevelConfirmed
	case LevelConfirmed:
		return LevelProbable
	case LevelProbable:
		return LevelEmerging
	default:
		return LevelHypothesis
	}
}

// MaxEvidence bounds the evidence kept per insight; the oldest entries are
// dropped first.
const MaxEvidence = 100

// Insight is a belief about the user.
//
// Insights are owned by the Repository and revised only through its
// transitions. They are never deleted: rejected beliefs are deactivated.
type Insight struct {
	// ID is the unique insight identifier (UUID).
	ID string `json:"id"`

	// Category is the aspect of the user this insight describes.
	Category Category `json:"category"`

	// Description is the human-readable belief.
	Description string `json:"description"`

	// Evidence records, oldest first, the observations behind each transition.
	Evidence []string `json:"evidence"`

	// Confidence is a score from 0.0 to 1.0.
	Confidence float64 `json:"confidence"`

	// Level is the confidence level.
	Level Level `json:"level"`

	// Reinforcements counts interactions that supported the belief.
	Reinforcements int `json:"reinforcements"`

	// Contradictions counts interactions that opposed the belief.
	Contradictions int `json:"contradictions"`

	// Active is false once the belief has been rejected. Deactivation is terminal.
	Active bool `json:"active"`

	// Tags name the pattern the insight tracks, e.g. "topic:science".
	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInsight creates an active insight with a generated UUID.
func NewInsight(category Category, description string, level Level, confidence float64, tags, evidence []string) (*Insight, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrInvalidConfidence
	}

	now := time.Now()
	return &Insight{
		ID:          uuid.NewString(),
		Category:    category,
		Description: description,
		Evidence:    append([]string(nil), evidence...),
		Confidence:  confidence,
		Level:       level,
		Active:      true,
		Tags:        append([]string(nil), tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate checks an insight reconstructed from storage.
func (i *Insight) Validate() error {
	if i.ID == "" {
		return errors.New("insight id cannot be empty")
	}
	if !i.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, i.Category)
	}
	if !i.Level.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, i.Level)
	}
	if i.Description == "" {
		return ErrEmptyDescription
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if i.Reinforcements < 0 || i.Contradictions < 0 {
		return errors.New("counters cannot be negative")
	}
	return nil
}

// HasTag reports whether the insight carries tag.
func (i *Insight) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SharesTag reports whether the insight carries any of tags.
func (i *Insight) SharesTag(tags []string) bool {
	for _, t := range tags {
		if i.HasTag(t) {
			return true
		}
	}
	return false
}

func (i *Insight) clone() Insight {
	out := *i
	out.Evidence = append([]string(nil), i.Evidence...)
	out.Tags = append([]string(nil), i.Tags...)
	return out
}

func (i *Insight) addEvidence(e string) {
	i.Evidence = append(i.Evidence, e)
	if over := len(i.Evidence) - MaxEvidence; over > 0 {
		i.Evidence = append([]string(nil), i.Evidence[over:]...)
	}
}

func (i *Insight) adjustConfidence(delta float64) {
	i.Confidence = clamp01(i.Confidence + delta)
}

// levelFor returns the level implied by the counters alone.
func levelFor(reinforcements, contradictions int, th Thresholds) Level {
	switch {
	case reinforcements >= th.ConfirmedReinforcements && contradictions <= th.ConfirmedMaxContradictions:
		return LevelConfirmed
	case reinforcements >= th.ProbableReinforcements && contradictions <= th.ProbableMaxContradictions:
		return LevelProbable
	case reinforcements >= th.EmergingReinforcements:
		return LevelEmerging
	default:
		return LevelHypothesis
	}
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
