// Package interaction defines user-interaction events and lexical feature
// extraction over them.
package interaction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Type classifies an interaction event.
type Type string

const (
	TypeMessageReceived   Type = "MESSAGE_RECEIVED"
	TypeMessageSent       Type = "MESSAGE_SENT"
	TypeFeatureUsed       Type = "FEATURE_USED"
	TypeSettingChanged    Type = "SETTING_CHANGED"
	TypeExplicitFeedback  Type = "EXPLICIT_FEEDBACK"
	TypeActionTaken       Type = "ACTION_TAKEN"
	TypeSessionStart      Type = "SESSION_START"
	TypeSessionEnd        Type = "SESSION_END"
	TypeContentEngagement Type = "CONTENT_ENGAGEMENT"
)

// Types lists every interaction type.
var Types = []Type{
	TypeMessageReceived, TypeMessageSent, TypeFeatureUsed, TypeSettingChanged,
	TypeExplicitFeedback, TypeActionTaken, TypeSessionStart, TypeSessionEnd,
	TypeContentEngagement,
}

// Valid reports whether t is a known interaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeMessageReceived, TypeMessageSent, TypeFeatureUsed, TypeSettingChanged,
		TypeExplicitFeedback, TypeActionTaken, TypeSessionStart, TypeSessionEnd,
		TypeContentEngagement:
		return true
	default:
		return false
	}
}

// IsMessage reports whether t carries user-authored text.
func (t Type) IsMessage() bool {
	return t == TypeMessageSent || t == TypeMessageReceived
}

var (
	ErrInvalidType      = errors.New("invalid interaction type")
	ErrInvalidSentiment = errors.New("sentiment must be in [-1, 1]")
	ErrInvalidRating    = errors.New("feedback rating must be in [1, 5]")
)

// Feedback is structured feedback attached to an interaction.
type Feedback struct {
	Rating       int    `json:"rating"`
	Text         string `json:"text,omitempty"`
	TargetID     string `json:"target_id,omitempty"`
	FeedbackType string `json:"feedback_type,omitempty"`

	// ExperimentID and Variant route the feedback to a running experiment.
	ExperimentID string `json:"experiment_id,omitempty"`
	Variant      string `json:"variant,omitempty"`
	Success      *bool  `json:"success,omitempty"`
}

// Succeeded reports the experiment outcome: the explicit Success flag when
// set, otherwise a rating of 4 or more.
func (f *Feedback) Succeeded() bool {
	if f.Success != nil {
		return *f.Success
	}
	return f.Rating >= 4
}

// Interaction is one immutable user-interaction event.
type Interaction struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      Type              `json:"type"`
	Content   string            `json:"content,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Sentiment *float64          `json:"sentiment,omitempty"`
	Feedback  *Feedback         `json:"feedback,omitempty"`
}

// New creates an interaction with a fresh id and the current time.
func New(t Type, content string) Interaction {
	return Interaction{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
		Content:   content,
	}
}

// Normalize fills a missing id and timestamp.
func (i *Interaction) Normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = now
	}
}

// Validate checks enumerations and ranges.
func (i *Interaction) Validate() error {
	if !i.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, i.Type)
	}
	if i.Sentiment != nil && (math.IsNaN(*i.Sentiment) || *i.Sentiment < -1 || *i.Sentiment > 1) {
		return ErrInvalidSentiment
	}
	if i.Feedback != nil && (i.Feedback.Rating < 1 || i.Feedback.Rating > 5) {
		return ErrInvalidRating
	}
	return nil
}

// Float64 returns a pointer to v, for optional sentiment values.
func Float64(v float64) *float64 {
	return &v
}
