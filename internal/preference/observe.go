package preference

import (
	"strconv"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

// Preference categories fed from interactions.
const (
	CategoryCommunication = "communication"
	CategoryTone          = "tone"
	CategorySchedule      = "schedule"
	CategoryFeatures      = "features"
	CategorySettings      = "settings"
	CategoryContent       = "content"
	CategoryFeedback      = "feedback"
)

// Observation is one (category, key, value) sample for Update.
type Observation struct {
	Category string
	Key      string
	Value    float64
}

// Observe maps an interaction and its features to preference observations.
func Observe(i interaction.Interaction, f interaction.Features) []Observation {
	var obs []Observation

	if i.Type.IsMessage() && i.Content != "" {
		obs = append(obs,
			Observation{CategoryCommunication, "message_length", f.Get(interaction.FeatureMessageLength)},
			Observation{CategoryCommunication, "questions", f.Get(interaction.FeatureHasQuestion)},
			Observation{CategoryTone, "positive", (f.Get(interaction.FeatureSentiment) + 1) / 2},
		)
	}

	if !i.Timestamp.IsZero() {
		obs = append(obs, Observation{CategorySchedule, interaction.DayPart(i.Timestamp.Hour()), 1})
	}

	switch i.Type {
	case interaction.TypeFeatureUsed:
		if name := i.Metadata["feature"]; name != "" {
			obs = append(obs, Observation{CategoryFeatures, name, 1})
		}
	case interaction.TypeSettingChanged:
		if name := i.Metadata["setting"]; name != "" {
			v := 1.0
			if parsed, err := strconv.ParseFloat(i.Metadata["value"], 64); err == nil && finite(parsed) {
				v = parsed
			}
			obs = append(obs, Observation{CategorySettings, name, v})
		}
	case interaction.TypeContentEngagement:
		if topic := i.Metadata["topic"]; topic != "" {
			obs = append(obs, Observation{CategoryContent, topic, 1})
		}
	case interaction.TypeExplicitFeedback:
		if i.Feedback != nil && i.Feedback.FeedbackType != "" {
			obs = append(obs, Observation{CategoryFeedback, i.Feedback.FeedbackType, f.Get(interaction.FeatureFeedbackRating)})
		}
	}
	return obs
}

// Apply feeds every observation into s at rate.
func (s *Store) Apply(obs []Observation, rate float64) {
	for _, o := range obs {
		s.Update(o.Category, o.Key, o.Value, rate)
	}
}
