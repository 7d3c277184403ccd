package insight

import (
	"strings"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

// Tag prefixes naming the pattern an insight tracks.
const (
	tagPattern = "pattern:"
	tagTone    = "tone:"
	tagTopic   = "topic:"
	tagTrigger = "trigger:"
	tagDayPart = "daypart:"
	tagFeature = "feature:"

	patternLongMessages  = "long_messages"
	patternShortMessages = "short_messages"
	patternQuestions     = "questions"
)

// Topic is a named keyword set used for interest and trigger detection.
type Topic struct {
	Name     string
	Category Category
	Keywords []string
}

// Matches reports whether any token is one of the topic's keywords.
func (t Topic) Matches(tokens []string) bool {
	for _, tok := range tokens {
		for _, kw := range t.Keywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

// DefaultTopics returns the built-in topic table.
func DefaultTopics() []Topic {
	return []Topic{
		{"technology", CategorySubjectInterests, []string{"software", "code", "programming", "computer", "app", "ai", "robot", "gadget", "internet", "tech"}},
		{"science", CategorySubjectInterests, []string{"science", "physics", "biology", "chemistry", "space", "quantum", "experiment", "research", "astronomy"}},
		{"music", CategoryCreativeExpression, []string{"music", "song", "songs", "guitar", "piano", "band", "concert", "album", "sing"}},
		{"writing", CategoryCreativeExpression, []string{"write", "writing", "poem", "poetry", "story", "novel", "journal", "blog"}},
		{"art", CategoryCreativeExpression, []string{"art", "painting", "drawing", "sketch", "design", "photography", "museum"}},
		{"sports", CategoryActivityPreferences, []string{"football", "soccer", "basketball", "tennis", "game", "match", "team", "sports"}},
		{"cooking", CategoryActivityPreferences, []string{"cook", "cooking", "recipe", "bake", "baking", "dinner", "kitchen", "food"}},
		{"travel", CategoryActivityPreferences, []string{"travel", "trip", "flight", "hotel", "vacation", "beach", "hiking"}},
		{"fitness", CategoryHealthWellness, []string{"workout", "gym", "run", "running", "yoga", "exercise", "fitness", "steps"}},
		{"sleep", CategoryHealthWellness, []string{"sleep", "tired", "nap", "insomnia", "bed", "rest"}},
		{"work", CategoryTimeManagement, []string{"work", "meeting", "deadline", "project", "boss", "office", "schedule", "calendar"}},
		{"family", CategorySocialContext, []string{"family", "mom", "dad", "kids", "brother", "sister", "wife", "husband", "friend", "friends"}},
		{"money", CategoryDecisionMaking, []string{"money", "budget", "price", "buy", "cost", "invest", "salary", "bills"}},
	}
}

// sample is one interaction in the recent window, with its features and
// tokens precomputed.
type sample struct {
	interaction interaction.Interaction
	features    interaction.Features
	tokens      []string
}

func newSample(i interaction.Interaction, f interaction.Features) sample {
	return sample{interaction: i, features: f, tokens: interaction.Tokenize(i.Content)}
}

func (s sample) hasText() bool {
	return s.interaction.Type.IsMessage() || s.interaction.Type == interaction.TypeContentEngagement
}

func (s sample) isSentMessage() bool {
	return s.interaction.Type == interaction.TypeMessageSent && s.interaction.Content != ""
}

func splitTag(tag string) (prefix, value string) {
	if idx := strings.Index(tag, ":"); idx >= 0 {
		return tag[:idx+1], tag[idx+1:]
	}
	return "", tag
}

func findTopic(topics []Topic, name string) (Topic, bool) {
	for _, t := range topics {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}
