package insight

import (
	"strings"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

// Message-length bands, as a fraction of the 500-rune normalization.
const (
	longMessage  = 0.4
	shortMessage = 0.1
)

// Scorer computes how strongly an interaction supports (+1) or opposes (-1)
// an insight. Rules are keyed by tag prefix; the first tag with a matching
// rule wins, and insights without one fall back to description keywords.
type Scorer struct {
	topics []Topic
	rules  []scoreRule
}

type scoreRule struct {
	prefix string
	score  func(s *Scorer, value string, smp sample) (float64, bool)
}

// NewScorer creates a scorer over topics, or the default table when nil.
func NewScorer(topics []Topic) *Scorer {
	if topics == nil {
		topics = DefaultTopics()
	}
	return &Scorer{
		topics: topics,
		rules: []scoreRule{
			{tagPattern, (*Scorer).scorePattern},
			{tagTone, (*Scorer).scoreTone},
			{tagTopic, (*Scorer).scoreTopic},
			{tagTrigger, (*Scorer).scoreTrigger},
			{tagDayPart, (*Scorer).scoreDayPart},
			{tagFeature, (*Scorer).scoreFeature},
		},
	}
}

// Score returns the reinforcement score in [-1,1] and whether the
// interaction is relevant to the insight at all.
func (s *Scorer) Score(ins *Insight, i interaction.Interaction, f interaction.Features) (float64, bool) {
	return s.score(ins, newSample(i, f))
}

func (s *Scorer) score(ins *Insight, smp sample) (float64, bool) {
	for _, tag := range ins.Tags {
		prefix, value := splitTag(tag)
		for _, rule := range s.rules {
			if rule.prefix == prefix {
				v, ok := rule.score(s, value, smp)
				return clampScore(v), ok
			}
		}
	}
	v, ok := s.scoreKeywords(ins, smp)
	return clampScore(v), ok
}

func (s *Scorer) scorePattern(value string, smp sample) (float64, bool) {
	if !smp.isSentMessage() {
		return 0, false
	}
	length := smp.features.Get(interaction.FeatureMessageLength)

	switch value {
	case patternLongMessages:
		switch {
		case length >= longMessage:
			return 1, true
		case length >= 2*shortMessage:
			return 0.4, true
		case length < shortMessage:
			return -0.8, true
		}
		return 0, true
	case patternShortMessages:
		switch {
		case length <= shortMessage:
			return 1, true
		case length <= 2*shortMessage:
			return 0.4, true
		case length >= longMessage:
			return -0.8, true
		}
		return 0, true
	case patternQuestions:
		if smp.features.Get(interaction.FeatureHasQuestion) > 0 {
			return 0.8, true
		}
		return 0, true
	}
	return 0, false
}

// scoreTone matches explicit tone feedback: a good rating for the same tone
// supports the insight, a bad one or a good rating for another tone opposes it.
func (s *Scorer) scoreTone(value string, smp sample) (float64, bool) {
	fb := smp.interaction.Feedback
	if fb == nil || fb.FeedbackType != "tone" {
		return 0, false
	}
	tone := strings.ToLower(smp.interaction.Metadata["tone"])
	if tone == "" {
		return 0, false
	}
	switch {
	case tone == value && fb.Rating >= 4:
		return 1, true
	case tone == value && fb.Rating <= 2:
		return -1, true
	case tone != value && fb.Rating >= 4:
		return -0.6, true
	}
	return 0, true
}

func (s *Scorer) scoreTopic(value string, smp sample) (float64, bool) {
	topic, ok := findTopic(s.topics, value)
	if !ok || !smp.hasText() || !topic.Matches(smp.tokens) {
		return 0, false
	}
	sentiment := smp.features.Get(interaction.FeatureSentiment)
	switch {
	case sentiment >= 0:
		return 0.9, true
	case sentiment < -0.3:
		return -0.7, true
	}
	return 0.5, true
}

// scoreTrigger checks sentiment sign against a negative-trigger topic.
func (s *Scorer) scoreTrigger(value string, smp sample) (float64, bool) {
	topic, ok := findTopic(s.topics, value)
	if !ok || !smp.hasText() || !topic.Matches(smp.tokens) {
		return 0, false
	}
	sentiment := smp.features.Get(interaction.FeatureSentiment)
	switch {
	case sentiment < -0.3:
		return 0.9, true
	case sentiment > 0.3:
		return -0.7, true
	}
	return 0, true
}

func (s *Scorer) scoreDayPart(value string, smp sample) (float64, bool) {
	ts := smp.interaction.Timestamp
	if ts.IsZero() {
		return 0, false
	}
	if interaction.DayPart(ts.Hour()) == value {
		return 0.75, true
	}
	return 0, true
}

func (s *Scorer) scoreFeature(value string, smp sample) (float64, bool) {
	if smp.interaction.Type != interaction.TypeFeatureUsed {
		return 0, false
	}
	if smp.interaction.Metadata["feature"] == value {
		return 0.8, true
	}
	return 0, false
}

// scoreKeywords overlaps the insight description's significant words with the
// interaction tokens; negative sentiment flips the sign.
func (s *Scorer) scoreKeywords(ins *Insight, smp sample) (float64, bool) {
	if !smp.hasText() {
		return 0, false
	}
	keywords := map[string]bool{}
	for _, w := range interaction.Tokenize(ins.Description) {
		if len(w) > 3 {
			keywords[w] = true
		}
	}
	matched := 0
	seen := map[string]bool{}
	for _, tok := range smp.tokens {
		if keywords[tok] && !seen[tok] {
			seen[tok] = true
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}
	base := 0.4 + 0.2*float64(matched)
	if smp.features.Get(interaction.FeatureSentiment) < -0.3 {
		return -base, true
	}
	return base, true
}

func clampScore(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
