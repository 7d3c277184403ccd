package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

// candidate is a recurring pattern proposed as a new insight.
type candidate struct {
	category    Category
	description string
	tags        []string
	evidence    []string
	strong      bool
}

// detector scans the recent window for one kind of recurring pattern.
type detector func(window []sample, topics []Topic) []candidate

// Minimum sample sizes before a share-based pattern is considered.
const (
	minMessagesForStyle = 5
	minTimestamped      = 5
	minTopicMatches     = 2
	minFeatureUses      = 3
	minToneVotes        = 2
)

func defaultDetectors() []detector {
	return []detector{
		detectMessageLength,
		detectQuestions,
		detectToneFeedback,
		detectTopics,
		detectTriggers,
		detectDayPart,
		detectFeatureUsage,
	}
}

func sentMessages(window []sample) []sample {
	var out []sample
	for _, s := range window {
		if s.isSentMessage() {
			out = append(out, s)
		}
	}
	return out
}

func detectMessageLength(window []sample, _ []Topic) []candidate {
	msgs := sentMessages(window)
	if len(msgs) < minMessagesForStyle {
		return nil
	}
	var long, short int
	for _, m := range msgs {
		switch l := m.features.Get(interaction.FeatureMessageLength); {
		case l >= longMessage:
			long++
		case l <= shortMessage:
			short++
		}
	}
	n := float64(len(msgs))
	switch {
	case float64(long)/n >= 0.6:
		return []candidate{{
			category:    CategoryCommunicationStyle,
			description: "Prefers writing long, detailed messages",
			tags:        []string{tagPattern + patternLongMessages},
			evidence:    []string{fmt.Sprintf("%d of %d recent messages were long", long, len(msgs))},
			strong:      float64(long)/n >= 0.8,
		}}
	case float64(short)/n >= 0.6:
		return []candidate{{
			category:    CategoryCommunicationStyle,
			description: "Prefers short, concise messages",
			tags:        []string{tagPattern + patternShortMessages},
			evidence:    []string{fmt.Sprintf("%d of %d recent messages were short", short, len(msgs))},
			strong:      float64(short)/n >= 0.8,
		}}
	}
	return nil
}

func detectQuestions(window []sample, _ []Topic) []candidate {
	msgs := sentMessages(window)
	if len(msgs) < minMessagesForStyle {
		return nil
	}
	q := 0
	for _, m := range msgs {
		if m.features.Get(interaction.FeatureHasQuestion) > 0 {
			q++
		}
	}
	share := float64(q) / float64(len(msgs))
	if share < 0.4 {
		return nil
	}
	return []candidate{{
		category:    CategoryConversationFlow,
		description: "Frequently asks questions to drive the conversation",
		tags:        []string{tagPattern + patternQuestions},
		evidence:    []string{fmt.Sprintf("%d of %d recent messages were questions", q, len(msgs))},
		strong:      share >= 0.7,
	}}
}

func detectToneFeedback(window []sample, _ []Topic) []candidate {
	votes := map[string]int{}
	for _, s := range window {
		fb := s.interaction.Feedback
		if fb == nil || fb.FeedbackType != "tone" || fb.Rating < 4 {
			continue
		}
		if tone := strings.ToLower(s.interaction.Metadata["tone"]); tone != "" {
			votes[tone]++
		}
	}
	var out []candidate
	for _, tone := range sortedKeys(votes) {
		n := votes[tone]
		if n < minToneVotes {
			continue
		}
		out = append(out, candidate{
			category:    CategoryTonePreferences,
			description: fmt.Sprintf("Prefers a %s tone in responses", tone),
			tags:        []string{tagTone + tone},
			evidence:    []string{fmt.Sprintf("rated %s responses highly %d times", tone, n)},
			strong:      n >= 3,
		})
	}
	return out
}

func detectTopics(window []sample, topics []Topic) []candidate {
	var out []candidate
	for _, topic := range topics {
		matches, positive := 0, 0
		for _, s := range window {
			if !s.hasText() || !topic.Matches(s.tokens) {
				continue
			}
			matches++
			if s.features.Get(interaction.FeatureSentiment) >= 0 {
				positive++
			}
		}
		if matches < minTopicMatches || positive*2 < matches {
			continue
		}
		out = append(out, candidate{
			category:    topic.Category,
			description: fmt.Sprintf("Shows recurring interest in %s", topic.Name),
			tags:        []string{tagTopic + topic.Name},
			evidence:    []string{fmt.Sprintf("%s mentioned in %d recent interactions", topic.Name, matches)},
			strong:      matches >= 4,
		})
	}
	return out
}

func detectTriggers(window []sample, topics []Topic) []candidate {
	var out []candidate
	for _, topic := range topics {
		negative := 0
		for _, s := range window {
			if s.hasText() && topic.Matches(s.tokens) && s.features.Get(interaction.FeatureSentiment) < -0.3 {
				negative++
			}
		}
		if negative < minTopicMatches {
			continue
		}
		out = append(out, candidate{
			category:    CategoryEmotionalTriggers,
			description: fmt.Sprintf("Conversations about %s tend to carry negative sentiment", topic.Name),
			tags:        []string{tagTrigger + topic.Name},
			evidence:    []string{fmt.Sprintf("%d negative mentions of %s", negative, topic.Name)},
			strong:      negative >= 4,
		})
	}
	return out
}

func detectDayPart(window []sample, _ []Topic) []candidate {
	counts := map[string]int{}
	total := 0
	for _, s := range window {
		if ts := s.interaction.Timestamp; !ts.IsZero() {
			counts[interaction.DayPart(ts.Hour())]++
			total++
		}
	}
	if total < minTimestamped {
		return nil
	}
	for _, part := range sortedKeys(counts) {
		share := float64(counts[part]) / float64(total)
		if share < 0.6 {
			continue
		}
		return []candidate{{
			category:    CategoryDailyPatterns,
			description: fmt.Sprintf("Most active in the %s", part),
			tags:        []string{tagDayPart + part},
			evidence:    []string{fmt.Sprintf("%d of %d recent interactions in the %s", counts[part], total, part)},
			strong:      share >= 0.8,
		}}
	}
	return nil
}

func detectFeatureUsage(window []sample, _ []Topic) []candidate {
	uses := map[string]int{}
	for _, s := range window {
		if s.interaction.Type == interaction.TypeFeatureUsed {
			if name := s.interaction.Metadata["feature"]; name != "" {
				uses[name]++
			}
		}
	}
	var out []candidate
	for _, name := range sortedKeys(uses) {
		n := uses[name]
		if n < minFeatureUses {
			continue
		}
		out = append(out, candidate{
			category:    CategoryActivityPreferences,
			description: fmt.Sprintf("Frequently uses the %s feature", name),
			tags:        []string{tagFeature + name},
			evidence:    []string{fmt.Sprintf("used %s %d times recently", name, n)},
			strong:      n >= 5,
		})
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
