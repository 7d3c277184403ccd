package interaction

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Feature names produced by Extractor.
const (
	FeatureSentiment      = "sentiment"
	FeatureMessageLength  = "message_length"
	FeatureHasQuestion    = "has_question"
	FeatureTimeOfDay      = "time_of_day"
	FeatureHour           = "hour"
	FeatureIsWeekend      = "is_weekend"
	FeatureWordCount      = "word_count"
	FeatureFeedbackRating = "feedback_rating"

	typePrefix    = "type_"
	contextPrefix = "ctx_"

	maxMessageRunes = 500
)

// Features is a flat feature-name to value map.
type Features map[string]float64

// Get returns the feature value, or 0 when absent.
func (f Features) Get(name string) float64 {
	return f[name]
}

// TypeFeature returns the indicator feature name for t.
func TypeFeature(t Type) string {
	return typePrefix + string(t)
}

// ContextFeature returns the feature name for a context factor. Numeric
// values map to ctx_<key>; others to the indicator ctx_<key>_<value>.
func ContextFeature(key, value string) (string, float64) {
	if v, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return contextPrefix + key, v
	}
	return contextPrefix + key + "_" + strings.ToLower(value), 1
}

// Extractor turns an interaction into Features. It is pure and safe for
// concurrent use.
type Extractor struct {
	lexicon *Lexicon
}

// NewExtractor creates an extractor over lex, or the default lexicon when nil.
func NewExtractor(lex *Lexicon) *Extractor {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Extractor{lexicon: lex}
}

// Lexicon returns the extractor's word tables.
func (e *Extractor) Lexicon() *Lexicon {
	return e.lexicon
}

// Extract computes features for i. Missing fields yield neutral values.
func (e *Extractor) Extract(i Interaction) Features {
	tokens := Tokenize(i.Content)
	f := Features{}

	if i.Sentiment != nil {
		f[FeatureSentiment] = clamp(*i.Sentiment, -1, 1)
	} else {
		f[FeatureSentiment] = e.lexicon.Sentiment(tokens)
	}

	f[FeatureMessageLength] = clamp(float64(utf8.RuneCountInString(i.Content))/maxMessageRunes, 0, 1)
	f[FeatureWordCount] = float64(len(tokens))
	if e.lexicon.IsQuestion(i.Content, tokens) {
		f[FeatureHasQuestion] = 1
	} else {
		f[FeatureHasQuestion] = 0
	}

	if !i.Timestamp.IsZero() {
		ts := i.Timestamp
		f[FeatureHour] = float64(ts.Hour())
		f[FeatureTimeOfDay] = (float64(ts.Hour()) + float64(ts.Minute())/60) / 24
		if wd := ts.Weekday(); wd == 0 || wd == 6 {
			f[FeatureIsWeekend] = 1
		} else {
			f[FeatureIsWeekend] = 0
		}
	}

	if i.Type != "" {
		f[TypeFeature(i.Type)] = 1
	}

	if i.Feedback != nil && i.Feedback.Rating > 0 {
		f[FeatureFeedbackRating] = clamp(float64(i.Feedback.Rating-1)/4, 0, 1)
	}

	for k, v := range i.Context {
		name, val := ContextFeature(k, v)
		f[name] = val
	}
	return f
}

// Tokenize lower-cases text and splits it into letter/digit words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DayPart buckets an hour into morning, afternoon, evening or night.
func DayPart(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}
