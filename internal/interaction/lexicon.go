package interaction

// Lexicon holds the word tables used for lexical scoring. Keys are lower-case.
type Lexicon struct {
	Positive      map[string]float64
	Negative      map[string]float64
	QuestionWords map[string]bool
}

// DefaultLexicon returns the built-in English word tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Positive: map[string]float64{
			"good": 1, "great": 1.5, "excellent": 2, "amazing": 2, "awesome": 2,
			"love": 2, "like": 0.5, "thanks": 1, "thank": 1, "happy": 1.5,
			"perfect": 2, "nice": 1, "helpful": 1.5, "wonderful": 2, "enjoy": 1,
			"glad": 1, "fantastic": 2, "fun": 1, "cool": 1, "yes": 0.5,
		},
		Negative: map[string]float64{
			"bad": 1, "terrible": 2, "awful": 2, "hate": 2, "dislike": 1.5,
			"wrong": 1, "annoying": 1.5, "sad": 1.5, "angry": 2, "useless": 2,
			"boring": 1, "poor": 1, "worse": 1.5, "worst": 2, "frustrated": 2,
			"upset": 1.5, "no": 0.5, "stressed": 1.5, "tired": 1, "confusing": 1,
		},
		QuestionWords: map[string]bool{
			"what": true, "why": true, "how": true, "when": true, "where": true,
			"who": true, "which": true, "can": true, "could": true, "would": true,
			"should": true, "is": true, "are": true, "do": true, "does": true,
		},
	}
}

// Sentiment scores tokens in [-1, 1]: the weighted positive share minus the
// weighted negative share of the matched words. No matches score 0.
func (l *Lexicon) Sentiment(tokens []string) float64 {
	var pos, neg float64
	for _, tok := range tokens {
		pos += l.Positive[tok]
		neg += l.Negative[tok]
	}
	if pos+neg == 0 {
		return 0
	}
	return (pos - neg) / (pos + neg)
}

// IsQuestion reports whether text reads as a question.
func (l *Lexicon) IsQuestion(text string, tokens []string) bool {
	for _, r := range text {
		if r == '?' {
			return true
		}
	}
	return len(tokens) > 0 && l.QuestionWords[tokens[0]]
}
