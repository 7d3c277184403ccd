package knowledge

import (
	"strings"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

// minSignificantLen is the rune count a word must exceed to count toward
// similarity.
const minSignificantLen = 3

func significantWords(text string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range interaction.Tokenize(text) {
		if len([]rune(tok)) > minSignificantLen {
			out[tok] = true
		}
	}
	return out
}

// jaccard returns |a∩b| / |a∪b| and the intersection size.
func jaccard(a, b map[string]bool) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union), shared
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nor": true,
	"don't": true, "doesn't": true, "didn't": true, "isn't": true, "aren't": true,
	"wasn't": true, "weren't": true, "won't": true, "can't": true, "cannot": true,
	"shouldn't": true, "wouldn't": true, "without": true,
}

// negationLookahead bounds how far past a negation token the negated word is
// searched for.
const negationLookahead = 3

// negatedSpan returns the first negated word in source that target also
// contains without negating it.
func negatedSpan(source, target string) (string, bool) {
	src := interaction.Tokenize(source)
	tgt := interaction.Tokenize(target)

	targetPlain := map[string]bool{}
	for i, tok := range tgt {
		if i > 0 && negations[tgt[i-1]] {
			continue
		}
		targetPlain[tok] = true
	}

	for i, tok := range src {
		if !negations[tok] {
			continue
		}
		for j := i + 1; j < len(src) && j <= i+negationLookahead; j++ {
			word := src[j]
			if len([]rune(word)) <= minSignificantLen || negations[word] {
				continue
			}
			if targetPlain[word] {
				return word, true
			}
			break
		}
	}
	return "", false
}

// fragment returns the leading clause of text, at most maxWords words.
func fragment(text string, maxWords int) string {
	clause := text
	if i := strings.IndexAny(text, ".;:!?,\n"); i >= 0 {
		clause = text[:i]
	}
	words := strings.Fields(clause)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
