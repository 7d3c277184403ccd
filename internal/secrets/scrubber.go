package secrets

import (
	"regexp"
	"slices"
	"strings"
)

// Scrubber redacts sensitive spans from text.
type Scrubber interface {
	// Scrub returns the redacted text and what was found.
	Scrub(content string) *Result

	// Enabled reports whether scrubbing is active.
	Enabled() bool
}

// Finding locates one match in the original text.
type Finding struct {
	RuleID string `json:"rule_id"`
	Kind   Kind   `json:"kind"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Result is the outcome of one Scrub call.
type Result struct {
	Scrubbed string         `json:"scrubbed"`
	Findings []Finding      `json:"findings"`
	ByRule   map[string]int `json:"by_rule"`
}

// HasFindings reports whether anything was detected.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the ids of the rules that matched, sorted.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type scrubber struct {
	enabled     bool
	replacement string
	rules       []*compiledRule
	allow       []*regexp.Regexp
}

// New creates a Scrubber. A nil config uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return Noop{}, nil
	}
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	replacement := cfg.Replacement
	if replacement == "" {
		replacement = "[REDACTED]"
	}
	return &scrubber{enabled: true, replacement: replacement, rules: rules, allow: allow}, nil
}

// Redact returns the scrubbed text only.
func Redact(s Scrubber, content string) string {
	return s.Scrub(content).Scrubbed
}

type span struct{ start, end int }

func (s *scrubber) Scrub(content string) *Result {
	res := &Result{Scrubbed: content, ByRule: map[string]int{}}
	if content == "" {
		return res
	}

	var spans []span
	for _, rule := range s.rules {
		if !rule.gated(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			res.Findings = append(res.Findings, Finding{RuleID: rule.ID, Kind: rule.Kind, Start: m[0], End: m[1]})
			res.ByRule[rule.ID]++
			RedactionsTotal.WithLabelValues(rule.ID, string(rule.Kind)).Inc()
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if len(spans) == 0 {
		return res
	}

	var b strings.Builder
	pos := 0
	for _, sp := range merge(spans) {
		b.WriteString(content[pos:sp.start])
		b.WriteString(s.replacement)
		pos = sp.end
	}
	b.WriteString(content[pos:])
	res.Scrubbed = b.String()
	return res
}

func (s *scrubber) Enabled() bool { return s.enabled }

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func (r *compiledRule) gated(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or touching ones.
func merge(spans []span) []span {
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	out := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &out[len(out)-1]
		if cur.start <= last.end {
			last.end = max(last.end, cur.end)
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Noop returns text unchanged.
type Noop struct{}

func (Noop) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (Noop) Enabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
