package secrets

import (
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/learnd/internal/config"
)

// Kind groups rules by what they protect.
type Kind string

const (
	KindCredential Kind = "credential"
	KindPersonal   Kind = "personal"
)

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active.
	Enabled bool

	// Rules are evaluated in order.
	Rules []Rule

	// Replacement substitutes every redacted span.
	Replacement string

	// AllowList holds patterns whose matches are never redacted.
	AllowList []string
}

// Rule defines one detection pattern.
type Rule struct {
	ID          string
	Description string
	Kind        Kind
	Pattern     string

	// Keywords gate the rule: when set, at least one must appear
	// (case-insensitively) anywhere in the text.
	Keywords []string
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled configuration with the default rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		Rules:       DefaultRules(),
		Replacement: "[REDACTED]",
	}
}

// ConfigFrom derives scrubber config from the privacy section.
func ConfigFrom(p config.PrivacyConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = !p.Disabled
	if p.Replacement != "" {
		cfg.Replacement = p.Replacement
	}
	cfg.AllowList = append([]string(nil), p.AllowList...)
	return cfg
}

func (c *Config) compile() ([]*compiledRule, []*regexp.Regexp, error) {
	rules := make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: id is required", i)
		}
		if rule.Pattern == "" {
			return nil, nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		cr := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		rules = append(rules, cr)
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}
