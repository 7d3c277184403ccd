package secrets

// DefaultRules returns the default detection rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "private-key",
			Description: "PEM private key header",
			Kind:        KindCredential,
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key id",
			Kind:        KindCredential,
			Pattern:     `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`,
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Kind:        KindCredential,
			Pattern:     `\bgh[pousr]_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Kind:        KindCredential,
			Pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		},
		{
			ID:          "bearer-token",
			Description: "HTTP bearer token",
			Kind:        KindCredential,
			Pattern:     `(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{16,}`,
			Keywords:    []string{"bearer"},
		},
		{
			ID:          "url-credentials",
			Description: "Credentials embedded in a URL",
			Kind:        KindCredential,
			Pattern:     `[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:/@]+:[^\s@/]+@`,
		},
		{
			ID:          "assigned-secret",
			Description: "Password or key assignment",
			Kind:        KindCredential,
			Pattern:     `(?i)\b(?:password|passwd|pwd|secret|api[_-]?key|token)\s*[:=]\s*['"]?[^\s'"]{6,}['"]?`,
			Keywords:    []string{"pass", "pwd", "secret", "key", "token"},
		},
		{
			ID:          "email-address",
			Description: "Email address",
			Kind:        KindPersonal,
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Keywords:    []string{"@"},
		},
		{
			ID:          "payment-card",
			Description: "Payment card number",
			Kind:        KindPersonal,
			Pattern:     `\b(?:\d[ -]?){12,18}\d\b`,
		},
		{
			ID:          "us-ssn",
			Description: "US social security number",
			Kind:        KindPersonal,
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			ID:          "phone-number",
			Description: "Phone number",
			Kind:        KindPersonal,
			Pattern:     `(?:\+\d{1,3}[ .-]?)?\(?\b\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b`,
		},
	}
}
