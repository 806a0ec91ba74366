package logging

import "regexp"

// Redactor masks credential material in log strings.
type Redactor struct {
	patterns []*regexp.Regexp
}

// redactedPlaceholder replaces any matched secret.
const redactedPlaceholder = "[REDACTED]"

// NewRedactor builds a redactor covering the credential shapes this
// service handles: vendor API keys and bearer tokens.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Google-style API keys.
			regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
			// "sk-" prefixed secret keys.
			regexp.MustCompile(`sk-[A-Za-z0-9_\-]{16,}`),
			// Bearer tokens in header dumps.
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{8,}`),
		},
	}
}

// Redact returns s with every recognized secret replaced.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}
