package logger

import (
	"io"
	"regexp"

	"github.com/harun/agentcore/pkg/guardrail"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor scrubs secrets from log output.
type Redactor struct {
	rules []rule
}

// key=value style credentials that show up in logged configs and errors.
var logPatterns = []string{
	`(?i)password["\s:=]+[^\s"]+`,
	`(?i)pwd["\s:=]+[^\s"]+`,
	`(?i)api_key["\s:=]+[^\s"]+`,
	`(?i)token["\s:=]+[a-zA-Z0-9._-]{20,}`,
	`(?i)secret["\s:=]+[^\s"]+`,
}

// NewRedactor creates a redactor with the high-risk output guardrail
// detectors plus the credential assignments above. Medium-risk PII such as
// emails is left alone so logs stay useful.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range guardrail.SecretPatterns() {
		if p.Risk != guardrail.RiskHigh {
			continue
		}
		r.rules = append(r.rules, rule{pattern: p.Pattern, replacement: p.Replacement})
	}
	for _, p := range logPatterns {
		r.rules = append(r.rules, rule{pattern: regexp.MustCompile(p), replacement: "[REDACTED]"})
	}
	return r
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{pattern: re, replacement: "[REDACTED]"})
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	for _, rl := range r.rules {
		s = rl.pattern.ReplaceAllString(s, rl.replacement)
	}
	return s
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success: callers measure progress against their
// own buffer, not the rewritten one.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
