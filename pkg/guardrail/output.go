package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/harun/agentcore/pkg/execution"
)

// Risk ranks how damaging a leaked value is.
type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
)

// SecretPattern detects one class of secret or personal data.
type SecretPattern struct {
	Name        string
	Label       string
	Risk        Risk
	Pattern     *regexp.Regexp
	Replacement string
}

// Order matters: structured secrets are replaced before the looser PII
// patterns so a card number is never half-redacted as a phone number.
var secretPatterns = []SecretPattern{
	{"private_key", "private key", RiskHigh, regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----[\s\S]*?(?:-----END (?:[A-Z]+ )?PRIVATE KEY-----|$)`), "[REDACTED PRIVATE KEY]"},
	{"jwt", "JWT token", RiskHigh, regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), "[REDACTED JWT TOKEN]"},
	{"bearer_token", "bearer token", RiskHigh, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]{16,}=*`), "[REDACTED BEARER TOKEN]"},
	{"api_key", "API key", RiskHigh, regexp.MustCompile(`\b(?:sk|pk|rk)[-_][A-Za-z0-9_-]{20,}`), "[REDACTED API KEY]"},
	{"aws_key", "AWS access key", RiskHigh, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), "[REDACTED AWS KEY]"},
	{"credit_card", "credit card number", RiskHigh, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), "[REDACTED CREDIT CARD]"},
	{"ssn", "social security number", RiskHigh, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED SSN]"},
	{"email", "email address", RiskMedium, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED EMAIL]"},
	{"phone", "phone number", RiskMedium, regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`), "[REDACTED PHONE]"},
}

// SecretPatterns returns the detector table. The returned slice is a copy;
// the compiled patterns are safe for concurrent use.
func SecretPatterns() []SecretPattern {
	out := make([]SecretPattern, len(secretPatterns))
	copy(out, secretPatterns)
	return out
}

// OutputMode selects what happens when sensitive data is found.
type OutputMode string

const (
	OutputRedact OutputMode = "redact"
	OutputBlock  OutputMode = "block"
)

// OutputValidationConfig configures the output validation guardrail.
type OutputValidationConfig struct {
	Mode OutputMode
}

// OutputValidation detects secrets and personal data in model output.
// Redact mode replaces every match with a labelled placeholder and passes.
// Block mode fails on any high-risk match and redacts medium-risk ones.
type OutputValidation struct {
	mode OutputMode
}

// NewOutputValidation creates an output validation guardrail. Empty mode means redact.
func NewOutputValidation(cfg OutputValidationConfig) (*OutputValidation, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = OutputRedact
	}
	if mode != OutputRedact && mode != OutputBlock {
		return nil, fmt.Errorf("invalid output validation mode: %s", mode)
	}
	return &OutputValidation{mode: mode}, nil
}

func (g *OutputValidation) Name() string { return "output_validation" }
func (g *OutputValidation) Kind() Kind   { return KindOutput }

func (g *OutputValidation) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	return g.CheckText(in.Output), nil
}

// CheckText validates a single output string.
func (g *OutputValidation) CheckText(text string) Result {
	if text == "" {
		return Pass()
	}

	found := map[string]Risk{}
	highRisk := false
	redacted := text
	for _, p := range secretPatterns {
		if !p.Pattern.MatchString(redacted) {
			continue
		}
		found[p.Name] = p.Risk
		if p.Risk == RiskHigh {
			highRisk = true
		}
		redacted = p.Pattern.ReplaceAllString(redacted, p.Replacement)
	}

	if len(found) == 0 {
		return Pass()
	}

	detected := make([]string, 0, len(found))
	for name := range found {
		detected = append(detected, name)
	}
	sort.Strings(detected)

	if g.mode == OutputBlock && highRisk {
		return Block(
			"Output contains sensitive information that cannot be returned",
			map[string]interface{}{"detected": detected, "mode": string(g.mode)},
		)
	}

	return Result{
		Passed:          true,
		Action:          ActionRedact,
		Reason:          "Sensitive information redacted from output",
		RedactedContent: redacted,
		Metadata:        map[string]interface{}{"detected": detected, "mode": string(g.mode)},
	}
}

// Redact replaces every known secret in s with its placeholder.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}
