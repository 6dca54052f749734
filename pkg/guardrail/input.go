package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/llm"
)

// SafetyMode controls how aggressive input screening is.
type SafetyMode string

const (
	ModeModerate SafetyMode = "moderate"
	ModeStrict   SafetyMode = "strict"
)

const (
	specialCharThreshold = 0.3
	specialCharMinLength = 10
)

type signature struct {
	name    string
	pattern *regexp.Regexp
}

var injectionSignatures = []signature{
	{"instruction override", regexp.MustCompile(`(?i)\b(?:ignore|disregard|forget|override|bypass)\s+(?:all\s+|any\s+|the\s+|your\s+)?(?:(?:previous|prior|above|earlier|preceding|system)\s+)?(?:instructions|prompts?|rules|directives|guidelines)\b`)},
	{"role confusion", regexp.MustCompile(`(?i)\byou\s+are\s+(?:now|no\s+longer)\s+(?:a|an|in|the|my)\b`)},
	{"role confusion", regexp.MustCompile(`(?i)\b(?:pretend|act)\s+(?:to\s+be|as\s+if|as)\b.{0,40}\b(?:unrestricted|unfiltered|jailbroken|without\s+(?:any\s+)?(?:rules|restrictions|limits))`)},
	{"system prompt spoofing", regexp.MustCompile(`(?im)^\s*(?:\[|<)?\s*system\s*(?:\]|>)?\s*:`)},
	{"system prompt spoofing", regexp.MustCompile(`(?i)\b(?:reveal|print|show|repeat)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|hidden\s+instructions|initial\s+instructions)`)},
	{"control token", regexp.MustCompile(`(?i)<\|(?:im_start|im_end|system|endoftext)\|>|\[/?INST\]|<<SYS>>`)},
	{"jailbreak keyword", regexp.MustCompile(`(?i)\b(?:DAN\s+mode|do\s+anything\s+now|developer\s+mode\s+enabled|jailbreak(?:ed)?\s+mode)\b`)},
}

// InputSafetyConfig configures the input safety guardrail.
type InputSafetyConfig struct {
	Mode SafetyMode
}

// InputSafety screens user messages for prompt-injection signatures.
type InputSafety struct {
	mode SafetyMode
}

// NewInputSafety creates an input safety guardrail. Empty mode means moderate.
func NewInputSafety(cfg InputSafetyConfig) (*InputSafety, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeModerate
	}
	if mode != ModeModerate && mode != ModeStrict {
		return nil, fmt.Errorf("invalid input safety mode: %s", mode)
	}
	return &InputSafety{mode: mode}, nil
}

func (g *InputSafety) Name() string { return "input_safety" }
func (g *InputSafety) Kind() Kind   { return KindInput }

// Check inspects every user message of the transcript.
func (g *InputSafety) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	for i, msg := range in.Messages {
		if msg.Role != llm.RoleUser {
			continue
		}
		if res, blocked := g.checkText(msg.Content); blocked {
			res.Metadata["messageIndex"] = i
			return res, nil
		}
	}
	return Pass(), nil
}

// CheckText screens a single piece of text.
func (g *InputSafety) CheckText(text string) Result {
	if res, blocked := g.checkText(text); blocked {
		return res
	}
	return Pass()
}

func (g *InputSafety) checkText(text string) (Result, bool) {
	for _, sig := range injectionSignatures {
		if sig.pattern.MatchString(text) {
			return Block(
				fmt.Sprintf("Potential prompt injection detected (%s)", sig.name),
				map[string]interface{}{"signature": sig.name, "mode": string(g.mode)},
			), true
		}
	}

	if g.mode == ModeStrict {
		density := specialCharDensity(text)
		if len([]rune(text)) >= specialCharMinLength && density > specialCharThreshold {
			return Block(
				"Input has excessive special character density",
				map[string]interface{}{"density": density, "threshold": specialCharThreshold, "mode": string(g.mode)},
			), true
		}
	}
	return Result{}, false
}

func specialCharDensity(text string) float64 {
	total, special := 0, 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

// KeywordFilterConfig configures a keyword/pattern filter.
type KeywordFilterConfig struct {
	Name            string
	Kind            Kind
	BlockedKeywords []string
	BlockedPatterns []string
}

// KeywordFilter blocks content containing configured keywords or matching
// configured patterns. It can run at the input or output checkpoint.
type KeywordFilter struct {
	name     string
	kind     Kind
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeywordFilter compiles a keyword filter.
func NewKeywordFilter(cfg KeywordFilterConfig) (*KeywordFilter, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindInput
	}
	if kind != KindInput && kind != KindOutput {
		return nil, fmt.Errorf("keyword filter cannot run at %s checkpoint", kind)
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.BlockedPatterns))
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	keywords := make([]string, 0, len(cfg.BlockedKeywords))
	for _, kw := range cfg.BlockedKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, strings.ToLower(kw))
		}
	}

	name := cfg.Name
	if name == "" {
		name = string(kind) + "_keyword_filter"
	}

	return &KeywordFilter{name: name, kind: kind, keywords: keywords, patterns: patterns}, nil
}

func (f *KeywordFilter) Name() string { return f.name }
func (f *KeywordFilter) Kind() Kind   { return f.kind }

func (f *KeywordFilter) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	if f.kind == KindOutput {
		return f.checkText(in.Output), nil
	}
	for _, msg := range in.Messages {
		if msg.Role != llm.RoleUser {
			continue
		}
		if res := f.checkText(msg.Content); !res.Passed {
			return res, nil
		}
	}
	return Pass(), nil
}

func (f *KeywordFilter) checkText(text string) Result {
	normalized := strings.ToLower(text)
	for _, kw := range f.keywords {
		if strings.Contains(normalized, kw) {
			return Block(fmt.Sprintf("Content contains blocked keyword: %s", kw), map[string]interface{}{"keyword": kw})
		}
	}
	for i, re := range f.patterns {
		if re.MatchString(text) {
			return Block(fmt.Sprintf("Content matches blocked pattern #%d", i+1), map[string]interface{}{"pattern": re.String()})
		}
	}
	return Pass()
}
