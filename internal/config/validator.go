package config

import (
	"fmt"
	"strings"

	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/knowledge"
	"github.com/harun/agentcore/pkg/tool/builtin"
)

// Validator performs the detailed checks behind `agentcore validate`.
// Config.Validate covers what is needed to start; the validator reports
// every problem it finds.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format. Keys for a custom base URL
// are only checked for presence since proxies issue their own formats.
func (v *Validator) ValidateAPIKey(key, provider, baseURL string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%s API key has surrounding whitespace", provider)
	}
	if baseURL != "" {
		return nil
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, "debug", "info", "warn", "error")
}

// ValidateGuardrails checks guardrail modes and patterns.
func (v *Validator) ValidateGuardrails(g GuardrailsConfig) []error {
	var errs []error
	if g.Input.Mode != "" {
		if err := oneOf("input guardrail mode", g.Input.Mode, string(guardrail.ModeModerate), string(guardrail.ModeStrict)); err != nil {
			errs = append(errs, err)
		}
	}
	if g.Output.Mode != "" {
		if err := oneOf("output guardrail mode", g.Output.Mode, string(guardrail.OutputRedact), string(guardrail.OutputBlock)); err != nil {
			errs = append(errs, err)
		}
	}
	if g.Cost.MaxCostUSD < 0 && g.Cost.MaxCostUSD != -1 {
		errs = append(errs, fmt.Errorf("cost guardrail max_cost_usd must be positive or -1 to disable"))
	}
	if _, err := guardrail.NewKeywordFilter(guardrail.KeywordFilterConfig{
		BlockedKeywords: g.Keywords.BlockedKeywords,
		BlockedPatterns: g.Keywords.BlockedPatterns,
	}); err != nil {
		errs = append(errs, fmt.Errorf("keyword guardrail: %w", err))
	}
	return errs
}

// ValidateTools checks that every tool an agent names exists.
func (v *Validator) ValidateTools(agent AgentConfig, knowledgeEnabled bool) []error {
	var errs []error
	for _, name := range agent.Tools {
		if name == knowledge.ToolName {
			if !knowledgeEnabled {
				errs = append(errs, fmt.Errorf("agent %s: tool %s requires knowledge.base_url", agent.ID, name))
			}
			continue
		}
		if _, ok := builtin.Registry[name]; !ok {
			errs = append(errs, fmt.Errorf("agent %s: unknown tool %s (available: %s, %s)",
				agent.ID, name, strings.Join(builtin.Names(), ", "), knowledge.ToolName))
		}
	}
	return errs
}

// DelegationCycle returns the first cycle in the delegation graph, as a
// path of agent ids, or nil.
func (v *Validator) DelegationCycle(agents []AgentConfig) []string {
	edges := make(map[string][]string, len(agents))
	for _, a := range agents {
		edges[a.ID] = a.Delegates
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(agents))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inProgress
		path = append(path, id)
		for _, next := range edges[id] {
			switch state[next] {
			case inProgress:
				for i, p := range path {
					if p == next {
						return append(append([]string(nil), path[i:]...), next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, a := range agents {
		if state[a.ID] == unvisited {
			if cycle := visit(a.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	targets := map[string]*ProviderConfig{"primary": &cfg.Providers.Primary, "fallback": cfg.Providers.Fallback}
	for _, role := range []string{"primary", "fallback"} {
		p := targets[role]
		if p == nil {
			continue
		}
		if key := p.ResolveAPIKey(); key != "" {
			if err := v.ValidateAPIKey(key, p.Provider, p.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("%s provider: %w", role, err))
			}
		}
		if p.TimeoutMs < 0 || p.MaxRetries < 0 || p.RetryDelayMs < 0 {
			errs = append(errs, fmt.Errorf("%s provider: timeout_ms, max_retries and retry_delay_ms must be >= 0", role))
		}
		if p.RateLimit < 0 || p.Burst < 0 {
			errs = append(errs, fmt.Errorf("%s provider: rate_limit and burst must be >= 0", role))
		}
	}

	if cfg.Runner.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("runner.max_iterations must be >= 0"))
	}
	if cfg.Runner.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("runner.timeout_ms must be >= 0"))
	}

	errs = append(errs, v.ValidateGuardrails(cfg.Guardrails)...)

	knowledgeEnabled := cfg.Knowledge.BaseURL != ""
	for i, agent := range cfg.Agents {
		if agent.Temperature != nil {
			if err := v.ValidateTemperature(*agent.Temperature); err != nil {
				errs = append(errs, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
			}
		}
		if agent.MaxTokens != 0 {
			if err := v.ValidateMaxTokens(agent.MaxTokens); err != nil {
				errs = append(errs, fmt.Errorf("agent %d (%s): %w", i, agent.ID, err))
			}
		}
		errs = append(errs, v.ValidateTools(agent, knowledgeEnabled)...)
	}
	if cycle := v.DelegationCycle(cfg.Agents); cycle != nil {
		errs = append(errs, fmt.Errorf("delegation cycle: %s", strings.Join(cycle, " -> ")))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}

	return errs
}

func oneOf(what, value string, valid ...string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", what, value, strings.Join(valid, ", "))
}
