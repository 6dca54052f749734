package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/provider"
)

// Config represents the agentcore configuration file.
type Config struct {
	Providers    ProvidersConfig    `json:"providers" mapstructure:"providers"`
	Runner       RunnerConfig       `json:"runner" mapstructure:"runner"`
	Guardrails   GuardrailsConfig   `json:"guardrails" mapstructure:"guardrails"`
	Agents       []AgentConfig      `json:"agents" mapstructure:"agents"`
	Knowledge    KnowledgeConfig    `json:"knowledge" mapstructure:"knowledge"`
	Logging      LoggingConfig      `json:"logging" mapstructure:"logging"`
	ExecutionLog ExecutionLogConfig `json:"execution_log" mapstructure:"execution_log"`
	Tracing      TracingConfig      `json:"tracing" mapstructure:"tracing"`

	// Data directory for logs and the execution database
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProvidersConfig names the primary provider and an optional fallback.
type ProvidersConfig struct {
	Primary  ProviderConfig  `json:"primary" mapstructure:"primary"`
	Fallback *ProviderConfig `json:"fallback,omitempty" mapstructure:"fallback"`
}

// ProviderConfig configures one LLM provider target.
type ProviderConfig struct {
	Provider     string  `json:"provider" mapstructure:"provider"` // openai, anthropic, gemini
	APIKeyEnv    string  `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	APIKey       string  `json:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL      string  `json:"base_url,omitempty" mapstructure:"base_url"`
	Model        string  `json:"model,omitempty" mapstructure:"model"`
	TimeoutMs    int     `json:"timeout_ms" mapstructure:"timeout_ms"`
	MaxRetries   int     `json:"max_retries" mapstructure:"max_retries"`
	RetryDelayMs int     `json:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	RateLimit    float64 `json:"rate_limit,omitempty" mapstructure:"rate_limit"` // requests per second, 0 is unlimited
	Burst        int     `json:"burst,omitempty" mapstructure:"burst"`
}

// RunnerConfig sets per-run defaults.
type RunnerConfig struct {
	MaxIterations int  `json:"max_iterations" mapstructure:"max_iterations"`
	TimeoutMs     int  `json:"timeout_ms" mapstructure:"timeout_ms"`
	ParallelTools bool `json:"parallel_tools" mapstructure:"parallel_tools"`
	Workers       int  `json:"workers" mapstructure:"workers"`
}

// GuardrailsConfig enables the runner-wide guardrails.
type GuardrailsConfig struct {
	Input    InputGuardConfig   `json:"input" mapstructure:"input"`
	Output   OutputGuardConfig  `json:"output" mapstructure:"output"`
	Cost     CostGuardConfig    `json:"cost" mapstructure:"cost"`
	Tools    ToolGuardConfig    `json:"tools" mapstructure:"tools"`
	Keywords KeywordGuardConfig `json:"keywords" mapstructure:"keywords"`
}

type InputGuardConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Mode    string `json:"mode" mapstructure:"mode"` // moderate, strict
}

type OutputGuardConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Mode    string `json:"mode" mapstructure:"mode"` // redact, block
}

type CostGuardConfig struct {
	Enabled       bool    `json:"enabled" mapstructure:"enabled"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxCostUSD    float64 `json:"max_cost_usd" mapstructure:"max_cost_usd"`
	TimeoutMs     int     `json:"timeout_ms" mapstructure:"timeout_ms"`
}

type ToolGuardConfig struct {
	RequireApproval   []string `json:"require_approval" mapstructure:"require_approval"`
	ApprovalTimeoutMs int      `json:"approval_timeout_ms" mapstructure:"approval_timeout_ms"`
}

type KeywordGuardConfig struct {
	BlockedKeywords []string `json:"blocked_keywords" mapstructure:"blocked_keywords"`
	BlockedPatterns []string `json:"blocked_patterns" mapstructure:"blocked_patterns"`
}

// AgentConfig declares an agent. Tools name built-in tools; Delegates name
// other configured agents exposed to this one as tools.
type AgentConfig struct {
	ID           string   `json:"id" mapstructure:"id"`
	Name         string   `json:"name" mapstructure:"name"`
	Description  string   `json:"description,omitempty" mapstructure:"description"`
	Instructions string   `json:"instructions" mapstructure:"instructions"`
	Model        string   `json:"model,omitempty" mapstructure:"model"`
	Temperature  *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens    int      `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Tools        []string `json:"tools,omitempty" mapstructure:"tools"`
	Delegates    []string `json:"delegates,omitempty" mapstructure:"delegates"`
}

// KnowledgeConfig points the searchKnowledgeBase tool at a knowledge service.
// An empty BaseURL disables the tool.
type KnowledgeConfig struct {
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	APIKeyEnv string `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	TimeoutMs int    `json:"timeout_ms" mapstructure:"timeout_ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

type ExecutionLogConfig struct {
	SQLitePath string `json:"sqlite_path" mapstructure:"sqlite_path"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio,omitempty" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				Provider:     "openai",
				APIKeyEnv:    "OPENAI_API_KEY",
				TimeoutMs:    30000,
				MaxRetries:   3,
				RetryDelayMs: 1000,
			},
		},
		Runner: RunnerConfig{
			MaxIterations: 10,
			TimeoutMs:     60000,
			Workers:       4,
		},
		Guardrails: GuardrailsConfig{
			Input:  InputGuardConfig{Enabled: true, Mode: string(guardrail.ModeModerate)},
			Output: OutputGuardConfig{Enabled: true, Mode: string(guardrail.OutputRedact)},
			Cost: CostGuardConfig{
				Enabled:       true,
				MaxIterations: guardrail.DefaultMaxIterations,
				MaxTokens:     guardrail.DefaultMaxTokens,
				MaxCostUSD:    guardrail.DefaultMaxCostUSD,
				TimeoutMs:     int(guardrail.DefaultTimeout / time.Millisecond),
			},
		},
		Agents: []AgentConfig{
			{
				ID:           "assistant",
				Name:         "Assistant",
				Description:  "General purpose assistant with arithmetic and clock tools.",
				Instructions: "You are a helpful assistant. Use the available tools when they help answer precisely.",
				Model:        "gpt-4o-mini",
				Tools:        []string{"calculate", "current_time"},
			},
		},
		Knowledge: KnowledgeConfig{TimeoutMs: 10000},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{ServiceName: "agentcore"},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Agent returns the agent with the given id.
func (c *Config) Agent(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// ResolveAPIKey returns the inline key, or the value of APIKeyEnv.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// Profile returns the construction parameters for the provider registry.
func (p ProviderConfig) Profile() provider.Profile {
	return provider.Profile{
		Provider: p.Provider,
		APIKey:   p.ResolveAPIKey(),
		BaseURL:  p.BaseURL,
	}
}

// Settings returns the invocation policy of the target.
func (p ProviderConfig) Settings() provider.Settings {
	return provider.Settings{
		Timeout:    ms(p.TimeoutMs),
		MaxRetries: p.MaxRetries,
		RetryDelay: ms(p.RetryDelayMs),
		RateLimit:  p.RateLimit,
		Burst:      p.Burst,
	}
}

// Timeout returns the run timeout.
func (r RunnerConfig) Timeout() time.Duration {
	return ms(r.TimeoutMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateProvider("primary", c.Providers.Primary); err != nil {
		return err
	}
	if c.Providers.Fallback != nil {
		if err := validateProvider("fallback", *c.Providers.Fallback); err != nil {
			return err
		}
	}
	return c.ValidateAgents()
}

// ValidateAgents checks the agent declarations alone, for commands that
// never call a provider.
func (c *Config) ValidateAgents() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}

	ids := make(map[string]bool, len(c.Agents))
	for i, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent %d: ID is required", i)
		}
		if ids[agent.ID] {
			return fmt.Errorf("agent %s: duplicate ID", agent.ID)
		}
		ids[agent.ID] = true

		if agent.Name == "" {
			return fmt.Errorf("agent %s: name is required", agent.ID)
		}
		if agent.Instructions == "" {
			return fmt.Errorf("agent %s: instructions are required", agent.ID)
		}
	}

	for _, agent := range c.Agents {
		for _, d := range agent.Delegates {
			if d == agent.ID {
				return fmt.Errorf("agent %s: cannot delegate to itself", agent.ID)
			}
			if !ids[d] {
				return fmt.Errorf("agent %s: unknown delegate %s", agent.ID, d)
			}
		}
	}

	return nil
}

func validateProvider(role string, p ProviderConfig) error {
	if p.Provider == "" {
		return fmt.Errorf("%s provider: provider is required", role)
	}
	switch p.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("%s provider: invalid provider %s (must be: openai, anthropic, gemini)", role, p.Provider)
	}
	if p.ResolveAPIKey() == "" {
		if p.APIKeyEnv != "" {
			return fmt.Errorf("%s provider: environment variable %s is not set", role, p.APIKeyEnv)
		}
		return fmt.Errorf("%s provider: api_key or api_key_env is required", role)
	}
	return nil
}
