package agent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/llm"
	"github.com/harun/agentcore/pkg/tool"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7

	summaryInstructionsLength = 100
)

// Agent is an immutable bundle of instructions, model parameters, tools and
// guardrails.
type Agent struct {
	id           string
	name         string
	description  string
	instructions string
	model        string
	temperature  float64
	maxTokens    int
	maxTokensSet bool
	tools        []*tool.Tool
	guardrails   []guardrail.Guardrail
}

// Option customizes an agent at construction or clone time.
type Option func(*Agent)

func WithID(id string) Option {
	return func(a *Agent) { a.id = id }
}

func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

func WithDescription(description string) Option {
	return func(a *Agent) { a.description = description }
}

func WithInstructions(instructions string) Option {
	return func(a *Agent) { a.instructions = instructions }
}

func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxTokens caps completion tokens. Once set it must be positive.
func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		a.maxTokens = n
		a.maxTokensSet = true
	}
}

// WithTools sets the tool list.
func WithTools(tools ...*tool.Tool) Option {
	return func(a *Agent) { a.tools = append([]*tool.Tool(nil), tools...) }
}

// WithGuardrails sets the guardrail list.
func WithGuardrails(gs ...guardrail.Guardrail) Option {
	return func(a *Agent) { a.guardrails = append([]guardrail.Guardrail(nil), gs...) }
}

// New validates and builds an agent. The model defaults to gpt-4o-mini and
// the temperature to 0.7.
func New(name, instructions string, opts ...Option) (*Agent, error) {
	a := &Agent{
		name:         name,
		instructions: instructions,
		model:        DefaultModel,
		temperature:  DefaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.New().String()
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) validate() error {
	if strings.TrimSpace(a.name) == "" {
		return configError("name", "Agent name is required")
	}
	if strings.TrimSpace(a.instructions) == "" {
		return configError("instructions", "Agent instructions are required")
	}
	if a.model == "" {
		return configError("model", "Agent model is required")
	}
	if a.temperature < 0 || a.temperature > 2 {
		return configError("temperature", "Temperature must be between 0 and 2")
	}
	if a.maxTokensSet && a.maxTokens <= 0 {
		return configError("maxTokens", "maxTokens must be positive")
	}

	seen := make(map[string]bool, len(a.tools))
	for i, t := range a.tools {
		if t == nil {
			return configError("tools", "tool %d is nil", i)
		}
		if seen[t.Name()] {
			return configError("tools", "duplicate tool name: %s", t.Name())
		}
		seen[t.Name()] = true
	}
	for i, g := range a.guardrails {
		if g == nil {
			return configError("guardrails", "guardrail %d is nil", i)
		}
		if !guardrail.ValidKind(g.Kind()) {
			return configError("guardrails", "guardrail %s has unknown kind %q", g.Name(), g.Kind())
		}
	}
	return nil
}

func (a *Agent) ID() string           { return a.id }
func (a *Agent) Name() string         { return a.name }
func (a *Agent) Description() string  { return a.description }
func (a *Agent) Instructions() string { return a.instructions }
func (a *Agent) Model() string        { return a.model }
func (a *Agent) Temperature() float64 { return a.temperature }

// MaxTokens returns the completion cap, or 0 when unset.
func (a *Agent) MaxTokens() int { return a.maxTokens }

// Tools returns a copy of the tool list.
func (a *Agent) Tools() []*tool.Tool {
	return append([]*tool.Tool(nil), a.tools...)
}

// Guardrails returns a copy of the guardrail list.
func (a *Agent) Guardrails() []guardrail.Guardrail {
	return append([]guardrail.Guardrail(nil), a.guardrails...)
}

// Tool looks up a tool by name.
func (a *Agent) Tool(name string) (*tool.Tool, bool) {
	for _, t := range a.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// ToolDefinitions describes the agent's tools to the model.
func (a *Agent) ToolDefinitions() []llm.ToolDefinition {
	if len(a.tools) == 0 {
		return nil
	}
	defs := make([]llm.ToolDefinition, 0, len(a.tools))
	for _, t := range a.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Clone returns a new agent with overrides applied. The receiver is unchanged.
func (a *Agent) Clone(overrides ...Option) (*Agent, error) {
	c := *a
	c.tools = a.Tools()
	c.guardrails = a.Guardrails()
	for _, opt := range overrides {
		opt(&c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// WithTools returns a new agent with tools appended.
func (a *Agent) WithTools(tools ...*tool.Tool) (*Agent, error) {
	return a.Clone(WithTools(append(a.Tools(), tools...)...))
}

// WithGuardrails returns a new agent with guardrails appended.
func (a *Agent) WithGuardrails(gs ...guardrail.Guardrail) (*Agent, error) {
	return a.Clone(WithGuardrails(append(a.Guardrails(), gs...)...))
}

// Summary is a loggable view of an agent. Instructions are an excerpt of at
// most 100 runes followed by "...".
type Summary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Instructions string   `json:"instructions"`
	Model        string   `json:"model"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"maxTokens,omitempty"`
	Tools        []string `json:"tools"`
	Guardrails   []string `json:"guardrails"`
}

func (a *Agent) Summary() Summary {
	// Always marked as an excerpt, even when nothing was cut.
	instructions := a.instructions
	if runes := []rune(instructions); len(runes) > summaryInstructionsLength {
		instructions = string(runes[:summaryInstructionsLength])
	}
	instructions += "..."

	s := Summary{
		ID:           a.id,
		Name:         a.name,
		Description:  a.description,
		Instructions: instructions,
		Model:        a.model,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
		Tools:        make([]string, 0, len(a.tools)),
		Guardrails:   make([]string, 0, len(a.guardrails)),
	}
	for _, t := range a.tools {
		s.Tools = append(s.Tools, t.Name())
	}
	for _, g := range a.guardrails {
		s.Guardrails = append(s.Guardrails, fmt.Sprintf("%s:%s", g.Kind(), g.Name()))
	}
	return s
}
