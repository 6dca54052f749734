// Package engine wires configuration into a ready-to-use agent runner:
// providers, guardrails, execution log, knowledge search and the declared
// agents with their delegation tools.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/execlog"
	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/knowledge"
	"github.com/harun/agentcore/pkg/llm"
	"github.com/harun/agentcore/pkg/provider"
	"github.com/harun/agentcore/pkg/tool"
	"github.com/harun/agentcore/pkg/tool/builtin"
)

// Options adjust how an engine is built.
type Options struct {
	// Registry resolves provider names. Defaults to provider.NewRegistry().
	Registry *provider.Registry
	// Approval answers tool approval requests. Without it, tools listed
	// under guardrails.tools.require_approval are always blocked.
	Approval guardrail.ApprovalCallback
	// Searcher replaces the HTTP knowledge client.
	Searcher knowledge.Searcher
	// Offline builds agents without provider credentials. Every provider
	// call fails, so offline engines serve inspection commands only.
	Offline bool
}

// Engine owns the long-lived collaborators of agent runs.
type Engine struct {
	config *config.Config
	logger zerolog.Logger

	registry  *provider.Registry
	primary   provider.Target
	fallback  *provider.Target
	store     *execlog.SQLiteStore
	execLog   execlog.Logger
	searcher  knowledge.Searcher
	runner    *agent.Runner
	agents    map[string]*agent.Agent
	order     []string
	approval  guardrail.ApprovalCallback
	offline   bool
	auditFile bool

	tracingEnabled bool
}

var newAgentRunner = func(cfg agent.Config) (*agent.Runner, error) {
	return agent.NewRunner(cfg)
}

// New builds an engine from a validated configuration.
func New(cfg *config.Config, logger zerolog.Logger, opts Options) (*Engine, error) {
	validate := cfg.Validate
	if opts.Offline {
		validate = cfg.ValidateAgents
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()

	e := &Engine{
		config:   cfg,
		logger:   logger.With().Str("component", "engine").Logger(),
		registry: opts.Registry,
		searcher: opts.Searcher,
		approval: opts.Approval,
		offline:  opts.Offline,
	}
	if e.registry == nil {
		e.registry = provider.NewRegistry()
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		}); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			e.tracingEnabled = true
		}
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			e.logger.Warn().Err(err).Str("path", cfg.Logging.AuditFile).Msg("Failed to open audit log, auditing to stderr")
		} else {
			e.auditFile = true
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"providers", e.initProviders},
		{"execution log", e.initExecLog},
		{"knowledge", e.initKnowledge},
		{"runner", e.initRunner},
		{"agents", e.initAgents},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			_ = e.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	e.logger.Info().
		Str("primary", e.primary.Provider.Name()).
		Bool("fallback", e.fallback != nil).
		Int("agents", len(e.order)).
		Msg("Engine initialized")

	return e, nil
}

func (e *Engine) initProviders() error {
	pc := e.config.Providers.Primary
	if e.offline {
		e.primary = provider.NewTarget(offlineProvider{name: pc.Provider}, pc.Settings())
		return nil
	}

	p, err := e.registry.New(pc.Profile())
	if err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	e.primary = provider.NewTarget(p, pc.Settings())

	if fc := e.config.Providers.Fallback; fc != nil {
		fp, err := e.registry.New(fc.Profile())
		if err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
		target := provider.NewTarget(fp, fc.Settings())
		// Agent models name the primary's models; the fallback needs its own.
		target.Model = fc.Model
		e.fallback = &target
	}
	return nil
}

func (e *Engine) initExecLog() error {
	sinks := []execlog.Logger{execlog.NewZerologLogger(e.logger)}

	if path := e.config.ExecutionLog.SQLitePath; path != "" && !e.offline {
		store, err := execlog.NewSQLiteStore(execlog.SQLiteConfig{Path: path, Logger: e.logger})
		if err != nil {
			return err
		}
		e.store = store
		sinks = append(sinks, store)
	}

	e.execLog = execlog.Multi(sinks...)
	return nil
}

func (e *Engine) initKnowledge() error {
	kc := e.config.Knowledge
	if e.searcher != nil || kc.BaseURL == "" {
		return nil
	}

	apiKey := ""
	if kc.APIKeyEnv != "" {
		apiKey = lookupEnv(kc.APIKeyEnv)
	}
	client, err := knowledge.NewClient(knowledge.Config{
		BaseURL: kc.BaseURL,
		APIKey:  apiKey,
		Timeout: time.Duration(kc.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	e.searcher = client
	return nil
}

func (e *Engine) initRunner() error {
	gs, err := Guardrails(e.config.Guardrails, e.approval)
	if err != nil {
		return err
	}

	runner, err := newAgentRunner(agent.Config{
		Primary:              e.primary,
		Fallback:             e.fallback,
		ExecLog:              e.execLog,
		Logger:               e.logger,
		Guardrails:           gs,
		DefaultMaxIterations: e.config.Runner.MaxIterations,
		DefaultTimeout:       e.config.Runner.Timeout(),
		ParallelTools:        e.config.Runner.ParallelTools,
	})
	if err != nil {
		return err
	}
	e.runner = runner
	return nil
}

// initAgents builds every configured agent, delegates first.
func (e *Engine) initAgents() error {
	e.agents = make(map[string]*agent.Agent, len(e.config.Agents))
	building := make(map[string]bool)

	var build func(id string) (*agent.Agent, error)
	build = func(id string) (*agent.Agent, error) {
		if a, ok := e.agents[id]; ok {
			return a, nil
		}
		if building[id] {
			return nil, fmt.Errorf("agent %s: delegation cycle", id)
		}
		building[id] = true
		defer delete(building, id)

		ac, ok := e.config.Agent(id)
		if !ok {
			return nil, fmt.Errorf("unknown agent %s", id)
		}

		tools, err := e.tools(ac)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", id, err)
		}
		for _, d := range ac.Delegates {
			sub, err := build(d)
			if err != nil {
				return nil, err
			}
			t, err := sub.AsTool(e.runner, "", "")
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", id, err)
			}
			tools = append(tools, t)
		}

		opts := []agent.Option{
			agent.WithID(ac.ID),
			agent.WithDescription(ac.Description),
			agent.WithTools(tools...),
		}
		if model := e.model(ac); model != "" {
			opts = append(opts, agent.WithModel(model))
		}
		if ac.Temperature != nil {
			opts = append(opts, agent.WithTemperature(*ac.Temperature))
		}
		if ac.MaxTokens > 0 {
			opts = append(opts, agent.WithMaxTokens(ac.MaxTokens))
		}

		a, err := agent.New(ac.Name, ac.Instructions, opts...)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", id, err)
		}
		e.agents[id] = a
		return a, nil
	}

	for _, ac := range e.config.Agents {
		if _, err := build(ac.ID); err != nil {
			return err
		}
		e.order = append(e.order, ac.ID)
	}
	e.warnUnapprovable()
	return nil
}

// warnUnapprovable reports gated tools that will always be blocked because
// no approval callback is installed.
func (e *Engine) warnUnapprovable() {
	if e.approval != nil {
		return
	}
	for _, g := range e.runner.Guardrails() {
		approval, ok := g.(*guardrail.ToolApproval)
		if !ok {
			continue
		}
		for _, id := range e.order {
			for _, t := range e.agents[id].Tools() {
				if approval.RequiresApproval(t.Name()) {
					e.logger.Warn().
						Str("agent", id).
						Str("tool", t.Name()).
						Msg("Tool requires approval but no approval callback is configured, calls will be blocked")
				}
			}
		}
	}
}

func (e *Engine) model(ac config.AgentConfig) string {
	if ac.Model != "" {
		return ac.Model
	}
	return e.config.Providers.Primary.Model
}

func (e *Engine) tools(ac config.AgentConfig) ([]*tool.Tool, error) {
	var names []string
	var tools []*tool.Tool
	for _, name := range ac.Tools {
		if name == knowledge.ToolName {
			if e.searcher == nil {
				return nil, fmt.Errorf("tool %s requires knowledge.base_url", name)
			}
			tools = append(tools, knowledge.NewSearchTool(e.searcher))
			continue
		}
		names = append(names, name)
	}

	bt, err := builtin.Lookup(names...)
	if err != nil {
		return nil, err
	}
	return append(bt, tools...), nil
}

// Agent returns the configured agent with the given id.
func (e *Engine) Agent(id string) (*agent.Agent, bool) {
	a, ok := e.agents[id]
	return a, ok
}

// Agents returns the agents in configuration order.
func (e *Engine) Agents() []*agent.Agent {
	out := make([]*agent.Agent, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.agents[id])
	}
	return out
}

// Runner returns the shared runner.
func (e *Engine) Runner() *agent.Runner {
	return e.runner
}

// Store returns the SQLite execution store, or nil when it is disabled.
func (e *Engine) Store() *execlog.SQLiteStore {
	return e.store
}

// Run executes the agent with the given id.
func (e *Engine) Run(ctx context.Context, agentID string, messages []llm.Message, opts agent.RunOptions) (agent.RunResult, error) {
	a, ok := e.Agent(agentID)
	if !ok {
		return agent.RunResult{}, fmt.Errorf("unknown agent: %s", agentID)
	}
	return e.runner.Run(ctx, a, messages, opts), nil
}

// Shutdown releases the execution store, audit file and tracer provider.
func (e *Engine) Shutdown(ctx context.Context) error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.store = nil
	}
	if e.auditFile {
		if err := observability.GetAuditLogger().Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.auditFile = false
	}
	if e.tracingEnabled {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		e.tracingEnabled = false
	}
	return firstErr
}

type offlineProvider struct {
	name string
}

func (p offlineProvider) Name() string { return p.name }

func (p offlineProvider) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return nil, fmt.Errorf("provider %s is not available offline", p.name)
}
