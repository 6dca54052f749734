package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/execlog"
	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/llm"
	"github.com/harun/agentcore/pkg/pricing"
	"github.com/harun/agentcore/pkg/provider"
	"github.com/harun/agentcore/pkg/tool"
)

const tracerName = "agentcore/agent"

const (
	DefaultMaxIterations = 10
	DefaultTimeout       = 60 * time.Second
)

// Config holds runner configuration
type Config struct {
	Primary  provider.Target
	Fallback *provider.Target
	ExecLog  execlog.Logger
	Logger   zerolog.Logger
	// Guardrails apply to every run ahead of the agent's own.
	Guardrails           []guardrail.Guardrail
	DefaultMaxIterations int
	DefaultTimeout       time.Duration
	ParallelTools        bool
}

// Runner executes agents. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	primary       provider.Target
	fallback      *provider.Target
	execLog       execlog.Logger
	logger        zerolog.Logger
	guardrails    []guardrail.Guardrail
	maxIterations int
	timeout       time.Duration
	parallelTools bool
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Primary.Provider == nil {
		return nil, fmt.Errorf("primary provider is required")
	}
	if cfg.ExecLog == nil {
		cfg.ExecLog = execlog.Nop{}
	}
	if cfg.DefaultMaxIterations <= 0 {
		cfg.DefaultMaxIterations = DefaultMaxIterations
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}

	return &Runner{
		primary:       cfg.Primary,
		fallback:      cfg.Fallback,
		execLog:       cfg.ExecLog,
		logger:        cfg.Logger,
		guardrails:    append([]guardrail.Guardrail(nil), cfg.Guardrails...),
		maxIterations: cfg.DefaultMaxIterations,
		timeout:       cfg.DefaultTimeout,
		parallelTools: cfg.ParallelTools,
	}, nil
}

// runState collects what the loop learned for the final report.
type runState struct {
	provider     string
	fallbackUsed bool
	finalOutput  string
}

// Run executes one bounded conversation of a against messages. It never
// panics and never returns an error; the outcome is in the RunResult.
func (r *Runner) Run(ctx context.Context, a *Agent, messages []llm.Message, opts RunOptions) RunResult {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	agentID, model := "", ""
	if a != nil {
		agentID, model = a.ID(), a.Model()
	}

	ec := execution.New(opts.TenantID, opts.UserID, agentID, opts.Context)
	ec.StartTime = start
	ec.Messages = append([]llm.Message(nil), messages...)

	ctx = tracing.NewRunContext(ctx, ec.ID, agentID, opts.TenantID, opts.UserID)
	if depth := ec.DelegationDepth(); depth > 0 {
		ctx = tracing.WithDepth(ctx, depth)
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.run", tracing.RunAttributes(ctx)...)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	st := &runState{}
	err := r.safeExecute(ctx, a, ec, messages, opts, st)

	end := time.Now()
	status := statusOf(err)
	result := RunResult{
		Success:  err == nil,
		Status:   status,
		Messages: append([]llm.Message(nil), ec.Messages...),
		Err:      err,
		Metadata: RunMetadata{
			ExecutionID:  ec.ID,
			StartTime:    start,
			EndTime:      end,
			DurationMs:   end.Sub(start).Milliseconds(),
			Iterations:   ec.Iterations,
			TokensUsed:   ec.TokensUsed(),
			CostUSD:      ec.CostUSD(),
			Model:        model,
			Provider:     st.provider,
			FallbackUsed: st.fallbackUsed,
			ToolCalls:    ec.ToolCalls(),
		},
	}
	if err == nil {
		result.FinalOutput = st.finalOutput
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("status", string(status)).Int("iterations", ec.Iterations).Msg("Agent run failed")
	} else {
		logger.Info().Int("iterations", ec.Iterations).Int("tokens", result.Metadata.TokensUsed).Msg("Agent run completed")
	}
	span.SetAttributes(
		attribute.String("agent.status", string(status)),
		attribute.Int("agent.iterations", ec.Iterations),
		attribute.Int("agent.tokens", result.Metadata.TokensUsed),
	)

	r.report(ctx, ec, messages, result)
	return result
}

func (r *Runner) safeExecute(ctx context.Context, a *Agent, ec *execution.Context, messages []llm.Message, opts RunOptions, st *runState) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent run panicked: %v", rec)
		}
	}()
	return r.execute(ctx, a, ec, messages, opts, st)
}

func (r *Runner) execute(ctx context.Context, a *Agent, ec *execution.Context, messages []llm.Message, opts RunOptions, st *runState) error {
	if a == nil {
		return configError("agent", "agent is required")
	}
	if !ec.HasTenancy() {
		return configError("tenancy", "tenantId and userId are required for agent execution")
	}
	if len(messages) == 0 {
		return configError("messages", "at least one message is required")
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = r.maxIterations
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	parallel := opts.ParallelTools || r.parallelTools

	gs := append(r.Guardrails(), a.Guardrails()...)
	gs = append(gs, guardrail.RunLimits(timeout))
	pipeline := guardrail.NewPipeline(gs...)

	if _, err := r.guard(ctx, pipeline, guardrail.KindInput, guardrail.Input{Messages: messages}, ec); err != nil {
		return err
	}

	invoker, err := provider.NewInvoker(provider.Options{
		ExecutionID: ec.ID,
		AgentID:     ec.AgentID,
		TenantID:    ec.TenantID,
		UserID:      ec.UserID,
		Primary:     r.primary,
		Fallback:    r.fallback,
		ExecLog:     r.execLog,
		Logger:      r.logger,
	})
	if err != nil {
		return err
	}

	system := llm.SystemMessage(a.Instructions())
	tools := a.ToolDefinitions()

	for ec.Iterations < maxIterations {
		ec.Iterations++

		if _, err := r.guard(ctx, pipeline, guardrail.KindCost, guardrail.Input{Messages: ec.Messages}, ec); err != nil {
			return err
		}

		req := llm.Request{
			Model:       a.Model(),
			Messages:    append([]llm.Message{system}, ec.Messages...),
			Temperature: a.Temperature(),
			MaxTokens:   a.MaxTokens(),
			Tools:       tools,
		}
		res, err := invoker.SendRequest(ctx, req)
		if err != nil {
			return err
		}
		st.provider = res.Provider
		st.fallbackUsed = st.fallbackUsed || res.FallbackUsed

		resp := res.Response
		pricedModel := resp.Model
		if pricedModel == "" {
			pricedModel = a.Model()
		}
		ec.AddUsage(resp.Usage.TotalTokens, pricing.Estimate(pricedModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens))

		ec.Messages = append(ec.Messages, llm.AssistantMessage(resp.Content, resp.ToolCalls...))

		if len(resp.ToolCalls) == 0 {
			out, err := r.guard(ctx, pipeline, guardrail.KindOutput, guardrail.Input{Messages: ec.Messages, Output: resp.Content}, ec)
			if err != nil {
				return err
			}
			final := resp.Content
			if out.Action == guardrail.ActionRedact {
				final = out.RedactedContent
				ec.Messages[len(ec.Messages)-1].Content = final
			}
			st.finalOutput = final
			return nil
		}

		results, err := r.executeTools(ctx, a, pipeline, ec, resp.ToolCalls, parallel)
		ec.Messages = append(ec.Messages, results...)
		if err != nil {
			return err
		}
	}

	return &MaxIterationsError{MaxIterations: maxIterations}
}

// Guardrails returns the runner-wide guardrails.
func (r *Runner) Guardrails() []guardrail.Guardrail {
	return append([]guardrail.Guardrail(nil), r.guardrails...)
}

func (r *Runner) guard(ctx context.Context, p *guardrail.Pipeline, kind guardrail.Kind, in guardrail.Input, ec *execution.Context) (guardrail.Result, error) {
	res, err := p.Run(ctx, kind, in, ec)
	if err == nil {
		return res, nil
	}

	var violation *guardrail.ViolationError
	if errors.As(err, &violation) {
		observability.RecordGuardrailBlock(string(kind), violation.Guardrail)
		observability.RecordGuardrailAudit(ctx, auditSubject(ec), string(kind), violation.Guardrail, violation.Reason)
		logger := tracing.LoggerFromContext(ctx, r.logger)
		logger.Warn().
			Str("guardrail", violation.Guardrail).
			Str("kind", string(kind)).
			Str("reason", violation.Reason).
			Msg("Guardrail blocked run")
	}
	return res, err
}

type preparedCall struct {
	call llm.ToolCall
	tool *tool.Tool
	args map[string]interface{}
}

// executeTools runs the calls of one assistant turn and returns their tool
// messages in call order. Sequentially, each call is guarded and executed
// before the next. In parallel mode every call is guarded first and the
// executions then overlap.
func (r *Runner) executeTools(ctx context.Context, a *Agent, p *guardrail.Pipeline, ec *execution.Context, calls []llm.ToolCall, parallel bool) ([]llm.Message, error) {
	if !parallel || len(calls) == 1 {
		msgs := make([]llm.Message, 0, len(calls))
		for _, call := range calls {
			pc, err := r.prepare(ctx, a, p, ec, call)
			if err != nil {
				return msgs, err
			}
			content, err := r.runTool(ctx, ec, pc)
			if err != nil {
				return msgs, err
			}
			msgs = append(msgs, llm.ToolMessage(call.ID, content))
		}
		return msgs, nil
	}

	prepared := make([]preparedCall, 0, len(calls))
	for _, call := range calls {
		pc, err := r.prepare(ctx, a, p, ec, call)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, pc)
	}

	contents := make([]string, len(prepared))
	errs := make([]error, len(prepared))
	var wg sync.WaitGroup
	for i, pc := range prepared {
		wg.Add(1)
		go func(i int, pc preparedCall) {
			defer wg.Done()
			contents[i], errs[i] = r.runTool(ctx, ec, pc)
		}(i, pc)
	}
	wg.Wait()

	msgs := make([]llm.Message, 0, len(prepared))
	for i, pc := range prepared {
		if errs[i] != nil {
			return msgs, errs[i]
		}
		msgs = append(msgs, llm.ToolMessage(pc.call.ID, contents[i]))
	}
	return msgs, nil
}

func (r *Runner) prepare(ctx context.Context, a *Agent, p *guardrail.Pipeline, ec *execution.Context, call llm.ToolCall) (preparedCall, error) {
	t, ok := a.Tool(call.Name)
	if !ok {
		return preparedCall{}, tool.NotFound(call.Name)
	}
	args, err := tool.ParseArguments(call.Arguments)
	if err != nil {
		return preparedCall{}, &tool.ExecutionError{Tool: call.Name, Cause: err}
	}

	res, err := r.guard(ctx, p, guardrail.KindTool, guardrail.Input{
		Messages: ec.Messages,
		Tool:     &guardrail.ToolInvocation{Name: call.Name, Args: args},
	}, ec)
	if err != nil {
		return preparedCall{}, err
	}
	if approved, _ := res.Metadata["approved"].(bool); approved {
		observability.RecordToolAudit(ctx, auditSubject(ec), call.Name, "approved", map[string]interface{}{"toolCallId": call.ID})
	}

	return preparedCall{call: call, tool: t, args: args}, nil
}

func (r *Runner) runTool(ctx context.Context, ec *execution.Context, pc preparedCall) (string, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "tool.execute",
		attribute.String("tool", pc.call.Name),
		attribute.String("tool_call_id", pc.call.ID),
	)
	defer span.End()

	start := time.Now()
	out, err := pc.tool.Execute(ctx, pc.args, ec)
	duration := time.Since(start)
	observability.RecordToolExecution(pc.call.Name, duration, err == nil)

	rec := execution.ToolCallRecord{
		ID:         pc.call.ID,
		Name:       pc.call.Name,
		Arguments:  pc.args,
		Iteration:  ec.Iterations,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
		ec.RecordToolCall(rec)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger := tracing.LoggerFromContext(ctx, r.logger)
		logger.Error().Err(err).Str("tool", pc.call.Name).Msg("Tool execution failed")
		return "", err
	}

	content := tool.FormatOutput(out)
	rec.Output = content
	ec.RecordToolCall(rec)
	return content, nil
}

func auditSubject(ec *execution.Context) observability.AuditSubject {
	return observability.AuditSubject{TenantID: ec.TenantID, UserID: ec.UserID, ExecutionID: ec.ID}
}

func (r *Runner) report(ctx context.Context, ec *execution.Context, input []llm.Message, res RunResult) {
	md := res.Metadata
	observability.RecordRun(string(res.Status), md.Model, time.Duration(md.DurationMs)*time.Millisecond, md.Iterations, md.TokensUsed, md.CostUSD)

	meta := map[string]interface{}{
		"status":       string(res.Status),
		"iterations":   md.Iterations,
		"tokensUsed":   md.TokensUsed,
		"costUsd":      md.CostUSD,
		"fallbackUsed": md.FallbackUsed,
		"toolCalls":    len(md.ToolCalls),
	}
	if parent, ok := ec.Metadata[execution.MetaParentExecutionID]; ok {
		meta[execution.MetaParentExecutionID] = parent
		meta[execution.MetaDelegationDepth] = ec.DelegationDepth()
	}

	execlog.Record(tracing.Detach(ctx), r.execLog, execlog.Entry{
		Event:         execlog.EventRun,
		ExecutionID:   ec.ID,
		AgentID:       ec.AgentID,
		TenantID:      ec.TenantID,
		UserID:        ec.UserID,
		InputSummary:  execlog.Summarize(guardrail.Redact(llm.LastUserContent(input))),
		OutputSummary: execlog.Summarize(guardrail.Redact(res.FinalOutput)),
		Duration:      md.EndTime.Sub(md.StartTime),
		Success:       res.Success,
		Provider:      md.Provider,
		Model:         md.Model,
		Error:         res.ErrorMessage(),
		Metadata:      meta,
		Timestamp:     md.EndTime,
	})
}
