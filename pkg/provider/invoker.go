package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/execlog"
	"github.com/harun/agentcore/pkg/llm"
)

const tracerName = "agentcore/provider"

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Settings controls how a target is called. Zero values take the defaults.
type Settings struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RateLimit is the sustained calls per second allowed; zero disables limiting.
	RateLimit float64
	Burst     int
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = DefaultRetryDelay
	}
	return s
}

// Target is a provider together with its call settings. Model, when set,
// replaces the request model for this target.
type Target struct {
	Provider Provider
	Settings Settings
	Model    string
	// Limiter is shared by every copy of the target.
	Limiter *rate.Limiter
}

// NewTarget builds a target, creating its rate limiter when one is configured.
func NewTarget(p Provider, s Settings) Target {
	t := Target{Provider: p, Settings: s}
	if s.RateLimit > 0 {
		burst := s.Burst
		if burst <= 0 {
			burst = 1
		}
		t.Limiter = rate.NewLimiter(rate.Limit(s.RateLimit), burst)
	}
	return t
}

func (t Target) name() string {
	if t.Provider == nil {
		return "none"
	}
	return t.Provider.Name()
}

// Options identify the run an invoker serves and where attempts are reported.
type Options struct {
	ExecutionID string
	AgentID     string
	TenantID    string
	UserID      string
	Primary     Target
	Fallback    *Target
	ExecLog     execlog.Logger
	Logger      zerolog.Logger
}

// Result is a successful invocation.
type Result struct {
	Response     *llm.Response
	Provider     string
	FallbackUsed bool
	Attempts     int
}

// Invoker calls the primary target with retries, then the fallback once.
type Invoker struct {
	opts Options
}

func NewInvoker(opts Options) (*Invoker, error) {
	if opts.Primary.Provider == nil {
		return nil, fmt.Errorf("primary provider is required")
	}
	if opts.Fallback != nil && opts.Fallback.Provider == nil {
		opts.Fallback = nil
	}
	if opts.ExecLog == nil {
		opts.ExecLog = execlog.Nop{}
	}
	return &Invoker{opts: opts}, nil
}

// SendRequest performs the call. Attempt n of the primary is preceded by a
// wait of RetryDelay * 2^(n-2); the fallback runs right after the last failure.
func (inv *Invoker) SendRequest(ctx context.Context, req llm.Request) (*Result, error) {
	primary := inv.opts.Primary
	settings := primary.Settings.withDefaults()
	logger := tracing.LoggerFromContext(ctx, inv.opts.Logger)

	attempts := 0
	var primaryErr error

	for attempt := 1; attempt <= settings.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := settings.RetryDelay * time.Duration(1<<(attempt-2))
			logger.Warn().
				Err(primaryErr).
				Str("provider", primary.name()).
				Int("attempt", attempt-1).
				Dur("backoff", delay).
				Msg("Provider attempt failed, retrying")

			select {
			case <-ctx.Done():
				primaryErr = ctx.Err()
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		attempts++
		resp, err := inv.attempt(ctx, primary, settings, req, attempt, false)
		if err == nil {
			return &Result{Response: resp, Provider: primary.name(), Attempts: attempts}, nil
		}
		primaryErr = err
	}

	invErr := &InvocationError{Primary: primary.name(), PrimaryErr: primaryErr}
	if inv.opts.Fallback == nil {
		logger.Error().Err(primaryErr).Str("provider", primary.name()).Msg("Provider exhausted with no fallback")
		return nil, invErr
	}

	fallback := *inv.opts.Fallback
	logger.Warn().
		Err(primaryErr).
		Str("primary", primary.name()).
		Str("fallback", fallback.name()).
		Msg("Primary provider exhausted, switching to fallback")

	attempts++
	resp, err := inv.attempt(ctx, fallback, fallback.Settings.withDefaults(), req, 1, true)
	observability.RecordFallback(primary.name(), fallback.name(), err == nil)
	if err != nil {
		invErr.Fallback = fallback.name()
		invErr.FallbackErr = err
		logger.Error().Err(invErr).Msg("Fallback provider failed")
		return nil, invErr
	}

	return &Result{Response: resp, Provider: fallback.name(), FallbackUsed: true, Attempts: attempts}, nil
}

type callResult struct {
	resp *llm.Response
	err  error
}

func (inv *Invoker) attempt(ctx context.Context, target Target, settings Settings, req llm.Request, attempt int, fallback bool) (*llm.Response, error) {
	if target.Model != "" {
		req.Model = target.Model
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "provider.call",
		attribute.String("provider", target.name()),
		attribute.String("model", req.Model),
		attribute.Int("attempt", attempt),
		attribute.Bool("fallback", fallback),
	)
	defer span.End()

	start := time.Now()
	resp, err := inv.call(ctx, target, settings, req)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	inv.report(ctx, target, req, resp, err, duration, attempt, fallback)
	return resp, err
}

// call races the provider against the attempt timeout. The provider goroutine
// writes to a buffered channel so it never blocks once abandoned.
func (inv *Invoker) call(ctx context.Context, target Target, settings Settings, req llm.Request) (*llm.Response, error) {
	if target.Limiter != nil {
		if err := target.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	resultCh := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- callResult{err: fmt.Errorf("provider %s panicked: %v", target.name(), r)}
			}
		}()
		resp, err := target.Provider.Call(callCtx, req)
		resultCh <- callResult{resp: resp, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp == nil {
			return nil, fmt.Errorf("provider %s returned an empty response", target.name())
		}
		return res.resp, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, target.name(), settings.Timeout)
	}
}

func (inv *Invoker) report(ctx context.Context, target Target, req llm.Request, resp *llm.Response, err error, duration time.Duration, attempt int, fallback bool) {
	observability.RecordProviderAttempt(target.name(), duration, err == nil)

	entry := execlog.Entry{
		Event:        execlog.EventProviderAttempt,
		ExecutionID:  inv.opts.ExecutionID,
		AgentID:      inv.opts.AgentID,
		TenantID:     inv.opts.TenantID,
		UserID:       inv.opts.UserID,
		InputSummary: execlog.Summarize(llm.LastUserContent(req.Messages)),
		Duration:     duration,
		Success:      err == nil,
		Provider:     target.name(),
		Model:        req.Model,
		Metadata: map[string]interface{}{
			"attempt":  attempt,
			"fallback": fallback,
		},
	}
	if resp != nil {
		entry.OutputSummary = execlog.Summarize(resp.Content)
		entry.Metadata["tokens"] = resp.Usage.TotalTokens
		entry.Metadata["toolCalls"] = len(resp.ToolCalls)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	execlog.Record(tracing.Detach(ctx), inv.opts.ExecLog, entry)
}
