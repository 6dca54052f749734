package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/agentcore/pkg/execution"
)

// Defaults applied when a CostLimitConfig field is zero. A negative value
// disables that ceiling.
const (
	DefaultMaxIterations = 10
	DefaultMaxTokens     = 100000
	DefaultMaxCostUSD    = 1.0
	DefaultTimeout       = 60 * time.Second
)

// CostLimitConfig sets the run ceilings.
type CostLimitConfig struct {
	MaxIterations int
	MaxTokens     int
	MaxCostUSD    float64
	Timeout       time.Duration
}

// CostLimit blocks a run once it exceeds any configured ceiling.
type CostLimit struct {
	name string
	cfg  CostLimitConfig
	now  func() time.Time
}

// NewCostLimit creates a cost guardrail.
func NewCostLimit(cfg CostLimitConfig) *CostLimit {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxCostUSD == 0 {
		cfg.MaxCostUSD = DefaultMaxCostUSD
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &CostLimit{name: "cost_limit", cfg: cfg, now: time.Now}
}

// RunLimits is the timeout-only ceiling the runner enforces on every run.
func RunLimits(timeout time.Duration) *CostLimit {
	return &CostLimit{
		name: "run_limits",
		cfg:  CostLimitConfig{MaxIterations: -1, MaxTokens: -1, MaxCostUSD: -1, Timeout: timeout},
		now:  time.Now,
	}
}

func (g *CostLimit) Name() string { return g.name }
func (g *CostLimit) Kind() Kind   { return KindCost }

// Check compares the run totals against the ceilings in the order
// iterations, tokens, cost, elapsed time. Reaching a ceiling exactly passes.
func (g *CostLimit) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	if ec == nil {
		return Pass(), nil
	}

	if g.cfg.MaxIterations > 0 && ec.Iterations > g.cfg.MaxIterations {
		return Block(
			fmt.Sprintf("Exceeded maximum iterations (%d > %d)", ec.Iterations, g.cfg.MaxIterations),
			map[string]interface{}{"iterations": ec.Iterations, "maxIterations": g.cfg.MaxIterations},
		), nil
	}

	tokens := ec.TokensUsed()
	if g.cfg.MaxTokens > 0 && tokens > g.cfg.MaxTokens {
		return Block(
			fmt.Sprintf("Exceeded maximum tokens (%d > %d)", tokens, g.cfg.MaxTokens),
			map[string]interface{}{"tokensUsed": tokens, "maxTokens": g.cfg.MaxTokens},
		), nil
	}

	cost := ec.CostUSD()
	if g.cfg.MaxCostUSD > 0 && cost > g.cfg.MaxCostUSD {
		return Block(
			fmt.Sprintf("Exceeded maximum cost ($%.4f > $%.4f)", cost, g.cfg.MaxCostUSD),
			map[string]interface{}{"costUsd": cost, "maxCostUsd": g.cfg.MaxCostUSD},
		), nil
	}

	if g.cfg.Timeout > 0 && !ec.StartTime.IsZero() {
		elapsed := ec.Elapsed(g.now())
		if elapsed > g.cfg.Timeout {
			return Block(
				fmt.Sprintf("Execution timeout exceeded (%s > %s)", elapsed.Round(time.Millisecond), g.cfg.Timeout),
				map[string]interface{}{"elapsedMs": elapsed.Milliseconds(), "timeoutMs": g.cfg.Timeout.Milliseconds()},
			), nil
		}
	}

	return Pass(), nil
}
