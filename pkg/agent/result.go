package agent

import (
	"errors"
	"time"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/llm"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone                  Status = "done"
	StatusBlocked               Status = "blocked"
	StatusFailed                Status = "failed"
	StatusMaxIterationsExceeded Status = "max_iterations_exceeded"
	StatusInvalidConfig         Status = "invalid_config"
)

// RunOptions are the per-run inputs. TenantID and UserID are required.
type RunOptions struct {
	TenantID      string
	UserID        string
	MaxIterations int
	Timeout       time.Duration
	// Context is copied into the run's execution metadata.
	Context       map[string]interface{}
	ParallelTools bool
}

// RunMetadata describes how a run went.
type RunMetadata struct {
	ExecutionID  string                     `json:"executionId"`
	StartTime    time.Time                  `json:"startTime"`
	EndTime      time.Time                  `json:"endTime"`
	DurationMs   int64                      `json:"durationMs"`
	Iterations   int                        `json:"iterations"`
	TokensUsed   int                        `json:"tokensUsed"`
	CostUSD      float64                    `json:"costUsd"`
	Model        string                     `json:"model"`
	Provider     string                     `json:"provider,omitempty"`
	FallbackUsed bool                       `json:"fallbackUsed"`
	ToolCalls    []execution.ToolCallRecord `json:"toolCalls,omitempty"`
}

// RunResult is the outcome of Runner.Run. Messages holds the transcript
// without the agent's system instructions.
type RunResult struct {
	Success     bool          `json:"success"`
	Status      Status        `json:"status"`
	Messages    []llm.Message `json:"messages"`
	FinalOutput string        `json:"finalOutput,omitempty"`
	Err         error         `json:"-"`
	Metadata    RunMetadata   `json:"metadata"`
}

// ErrorMessage returns the error text, or "" on success.
func (r RunResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func statusOf(err error) Status {
	var cfgErr *ConfigurationError
	var violation *guardrail.ViolationError
	var maxIter *MaxIterationsError

	switch {
	case err == nil:
		return StatusDone
	case errors.As(err, &cfgErr):
		return StatusInvalidConfig
	case errors.As(err, &violation):
		return StatusBlocked
	case errors.As(err, &maxIter):
		return StatusMaxIterationsExceeded
	default:
		return StatusFailed
	}
}
