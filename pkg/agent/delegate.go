package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/llm"
	"github.com/harun/agentcore/pkg/tool"
)

// MaxDelegationDepth bounds agent-as-tool nesting below the root run.
const MaxDelegationDepth = 3

// DelegationResult is what a delegation tool returns to the calling model.
type DelegationResult struct {
	Agent       string  `json:"agent"`
	Output      string  `json:"output"`
	ExecutionID string  `json:"executionId"`
	Iterations  int     `json:"iterations"`
	TokensUsed  int     `json:"tokensUsed"`
	CostUSD     float64 `json:"costUsd"`
}

// AsTool exposes the agent as a tool that runs it through runner with the
// tool's input as a single user message. name defaults to
// call_<snake_case name> and description to one derived from the agent.
//
// The sub-run inherits tenant and user from the calling run, records the
// parent execution id and depth in its metadata, and folds its token and
// cost spend into the caller's totals.
func (a *Agent) AsTool(runner *Runner, name, description string) (*tool.Tool, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required to delegate to agent %s", a.name)
	}
	if name == "" {
		name = "call_" + snakeCase(a.name)
		if len(name) > 64 {
			name = name[:64]
		}
	}
	if description == "" {
		description = fmt.Sprintf("Delegate a task to the %s agent.", a.name)
		if a.description != "" {
			description += " " + a.description
		}
	}

	return tool.New(name, description, map[string]tool.Param{
		"input": {
			Type:        "string",
			Description: fmt.Sprintf("The task or question for %s", a.name),
		},
	}, func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
		if ec == nil || !ec.HasTenancy() {
			return nil, fmt.Errorf("delegation requires tenant context")
		}
		depth := ec.DelegationDepth() + 1
		if depth > MaxDelegationDepth {
			return nil, fmt.Errorf("maximum delegation depth %d exceeded", MaxDelegationDepth)
		}

		input, _ := args["input"].(string)

		meta := make(map[string]interface{}, len(ec.Metadata)+2)
		for k, v := range ec.Metadata {
			meta[k] = v
		}
		meta[execution.MetaParentExecutionID] = ec.ID
		meta[execution.MetaDelegationDepth] = depth

		res := runner.Run(tracing.PropagateToSubAgent(ctx, a.id), a, []llm.Message{llm.UserMessage(input)}, RunOptions{
			TenantID: ec.TenantID,
			UserID:   ec.UserID,
			Context:  meta,
		})
		ec.AddUsage(res.Metadata.TokensUsed, res.Metadata.CostUSD)

		if !res.Success {
			return nil, fmt.Errorf("delegated agent %s ended with %s: %s", a.name, res.Status, res.ErrorMessage())
		}
		return &DelegationResult{
			Agent:       a.name,
			Output:      res.FinalOutput,
			ExecutionID: res.Metadata.ExecutionID,
			Iterations:  res.Metadata.Iterations,
			TokensUsed:  res.Metadata.TokensUsed,
			CostUSD:     res.Metadata.CostUSD,
		}, nil
	})
}

func snakeCase(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if r < unicode.MaxASCII {
				b.WriteRune(unicode.ToLower(r))
				underscore = false
			}
		default:
			if b.Len() > 0 && !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
