package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/rs/zerolog/log"
)

const defaultApprovalTimeout = 60 * time.Second

// ApprovalRequest describes a tool call awaiting a human decision.
type ApprovalRequest struct {
	ToolName    string                 `json:"tool_name"`
	Args        map[string]interface{} `json:"args"`
	ExecutionID string                 `json:"execution_id,omitempty"`
	AgentID     string                 `json:"agent_id,omitempty"`
	TenantID    string                 `json:"tenant_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
}

// ApprovalCallback decides whether a tool call may proceed.
type ApprovalCallback func(ctx context.Context, req ApprovalRequest) (bool, error)

// ToolApprovalConfig configures the tool approval guardrail.
type ToolApprovalConfig struct {
	RequireApproval []string
	Callback        ApprovalCallback
	Timeout         time.Duration
}

// ToolApproval gates listed tools behind an approval callback. Without a
// callback, listed tools are always blocked.
type ToolApproval struct {
	require  map[string]bool
	callback ApprovalCallback
	timeout  time.Duration
}

// NewToolApproval creates a tool approval guardrail.
func NewToolApproval(cfg ToolApprovalConfig) *ToolApproval {
	require := make(map[string]bool, len(cfg.RequireApproval))
	for _, name := range cfg.RequireApproval {
		require[name] = true
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultApprovalTimeout
	}
	return &ToolApproval{require: require, callback: cfg.Callback, timeout: timeout}
}

func (g *ToolApproval) Name() string { return "tool_approval" }
func (g *ToolApproval) Kind() Kind   { return KindTool }

// RequiresApproval reports whether name is gated.
func (g *ToolApproval) RequiresApproval(name string) bool {
	return g.require[name]
}

func (g *ToolApproval) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	if in.Tool == nil || !g.require[in.Tool.Name] {
		return Pass(), nil
	}
	name := in.Tool.Name

	if g.callback == nil {
		return Block(
			fmt.Sprintf("Tool %s requires approval but no approval callback is configured", name),
			map[string]interface{}{"tool": name},
		), nil
	}

	req := ApprovalRequest{ToolName: name, Args: in.Tool.Args}
	if ec != nil {
		req.ExecutionID = ec.ID
		req.AgentID = ec.AgentID
		req.TenantID = ec.TenantID
		req.UserID = ec.UserID
	}

	approved, err := g.request(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("Approval callback failed")
		return Block(
			fmt.Sprintf("Tool %s approval callback failed: %v", name, err),
			map[string]interface{}{"tool": name, "error": err.Error()},
		), nil
	}
	if !approved {
		return Block(
			fmt.Sprintf("Tool %s approval denied", name),
			map[string]interface{}{"tool": name, "approved": false},
		), nil
	}

	return Result{
		Passed:   true,
		Metadata: map[string]interface{}{"tool": name, "approved": true},
	}, nil
}

// request runs the callback under the approval timeout.
func (g *ToolApproval) request(ctx context.Context, req ApprovalRequest) (bool, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	log.Info().
		Str("tool", req.ToolName).
		Str("agent_id", req.AgentID).
		Msg("Requesting tool approval")

	responseChan := make(chan bool, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errorChan <- fmt.Errorf("panic: %v", r)
			}
		}()
		approved, err := g.callback(timeoutCtx, req)
		if err != nil {
			errorChan <- err
		} else {
			responseChan <- approved
		}
	}()

	select {
	case approved := <-responseChan:
		return approved, nil
	case err := <-errorChan:
		return false, err
	case <-timeoutCtx.Done():
		return false, fmt.Errorf("approval timed out after %s", g.timeout)
	}
}
