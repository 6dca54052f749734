// Package execution holds the per-run state threaded through guardrails,
// tools and the provider layer.
package execution

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/agentcore/pkg/llm"
)

// Metadata keys reserved by the engine.
const (
	MetaParentExecutionID = "parentExecutionId"
	MetaDelegationDepth   = "delegationDepth"
)

// ToolCallRecord is one entry of the run's tool-call log.
type ToolCallRecord struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
	Output     string                 `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Iteration  int                    `json:"iteration"`
	DurationMs int64                  `json:"duration_ms"`
}

// Context is the mutable state of a single run. It is created fresh by the
// runner and never shared between runs.
type Context struct {
	ID        string
	TenantID  string
	UserID    string
	AgentID   string
	StartTime time.Time
	Metadata  map[string]interface{}

	Messages   []llm.Message
	Iterations int

	mu         sync.Mutex
	toolCalls  []ToolCallRecord
	tokensUsed int
	costUSD    float64
}

// New creates a context for a run with a fresh execution id.
func New(tenantID, userID, agentID string, metadata map[string]interface{}) *Context {
	meta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return &Context{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		AgentID:   agentID,
		StartTime: time.Now(),
		Metadata:  meta,
	}
}

// AddUsage folds token and cost spend into the run totals.
// Safe for concurrent use by sibling tool executions.
func (c *Context) AddUsage(tokens int, costUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokensUsed += tokens
	c.costUSD += costUSD
}

// TokensUsed returns the total tokens consumed so far.
func (c *Context) TokensUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokensUsed
}

// CostUSD returns the accumulated estimated cost.
func (c *Context) CostUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costUSD
}

// RecordToolCall appends to the tool-call log.
func (c *Context) RecordToolCall(rec ToolCallRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolCalls = append(c.toolCalls, rec)
}

// ToolCalls returns a copy of the tool-call log.
func (c *Context) ToolCalls() []ToolCallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolCallRecord, len(c.toolCalls))
	copy(out, c.toolCalls)
	return out
}

// Elapsed returns the wall-clock time since the run started.
func (c *Context) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.StartTime)
}

// DelegationDepth returns how many agent-as-tool hops led to this run.
func (c *Context) DelegationDepth() int {
	switch v := c.Metadata[MetaDelegationDepth].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// HasTenancy reports whether both tenant and user are set.
func (c *Context) HasTenancy() bool {
	return c.TenantID != "" && c.UserID != ""
}
