package guardrail

import (
	"context"
	"fmt"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/llm"
)

// Kind selects the checkpoint a guardrail runs at.
type Kind string

const (
	KindInput  Kind = "input"
	KindTool   Kind = "tool"
	KindCost   Kind = "cost"
	KindOutput Kind = "output"
)

// Action is what a guardrail asks the runner to do with the checked content.
type Action string

const (
	ActionNone   Action = ""
	ActionBlock  Action = "block"
	ActionRedact Action = "redact"
)

// Result is the verdict of a single check.
type Result struct {
	Passed          bool                   `json:"passed"`
	Action          Action                 `json:"action,omitempty"`
	Reason          string                 `json:"reason,omitempty"`
	RedactedContent string                 `json:"redacted_content,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Pass returns a passing result with no action.
func Pass() Result {
	return Result{Passed: true}
}

// Block returns a failing result with the given reason.
func Block(reason string, metadata map[string]interface{}) Result {
	return Result{
		Passed:   false,
		Action:   ActionBlock,
		Reason:   reason,
		Metadata: metadata,
	}
}

// ToolInvocation is the subject of a tool-kind check.
type ToolInvocation struct {
	Name string
	Args map[string]interface{}
}

// Input carries whatever the checkpoint inspects. Input guardrails read
// Messages, tool guardrails read Tool, output guardrails read Output and
// cost guardrails only look at the execution context.
type Input struct {
	Messages []llm.Message
	Tool     *ToolInvocation
	Output   string
}

// Guardrail is a policy check run at one checkpoint of a run.
// Implementations must not mutate the input.
type Guardrail interface {
	Name() string
	Kind() Kind
	Check(ctx context.Context, in Input, ec *execution.Context) (Result, error)
}

// CheckFunc is the signature of a custom guardrail body.
type CheckFunc func(ctx context.Context, in Input, ec *execution.Context) (Result, error)

type funcGuardrail struct {
	name  string
	kind  Kind
	check CheckFunc
}

// Func adapts a function into a Guardrail.
func Func(name string, kind Kind, check CheckFunc) Guardrail {
	return &funcGuardrail{name: name, kind: kind, check: check}
}

func (g *funcGuardrail) Name() string { return g.name }
func (g *funcGuardrail) Kind() Kind   { return g.kind }

func (g *funcGuardrail) Check(ctx context.Context, in Input, ec *execution.Context) (Result, error) {
	return g.check(ctx, in, ec)
}

// ViolationError is returned when a guardrail blocks a run.
type ViolationError struct {
	Guardrail string
	Kind      Kind
	Reason    string
	Metadata  map[string]interface{}
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s guardrail %q blocked: %s", e.Kind, e.Guardrail, e.Reason)
}

// ValidKind reports whether k names a checkpoint.
func ValidKind(k Kind) bool {
	switch k {
	case KindInput, KindTool, KindCost, KindOutput:
		return true
	}
	return false
}
