package guardrail

import (
	"context"
	"fmt"

	"github.com/harun/agentcore/pkg/execution"
)

// Pipeline runs guardrails of one kind in declaration order.
type Pipeline struct {
	guardrails []Guardrail
}

// NewPipeline creates a pipeline over the given guardrails.
func NewPipeline(guardrails ...Guardrail) *Pipeline {
	gs := make([]Guardrail, 0, len(guardrails))
	for _, g := range guardrails {
		if g != nil {
			gs = append(gs, g)
		}
	}
	return &Pipeline{guardrails: gs}
}

// Of returns the guardrails of the given kind.
func (p *Pipeline) Of(kind Kind) []Guardrail {
	var out []Guardrail
	for _, g := range p.guardrails {
		if g.Kind() == kind {
			out = append(out, g)
		}
	}
	return out
}

// Run executes every guardrail of kind against in. The first blocking
// result stops the pipeline and is returned as a *ViolationError. A
// guardrail that fails with an error blocks the run as well.
//
// For output checks a redaction replaces the text seen by later guardrails,
// and the returned Result carries the final redacted text.
func (p *Pipeline) Run(ctx context.Context, kind Kind, in Input, ec *execution.Context) (Result, error) {
	agg := Pass()
	current := in

	for _, g := range p.Of(kind) {
		res, err := g.Check(ctx, current, ec)
		if err != nil {
			return Result{}, &ViolationError{
				Guardrail: g.Name(),
				Kind:      kind,
				Reason:    fmt.Sprintf("guardrail error: %v", err),
			}
		}

		if !res.Passed || res.Action == ActionBlock {
			reason := res.Reason
			if reason == "" {
				reason = "blocked by policy"
			}
			return res, &ViolationError{
				Guardrail: g.Name(),
				Kind:      kind,
				Reason:    reason,
				Metadata:  res.Metadata,
			}
		}

		if res.Action == ActionRedact && kind == KindOutput {
			current.Output = res.RedactedContent
			agg.Action = ActionRedact
			agg.RedactedContent = res.RedactedContent
			agg.Reason = res.Reason
		}
		agg.Metadata = mergeMetadata(agg.Metadata, res.Metadata)
	}

	return agg, nil
}

// Len returns the number of guardrails in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.guardrails)
}

func mergeMetadata(dst, src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
