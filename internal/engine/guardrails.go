package engine

import (
	"os"
	"time"

	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/pkg/guardrail"
)

var lookupEnv = os.Getenv

// Guardrails builds the runner-wide guardrails enabled in cfg.
func Guardrails(cfg config.GuardrailsConfig, approval guardrail.ApprovalCallback) ([]guardrail.Guardrail, error) {
	var gs []guardrail.Guardrail

	if cfg.Input.Enabled {
		g, err := guardrail.NewInputSafety(guardrail.InputSafetyConfig{Mode: guardrail.SafetyMode(cfg.Input.Mode)})
		if err != nil {
			return nil, err
		}
		gs = append(gs, g)
	}

	if len(cfg.Keywords.BlockedKeywords) > 0 || len(cfg.Keywords.BlockedPatterns) > 0 {
		g, err := guardrail.NewKeywordFilter(guardrail.KeywordFilterConfig{
			BlockedKeywords: cfg.Keywords.BlockedKeywords,
			BlockedPatterns: cfg.Keywords.BlockedPatterns,
		})
		if err != nil {
			return nil, err
		}
		gs = append(gs, g)
	}

	if cfg.Output.Enabled {
		g, err := guardrail.NewOutputValidation(guardrail.OutputValidationConfig{Mode: guardrail.OutputMode(cfg.Output.Mode)})
		if err != nil {
			return nil, err
		}
		gs = append(gs, g)
	}

	if cfg.Cost.Enabled {
		gs = append(gs, guardrail.NewCostLimit(guardrail.CostLimitConfig{
			MaxIterations: cfg.Cost.MaxIterations,
			MaxTokens:     cfg.Cost.MaxTokens,
			MaxCostUSD:    cfg.Cost.MaxCostUSD,
			Timeout:       time.Duration(cfg.Cost.TimeoutMs) * time.Millisecond,
		}))
	}

	if len(cfg.Tools.RequireApproval) > 0 {
		gs = append(gs, guardrail.NewToolApproval(guardrail.ToolApprovalConfig{
			RequireApproval: cfg.Tools.RequireApproval,
			Callback:        approval,
			Timeout:         time.Duration(cfg.Tools.ApprovalTimeoutMs) * time.Millisecond,
		}))
	}

	return gs, nil
}
