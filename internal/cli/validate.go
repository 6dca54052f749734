package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/agentcore/internal/config"
	"github.com/harun/agentcore/pkg/pricing"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Load the configuration and report every problem found in providers, guardrails and agents.
Agents on models without a price row are noted, since their cost limits use default prices.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	return reportValidation(cmd.OutOrStdout(), loader.GetConfigPath(), cfg)
}

func reportValidation(out io.Writer, path string, cfg *config.Config) error {
	errs := config.NewValidator().ValidateConfig(cfg)
	if len(errs) == 0 {
		fmt.Fprintf(out, "Configuration OK: %s (%d agent(s))\n", path, len(cfg.Agents))
	} else {
		fmt.Fprintf(out, "Configuration %s has %d problem(s):\n", path, len(errs))
		for _, err := range errs {
			fmt.Fprintf(out, "  - %v\n", err)
		}
	}

	if notes := unpricedModels(cfg); len(notes) > 0 {
		fmt.Fprintf(out, "Cost estimates fall back to %s prices for:\n", pricing.DefaultModel)
		for _, n := range notes {
			fmt.Fprintf(out, "  - %s\n", n)
		}
		fmt.Fprintf(out, "Priced models: %s\n", strings.Join(pricing.Models(), ", "))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration")
	}
	return nil
}

func unpricedModels(cfg *config.Config) []string {
	var notes []string
	for _, ac := range cfg.Agents {
		model := ac.Model
		if model == "" {
			model = cfg.Providers.Primary.Model
		}
		if model == "" {
			continue
		}
		if _, ok := pricing.Lookup(model); !ok {
			notes = append(notes, fmt.Sprintf("agent %s (model %s)", ac.ID, model))
		}
	}
	return notes
}
