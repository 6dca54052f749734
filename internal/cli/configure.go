package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/agentcore/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard that writes a starter config
with a primary provider, an optional fallback and a default agent.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())

	cfg, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Keys live in the environment, so only the declarations can be checked here.
	if err := cfg.ValidateAgents(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintf(out, "Export %s, then try: agentcore run %s \"What is 47 times 23?\"\n",
		cfg.Providers.Primary.APIKeyEnv, cfg.Agents[0].ID)

	return nil
}
