package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/agentcore/internal/engine"
	"github.com/harun/agentcore/pkg/agent"
)

var agentsJSON bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured agents",
	Long:  `List the agents declared in the configuration with their model, tools and guardrails.`,
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "print agent summaries as JSON")
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	e, err := engine.New(cfg, zerolog.Nop(), engine.Options{Offline: true})
	if err != nil {
		return err
	}
	defer e.Shutdown(context.Background())

	summaries := make([]agent.Summary, 0, len(e.Agents()))
	for _, a := range e.Agents() {
		summaries = append(summaries, a.Summary())
	}
	return printSummaries(cmd.OutOrStdout(), summaries, agentsJSON)
}

func printSummaries(out io.Writer, summaries []agent.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tTEMP\tTOOLS\tDESCRIPTION")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%s\n",
			s.ID, s.Name, s.Model, s.Temperature, orDash(strings.Join(s.Tools, ",")), orDash(s.Description))
	}
	return w.Flush()
}
