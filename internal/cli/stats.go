package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/agentcore/pkg/execlog"
)

var statsOpts struct {
	tenant     string
	agent      string
	timeframe  string
	recent     int
	jsonOutput bool
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution statistics",
	Long: `Show success rates, durations and common errors from the execution log,
per agent for a tenant or for a single agent.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsOpts.tenant, "tenant", "local", "tenant to report on")
	statsCmd.Flags().StringVar(&statsOpts.agent, "agent", "", "report on a single agent")
	statsCmd.Flags().StringVar(&statsOpts.timeframe, "timeframe", "day", "window: hour, day, week or month")
	statsCmd.Flags().IntVar(&statsOpts.recent, "recent", 0, "also list this many recent runs")
	statsCmd.Flags().BoolVar(&statsOpts.jsonOutput, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	window, err := execlog.Timeframe(statsOpts.timeframe)
	if err != nil {
		return err
	}

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.ExecutionLog.SQLitePath == "" {
		return fmt.Errorf("execution_log.sqlite_path is not configured")
	}
	store, err := execlog.NewSQLiteStore(execlog.SQLiteConfig{
		Path:   cfg.ExecutionLog.SQLitePath,
		Logger: log.Component("stats"),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	return reportStats(cmd.Context(), cmd.OutOrStdout(), store, statsOpts.tenant, statsOpts.agent, time.Now().Add(-window), statsOpts.recent, statsOpts.jsonOutput)
}

type statsReport struct {
	Tenant string                     `json:"tenant"`
	Since  time.Time                  `json:"since"`
	Agents map[string]execlog.Metrics `json:"agents"`
	Recent []execlog.Entry            `json:"recent,omitempty"`
}

func reportStats(ctx context.Context, out io.Writer, store *execlog.SQLiteStore, tenant, agentID string, since time.Time, recent int, asJSON bool) error {
	report := statsReport{Tenant: tenant, Since: since}

	if agentID != "" {
		m, err := store.AgentMetrics(ctx, agentID, tenant, since)
		if err != nil {
			return err
		}
		report.Agents = map[string]execlog.Metrics{agentID: m}
	} else {
		overview, err := store.TenantOverview(ctx, tenant, since)
		if err != nil {
			return err
		}
		report.Agents = overview
	}

	if recent > 0 {
		entries, err := store.Recent(ctx, execlog.Query{AgentID: agentID, TenantID: tenant, Event: execlog.EventRun, Limit: recent})
		if err != nil {
			return err
		}
		report.Recent = entries
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if len(report.Agents) == 0 {
		fmt.Fprintf(out, "No runs for tenant %s since %s\n", tenant, since.Format(time.RFC3339))
		return nil
	}

	ids := make([]string, 0, len(report.Agents))
	for id := range report.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := report.Agents[id]
		fmt.Fprintf(out, "Agent: %s\n", id)
		fmt.Fprintf(out, "  Runs: %d (%d ok, %d failed)\n", m.TotalExecutions, m.SuccessfulExecutions, m.FailedExecutions)
		fmt.Fprintf(out, "  Success rate: %.1f%%\n", m.SuccessRate)
		fmt.Fprintf(out, "  Average duration: %s\n", formatDuration(time.Duration(m.AverageDurationMs*float64(time.Millisecond))))
		if m.LastExecution != nil {
			fmt.Fprintf(out, "  Last run: %s ago\n", formatDuration(time.Since(*m.LastExecution)))
		}
		for _, e := range m.CommonErrors {
			fmt.Fprintf(out, "  Error: %s\n", e)
		}
	}

	if len(report.Recent) > 0 {
		fmt.Fprintln(out, "\nRecent runs:")
		for _, e := range report.Recent {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(out, "  %s  %-12s %-7s %8s  %s\n",
				e.Timestamp.Format(time.RFC3339), e.AgentID, status, formatDuration(e.Duration), e.InputSummary)
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
