package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/agentcore/internal/engine"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/llm"
)

var runOpts struct {
	tenant        string
	user          string
	maxIterations int
	timeout       time.Duration
	jsonOutput    bool
	approve       bool
	parallel      bool
}

var runCmd = &cobra.Command{
	Use:   "run <agent-id> <prompt...>",
	Short: "Run an agent on a single prompt",
	Long: `Run a configured agent on one prompt and print its final answer.
Use "-" as the prompt to read it from stdin.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runOpts.tenant, "tenant", "local", "tenant id the run acts for")
	runCmd.Flags().StringVar(&runOpts.user, "user", currentUser(), "user id the run acts for")
	runCmd.Flags().IntVar(&runOpts.maxIterations, "max-iterations", 0, "loop iteration cap (0 uses the configured default)")
	runCmd.Flags().DurationVar(&runOpts.timeout, "timeout", 0, "run time limit (0 uses the configured default)")
	runCmd.Flags().BoolVar(&runOpts.jsonOutput, "json", false, "print the full run result as JSON")
	runCmd.Flags().BoolVar(&runOpts.approve, "approve", false, "ask on the terminal before running tools that need approval")
	runCmd.Flags().BoolVar(&runOpts.parallel, "parallel-tools", false, "run the tool calls of one turn concurrently")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	opts := engine.Options{}
	if runOpts.approve {
		opts.Approval = promptApproval(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	e, err := engine.New(cfg, log.GetZerolog(), opts)
	if err != nil {
		return err
	}
	defer e.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := e.Run(ctx, args[0], []llm.Message{llm.UserMessage(prompt)}, agent.RunOptions{
		TenantID:      runOpts.tenant,
		UserID:        runOpts.user,
		MaxIterations: runOpts.maxIterations,
		Timeout:       runOpts.timeout,
		ParallelTools: runOpts.parallel,
	})
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, runOpts.jsonOutput)
}

func printResult(out, errOut io.Writer, res agent.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newRunOutput(res)); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprintln(out, res.FinalOutput)
	}

	md := res.Metadata
	fmt.Fprintf(errOut, "\n[%s] %d iteration(s), %d tokens, $%.6f, provider %s",
		res.Status, md.Iterations, md.TokensUsed, md.CostUSD, orDash(md.Provider))
	if md.FallbackUsed {
		fmt.Fprint(errOut, " (fallback)")
	}
	fmt.Fprintln(errOut)

	if !res.Success {
		return fmt.Errorf("run %s: %s", res.Status, res.ErrorMessage())
	}
	return nil
}

// runOutput is the JSON shape of a run result; it carries the error text
// that RunResult keeps out of its own encoding.
type runOutput struct {
	agent.RunResult
	Error string `json:"error,omitempty"`
}

func newRunOutput(res agent.RunResult) runOutput {
	return runOutput{RunResult: res, Error: res.ErrorMessage()}
}

func readPrompt(parts []string, stdin io.Reader) (string, error) {
	if len(parts) == 1 && parts[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		parts = []string{string(data)}
	}
	prompt := strings.TrimSpace(strings.Join(parts, " "))
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
