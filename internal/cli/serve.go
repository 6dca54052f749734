package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/agentcore/internal/engine"
	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/pkg/agent"
	"github.com/harun/agentcore/pkg/llm"
)

const maxRequestLine = 4 * 1024 * 1024

var serveOpts struct {
	workers     int
	metricsAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run requests as JSON lines",
	Long: `Read run requests as JSON lines on stdin and write one JSON result line
per request on stdout. Requests run concurrently on a worker pool; results
are written in completion order and carry the request id.

Request: {"id":"r1","agent":"assistant","tenantId":"t","userId":"u","input":"hi"}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveOpts.workers, "workers", 0, "concurrent runs (0 uses runner.workers from the config)")
	serveCmd.Flags().StringVar(&serveOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.AddCommand(serveCmd)
}

// serveRequest is one line of input. Messages, when present, replace Input.
type serveRequest struct {
	ID            string                 `json:"id"`
	Agent         string                 `json:"agent"`
	TenantID      string                 `json:"tenantId"`
	UserID        string                 `json:"userId"`
	Input         string                 `json:"input,omitempty"`
	Messages      []llm.Message          `json:"messages,omitempty"`
	MaxIterations int                    `json:"maxIterations,omitempty"`
	TimeoutMs     int                    `json:"timeoutMs,omitempty"`
	ParallelTools bool                   `json:"parallelTools,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

type serveResponse struct {
	ID     string     `json:"id"`
	Result *runOutput `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// agentRunner is the part of the engine the server needs.
type agentRunner interface {
	Run(ctx context.Context, agentID string, messages []llm.Message, opts agent.RunOptions) (agent.RunResult, error)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Close()

	e, err := engine.New(cfg, log.GetZerolog(), engine.Options{})
	if err != nil {
		return err
	}
	defer e.Shutdown(context.Background())

	workers := serveOpts.workers
	if workers <= 0 {
		workers = cfg.Runner.Workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl := log.Component("serve")
	if serveOpts.metricsAddr != "" {
		srv := startMetricsServer(serveOpts.metricsAddr, zl)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return serveLines(ctx, e, cmd.InOrStdin(), cmd.OutOrStdout(), workers, zl)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func startMetricsServer(addr string, log zerolog.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

// serveLines dispatches requests from in to a pool of workers and writes
// each response as one JSON line. It returns once in is exhausted and every
// accepted request has been answered, or once ctx is cancelled and the
// in-flight runs have finished.
func serveLines(ctx context.Context, r agentRunner, in io.Reader, out io.Writer, workers int, log zerolog.Logger) error {
	if workers <= 0 {
		workers = 1
	}

	var writeMu sync.Mutex
	enc := json.NewEncoder(out)
	write := func(resp serveResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := enc.Encode(resp); err != nil {
			log.Error().Err(err).Str("id", resp.ID).Msg("Failed to write response")
		}
	}

	jobs := make(chan serveRequest)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				write(handleRequest(ctx, r, req))
			}
		}()
	}

	scanErr := readRequests(ctx, in, jobs, write, log)
	close(jobs)
	wg.Wait()

	log.Info().Msg("Serve loop finished")
	return scanErr
}

func readRequests(ctx context.Context, in io.Reader, jobs chan<- serveRequest, write func(serveResponse), log zerolog.Logger) error {
	lines := make(chan []byte)
	scanDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxRequestLine)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanDone <- nil
				return
			}
		}
		scanDone <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down, waiting for in-flight runs")
			return nil
		case err := <-scanDone:
			if err != nil {
				return fmt.Errorf("failed to read requests: %w", err)
			}
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			var req serveRequest
			if err := json.Unmarshal(line, &req); err != nil {
				write(serveResponse{Error: fmt.Sprintf("invalid request: %v", err)})
				continue
			}
			if req.ID == "" {
				req.ID = gonanoid.Must()
			}
			select {
			case jobs <- req:
			case <-ctx.Done():
				write(serveResponse{ID: req.ID, Error: "server shutting down"})
				return nil
			}
		}
	}
}

func handleRequest(ctx context.Context, r agentRunner, req serveRequest) serveResponse {
	messages := req.Messages
	if len(messages) == 0 {
		if req.Input == "" {
			return serveResponse{ID: req.ID, Error: "input or messages is required"}
		}
		messages = []llm.Message{llm.UserMessage(req.Input)}
	}

	res, err := r.Run(ctx, req.Agent, messages, agent.RunOptions{
		TenantID:      req.TenantID,
		UserID:        req.UserID,
		MaxIterations: req.MaxIterations,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
		ParallelTools: req.ParallelTools,
		Context:       req.Context,
	})
	if err != nil {
		return serveResponse{ID: req.ID, Error: err.Error()}
	}

	out := newRunOutput(res)
	return serveResponse{ID: req.ID, Result: &out}
}
