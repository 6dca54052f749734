package execlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event names written by the engine.
const (
	EventRun             = "run"
	EventProviderAttempt = "provider_attempt"
)

const (
	summaryLimit  = 500
	slowThreshold = 30 * time.Second
)

// Entry is one execution record.
type Entry struct {
	Event         string                 `json:"event"`
	ExecutionID   string                 `json:"execution_id,omitempty"`
	AgentID       string                 `json:"agent_id"`
	TenantID      string                 `json:"tenant_id"`
	UserID        string                 `json:"user_id"`
	InputSummary  string                 `json:"input_summary"`
	OutputSummary string                 `json:"output_summary"`
	Duration      time.Duration          `json:"duration"`
	Success       bool                   `json:"success"`
	Provider      string                 `json:"provider,omitempty"`
	Model         string                 `json:"model,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Logger receives execution records. Implementations must be safe for
// concurrent use.
type Logger interface {
	LogExecution(ctx context.Context, e Entry) error
}

// Summarize renders v as JSON, truncated to 500 characters.
func Summarize(v interface{}) string {
	var str string
	switch t := v.(type) {
	case string:
		str = t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "[Non-serializable data]"
		}
		str = string(data)
	}

	runes := []rune(str)
	if len(runes) > summaryLimit {
		return string(runes[:summaryLimit-3]) + "..."
	}
	return str
}

// Record delivers e to l. Logging failures and panics are reported to the
// process logger and never propagate to the caller.
func Record(ctx context.Context, l Logger, e Entry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("agent_id", e.AgentID).
				Msg("Execution logger panicked")
		}
	}()

	if err := l.LogExecution(ctx, e); err != nil {
		log.Warn().
			Err(err).
			Str("agent_id", e.AgentID).
			Str("event", e.Event).
			Msg("Failed to log execution")
	}
}

// ZerologLogger writes execution records as structured log lines.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a log-line sink.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (z *ZerologLogger) LogExecution(ctx context.Context, e Entry) error {
	ev := z.logger.Info()
	msg := "Agent execution succeeded"
	if !e.Success {
		ev = z.logger.Error()
		msg = "Agent execution failed"
	}
	if e.Event == EventProviderAttempt {
		msg = "Provider attempt succeeded"
		if !e.Success {
			ev = z.logger.Warn()
			msg = "Provider attempt failed"
		}
	}

	ev = ev.
		Str("event", e.Event).
		Str("execution_id", e.ExecutionID).
		Str("agent_id", e.AgentID).
		Str("tenant_id", e.TenantID).
		Str("user_id", e.UserID).
		Int64("duration_ms", e.Duration.Milliseconds()).
		Bool("success", e.Success).
		Str("provider", e.Provider).
		Str("model", e.Model)
	if e.Error != "" {
		ev = ev.Str("error", e.Error)
	}
	if len(e.Metadata) > 0 {
		ev = ev.Interface("metadata", e.Metadata)
	}
	ev.Msg(msg)

	if e.Event == EventRun && e.Duration > slowThreshold {
		z.logger.Warn().
			Str("agent_id", e.AgentID).
			Int64("duration_ms", e.Duration.Milliseconds()).
			Bool("threshold_exceeded", true).
			Msg("Slow agent execution detected")
	}
	return nil
}

type multiLogger struct {
	loggers []Logger
}

// Multi fans records out to several loggers. Every logger is tried even
// when an earlier one fails.
func Multi(loggers ...Logger) Logger {
	ls := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			ls = append(ls, l)
		}
	}
	return &multiLogger{loggers: ls}
}

func (m *multiLogger) LogExecution(ctx context.Context, e Entry) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.LogExecution(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every record.
type Nop struct{}

func (Nop) LogExecution(ctx context.Context, e Entry) error { return nil }

// Timeframe converts a named window into a duration.
func Timeframe(name string) (time.Duration, error) {
	switch name {
	case "hour":
		return time.Hour, nil
	case "", "day":
		return 24 * time.Hour, nil
	case "week":
		return 7 * 24 * time.Hour, nil
	case "month":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", name)
	}
}
