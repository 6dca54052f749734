package execlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteConfig holds execution store configuration
type SQLiteConfig struct {
	Path   string
	Logger zerolog.Logger
}

// SQLiteStore persists execution records and answers aggregate queries.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Metrics aggregates the run records of one agent.
type Metrics struct {
	TotalExecutions      int        `json:"total_executions"`
	SuccessfulExecutions int        `json:"successful_executions"`
	FailedExecutions     int        `json:"failed_executions"`
	SuccessRate          float64    `json:"success_rate"`
	AverageDurationMs    float64    `json:"average_duration_ms"`
	LastExecution        *time.Time `json:"last_execution,omitempty"`
	CommonErrors         []string   `json:"common_errors,omitempty"`
}

// Query filters Recent.
type Query struct {
	AgentID  string
	TenantID string
	Event    string
	Limit    int
}

// NewSQLiteStore opens (or creates) the execution store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: cfg.Logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("path", cfg.Path).Msg("Execution store initialized")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS execution_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			execution_id TEXT,
			agent_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			input_summary TEXT,
			output_summary TEXT,
			duration_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			provider TEXT,
			model TEXT,
			error TEXT,
			metadata TEXT,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_agent ON execution_logs(tenant_id, agent_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_execution ON execution_logs(execution_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LogExecution stores one record.
func (s *SQLiteStore) LogExecution(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	provider := e.Provider
	if provider == "" {
		provider = "unknown"
	}
	model := e.Model
	if model == "" {
		model = "unknown"
	}

	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (
			event, execution_id, agent_id, tenant_id, user_id, input_summary, output_summary,
			duration_ms, success, provider, model, error, metadata, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Event, e.ExecutionID, e.AgentID, e.TenantID, e.UserID, e.InputSummary, e.OutputSummary,
		e.Duration.Milliseconds(), e.Success, provider, model, nullString(e.Error), metadata,
		e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}

// Recent returns the newest records matching q.
func (s *SQLiteStore) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "1=1"
	args := []interface{}{}
	if q.AgentID != "" {
		where += " AND agent_id = ?"
		args = append(args, q.AgentID)
	}
	if q.TenantID != "" {
		where += " AND tenant_id = ?"
		args = append(args, q.TenantID)
	}
	if q.Event != "" {
		where += " AND event = ?"
		args = append(args, q.Event)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT event, execution_id, agent_id, tenant_id, user_id, input_summary, output_summary,
			duration_ms, success, provider, model, error, metadata, timestamp
		FROM execution_logs WHERE `+where+` ORDER BY timestamp DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                        Entry
			executionID, errText, md sql.NullString
			input, output, prov, mdl sql.NullString
			durationMs, ts           int64
		)
		if err := rows.Scan(&e.Event, &executionID, &e.AgentID, &e.TenantID, &e.UserID, &input, &output,
			&durationMs, &e.Success, &prov, &mdl, &errText, &md, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		e.ExecutionID = executionID.String
		e.InputSummary = input.String
		e.OutputSummary = output.String
		e.Provider = prov.String
		e.Model = mdl.String
		e.Error = errText.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.Timestamp = time.UnixMilli(ts)
		if md.Valid {
			if err := json.Unmarshal([]byte(md.String), &e.Metadata); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to decode execution metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AgentMetrics aggregates run records of one agent since the given time.
func (s *SQLiteStore) AgentMetrics(ctx context.Context, agentID, tenantID string, since time.Time) (Metrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT success, duration_ms, error, timestamp FROM execution_logs
		WHERE event = ? AND agent_id = ? AND tenant_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC`,
		EventRun, agentID, tenantID, since.UnixMilli())
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to query agent metrics: %w", err)
	}
	defer rows.Close()

	agg := newAggregator()
	for rows.Next() {
		var (
			success    bool
			durationMs int64
			errText    sql.NullString
			ts         int64
		)
		if err := rows.Scan(&success, &durationMs, &errText, &ts); err != nil {
			return Metrics{}, fmt.Errorf("failed to scan agent metrics: %w", err)
		}
		agg.add(success, durationMs, errText.String, ts)
	}
	if err := rows.Err(); err != nil {
		return Metrics{}, err
	}
	return agg.metrics(true), nil
}

// TenantOverview aggregates run records per agent for a tenant.
func (s *SQLiteStore) TenantOverview(ctx context.Context, tenantID string, since time.Time) (map[string]Metrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, success, duration_ms, error, timestamp FROM execution_logs
		WHERE event = ? AND tenant_id = ? AND timestamp >= ?`,
		EventRun, tenantID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant overview: %w", err)
	}
	defer rows.Close()

	groups := map[string]*aggregator{}
	for rows.Next() {
		var (
			agentID    string
			success    bool
			durationMs int64
			errText    sql.NullString
			ts         int64
		)
		if err := rows.Scan(&agentID, &success, &durationMs, &errText, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan tenant overview: %w", err)
		}
		agg, ok := groups[agentID]
		if !ok {
			agg = newAggregator()
			groups[agentID] = agg
		}
		agg.add(success, durationMs, errText.String, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	overview := make(map[string]Metrics, len(groups))
	for agentID, agg := range groups {
		overview[agentID] = agg.metrics(false)
	}
	return overview, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type aggregator struct {
	total, success int
	durationSum    int64
	lastTs         int64
	errorCounts    map[string]int
}

func newAggregator() *aggregator {
	return &aggregator{errorCounts: map[string]int{}}
}

func (a *aggregator) add(success bool, durationMs int64, errText string, ts int64) {
	a.total++
	if success {
		a.success++
	} else if errText != "" {
		a.errorCounts[errText]++
	}
	a.durationSum += durationMs
	if ts > a.lastTs {
		a.lastTs = ts
	}
}

func (a *aggregator) metrics(withErrors bool) Metrics {
	m := Metrics{
		TotalExecutions:      a.total,
		SuccessfulExecutions: a.success,
		FailedExecutions:     a.total - a.success,
	}
	if a.total == 0 {
		return m
	}
	m.SuccessRate = float64(a.success) / float64(a.total) * 100
	m.AverageDurationMs = float64(a.durationSum) / float64(a.total)
	last := time.UnixMilli(a.lastTs)
	m.LastExecution = &last

	if withErrors && len(a.errorCounts) > 0 {
		errs := make([]string, 0, len(a.errorCounts))
		for e := range a.errorCounts {
			errs = append(errs, e)
		}
		sort.Slice(errs, func(i, j int) bool {
			if a.errorCounts[errs[i]] != a.errorCounts[errs[j]] {
				return a.errorCounts[errs[i]] > a.errorCounts[errs[j]]
			}
			return errs[i] < errs[j]
		})
		if len(errs) > 5 {
			errs = errs[:5]
		}
		m.CommonErrors = errs
	}
	return m
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
