// CLAUDE:SUMMARY MetricsDB — separate SQLite ledger of judge calls and HTTP requests, kept apart from the pipeline data
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MetricsDB wraps the metrics.db SQLite database.
type MetricsDB struct {
	*sql.DB
}

func OpenMetrics(path string) (*MetricsDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening metrics database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging metrics database: %w", err)
	}

	db := &MetricsDB{sqlDB}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating metrics database: %w", err)
	}

	return db, nil
}

func (db *MetricsDB) migrate() error {
	_, err := db.Exec(metricsSchema)
	return err
}

const metricsSchema = `
CREATE TABLE IF NOT EXISTS http_requests (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    method      TEXT NOT NULL,
    path        TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    user_id     TEXT,
    timestamp   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_http_req_ts ON http_requests(timestamp);

CREATE TABLE IF NOT EXISTS judge_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    tokens_in   INTEGER,
    tokens_out  INTEGER,
    latency_ms  INTEGER NOT NULL,
    success     INTEGER NOT NULL DEFAULT 1,
    error       TEXT,
    timestamp   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_judge_calls_ts ON judge_calls(timestamp);
`

// RecordHTTPRequest logs an HTTP request metric.
func (db *MetricsDB) RecordHTTPRequest(method, path string, statusCode, durationMs int, userID string) {
	_, _ = db.Exec(`INSERT INTO http_requests (method, path, status_code, duration_ms, user_id)
		VALUES (?, ?, ?, ?, ?)`, method, path, statusCode, durationMs, userID)
}

// RecordJudgeCall logs one judge call. Failures are recorded with their error text.
func (db *MetricsDB) RecordJudgeCall(ctx context.Context, provider, model string, tokensIn, tokensOut int, latency time.Duration, callErr error) {
	success, errMsg := 1, ""
	if callErr != nil {
		success, errMsg = 0, callErr.Error()
	}
	_, _ = db.ExecContext(ctx, `INSERT INTO judge_calls (provider, model, tokens_in, tokens_out, latency_ms, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, provider, model, tokensIn, tokensOut, latency.Milliseconds(), success, errMsg)
}

// JudgeCallStats summarises the judge ledger.
type JudgeCallStats struct {
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func (db *MetricsDB) JudgeStats(ctx context.Context) (*JudgeCallStats, error) {
	st := &JudgeCallStats{}
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(1 - success), 0), COALESCE(AVG(latency_ms), 0)
		FROM judge_calls`).Scan(&st.Calls, &st.Failures, &st.AvgLatencyMs)
	if err != nil {
		return nil, err
	}
	return st, nil
}
