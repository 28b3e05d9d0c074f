package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pkg/idgen"
)

const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entry_id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	action TEXT NOT NULL,
	transport TEXT NOT NULL DEFAULT 'http',
	user_id TEXT,
	subject_id TEXT,
	parameters TEXT,
	result TEXT,
	error_message TEXT,
	duration_ms INTEGER,
	status TEXT NOT NULL DEFAULT 'success'
);
CREATE INDEX IF NOT EXISTS idx_audit_log_time ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
`

// SQLiteLogger writes audit entries to the audit_log table asynchronously.
type SQLiteLogger struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewSQLiteLogger(sqlDB *sql.DB) *SQLiteLogger {
	l := &SQLiteLogger{
		db:   sqlDB,
		ch:   make(chan *Entry, 256),
		done: make(chan struct{}),
	}
	go l.flushLoop()
	return l
}

func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(Schema)
	return err
}

func (l *SQLiteLogger) Log(ctx context.Context, entry *Entry) error {
	fillDefaults(entry)
	return l.insert(ctx, entry)
}

// LogAsync queues entry for the flush loop. Entries logged after Close are
// dropped.
func (l *SQLiteLogger) LogAsync(entry *Entry) {
	fillDefaults(entry)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		slog.Warn("audit logger closed, dropping entry", "action", entry.Action)
		return
	}
	select {
	case l.ch <- entry:
	default:
		slog.Warn("audit buffer full, dropping entry", "action", entry.Action)
	}
}

func (l *SQLiteLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

// Recent returns the latest entries for subjectID, newest first.
func (l *SQLiteLogger) Recent(ctx context.Context, subjectID string, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT entry_id, timestamp, action, transport, user_id, subject_id,
			parameters, result, error_message, duration_ms, status
		FROM audit_log WHERE subject_id = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT ?`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var userID, subject, params, result, errMsg sql.NullString
		var dur sql.NullInt64
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.Action, &e.Transport, &userID, &subject,
			&params, &result, &errMsg, &dur, &e.Status); err != nil {
			return nil, err
		}
		e.UserID, e.SubjectID = userID.String, subject.String
		e.Parameters, e.Result, e.Error = params.String, result.String, errMsg.String
		e.DurationMs = dur.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

func fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = "aud_" + idgen.New()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
}

func (l *SQLiteLogger) flushLoop() {
	defer close(l.done)
	batch := make([]*Entry, 0, 32)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-l.ch:
			if !ok {
				l.flushBatch(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= 32 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (l *SQLiteLogger) flushBatch(batch []*Entry) {
	for _, e := range batch {
		if err := l.insert(context.Background(), e); err != nil {
			slog.Error("audit write failed", "error", err, "action", e.Action)
		}
	}
}

func (l *SQLiteLogger) insert(ctx context.Context, e *Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, timestamp, action, transport, user_id, subject_id,
			parameters, result, error_message, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.Action, e.Transport, e.UserID, e.SubjectID,
		e.Parameters, e.Result, e.Error, e.DurationMs, e.Status)
	return err
}

// SlogLogger writes audit entries to a structured logger. Used when the
// pipeline does not run on SQLite.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Log(ctx context.Context, e *Entry) error {
	fillDefaults(e)
	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", e.Action),
		slog.String("transport", e.Transport),
		slog.String("user_id", e.UserID),
		slog.String("subject_id", e.SubjectID),
		slog.String("status", e.Status),
		slog.Int64("duration_ms", e.DurationMs),
		slog.String("error", e.Error),
	)
	return nil
}

func (l *SlogLogger) LogAsync(e *Entry) { _ = l.Log(context.Background(), e) }

func (l *SlogLogger) Close() error { return nil }

// Nop discards every entry.
type Nop struct{}

func (Nop) Log(context.Context, *Entry) error { return nil }
func (Nop) LogAsync(*Entry)                   {}
func (Nop) Close() error                      { return nil }
