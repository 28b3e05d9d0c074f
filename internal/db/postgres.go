// CLAUDE:SUMMARY Postgres store (pgx pool) — same Store contract as SQLite, row locks for reputation and terminal transitions
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists the mining pipeline in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// OpenPostgres connects and initialises the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgSchema)
	return err
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  wallet_address TEXT UNIQUE NOT NULL,
  username TEXT NOT NULL,
  reputation_score INT NOT NULL DEFAULT 50 CHECK (reputation_score BETWEEN 0 AND 100),
  total_tasks_completed INT NOT NULL DEFAULT 0,
  total_rewards_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  developer_id TEXT NOT NULL REFERENCES users(id),
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  task_type TEXT NOT NULL,
  difficulty TEXT NOT NULL DEFAULT 'medium',
  reward_per_submission DOUBLE PRECISION NOT NULL,
  total_budget DOUBLE PRECISION NOT NULL,
  max_submissions INT,
  verification_criteria JSONB NOT NULL DEFAULT '{}',
  instructions JSONB NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'active',
  current_submission_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at);
CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL REFERENCES tasks(id),
  user_id TEXT NOT NULL REFERENCES users(id),
  submission_data JSONB NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'pending',
  ai_score DOUBLE PRECISION,
  is_valid BOOLEAN,
  feedback TEXT,
  reward_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
  model_used TEXT,
  verification_time_ms BIGINT,
  verification_mode TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  verified_at TIMESTAMPTZ,
  CHECK ((ai_score IS NULL) = (is_valid IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_submissions_task ON submissions(task_id, created_at);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE TABLE IF NOT EXISTS reputation_events (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  submission_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  delta INT NOT NULL,
  old_score INT NOT NULL,
  new_score INT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_reputation_events_user ON reputation_events(user_id, created_at);
`

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) CreateTask(ctx context.Context, t *Task) error {
	criteria, err := encodeJSON(t.VerificationCriteria)
	if err != nil {
		return fmt.Errorf("encoding verification criteria: %w", err)
	}
	instructions, err := encodeJSON(t.Instructions)
	if err != nil {
		return fmt.Errorf("encoding instructions: %w", err)
	}
	t.ID = NewID()
	t.Status = TaskStatusActive
	t.CurrentSubmissionCount = 0
	t.CreatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
INSERT INTO tasks (id, developer_id, title, description, task_type, difficulty,
  reward_per_submission, total_budget, max_submissions, verification_criteria,
  instructions, status, current_submission_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb,$12,0,$13)`,
		t.ID, t.DeveloperID, t.Title, t.Description, t.TaskType, t.Difficulty,
		t.RewardPerSubmission, t.TotalBudget, t.MaxSubmissions, criteria,
		instructions, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

func (s *PGStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := pgScanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PGStore) ListActiveTasks(ctx context.Context, limit, offset int) ([]*Task, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+taskColumns+` FROM tasks
WHERE status = 'active'
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`, clampLimit(limit, 50, 200), max(offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := pgScanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PGStore) UpdateTaskStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) GetOrCreateUser(ctx context.Context, wallet string) (*User, error) {
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (id, wallet_address, username, reputation_score, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (wallet_address) DO NOTHING`,
		NewID(), wallet, usernameFor(wallet), DefaultReputation, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return s.GetUserByWallet(ctx, wallet)
}

func (s *PGStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `id`, id)
}

func (s *PGStore) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	return s.getUser(ctx, `wallet_address`, wallet)
}

func (s *PGStore) getUser(ctx context.Context, col, val string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+col+` = $1`, val).Scan(
		&u.ID, &u.WalletAddress, &u.Username, &u.ReputationScore,
		&u.TotalTasksCompleted, &u.TotalRewardsEarned, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateSubmission locks the task row so concurrent admissions see each
// other's pending submissions.
func (s *PGStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	data, err := encodeJSON(sub.SubmissionData)
	if err != nil {
		return fmt.Errorf("encoding submission data: %w", err)
	}
	resetPending(sub)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning submission: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxSubs *int
	var count int
	err = tx.QueryRow(ctx, `SELECT max_submissions, current_submission_count FROM tasks WHERE id = $1 FOR UPDATE`,
		sub.TaskID).Scan(&maxSubs, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking task: %w", err)
	}
	if maxSubs != nil {
		var pending int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE task_id = $1 AND status = 'pending'`,
			sub.TaskID).Scan(&pending); err != nil {
			return fmt.Errorf("counting pending submissions: %w", err)
		}
		if count+pending >= *maxSubs {
			return ErrTaskFull
		}
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO submissions (id, task_id, user_id, submission_data, status, created_at)
VALUES ($1, $2, $3, $4::jsonb, 'pending', $5)`,
		sub.ID, sub.TaskID, sub.UserID, data, sub.CreatedAt); err != nil {
		return fmt.Errorf("creating submission: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing submission: %w", err)
	}
	return nil
}

func (s *PGStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	return pgGetSubmission(ctx, s.pool, id)
}

func (s *PGStore) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]*Submission, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.TaskID != "" {
		add("task_id = $%d", f.TaskID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	q := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(f.Limit, 50, 500), max(f.Offset, 0))
	q += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := pgScanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PGStore) CompleteSubmission(ctx context.Context, c Completion) (*Submission, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning completion: %w", err)
	}
	defer tx.Rollback(ctx)

	var taskID, userID string
	err = tx.QueryRow(ctx, `
UPDATE submissions SET status = 'completed', ai_score = $1, is_valid = $2, feedback = $3,
  reward_earned = $4, model_used = $5, verification_time_ms = $6, verification_mode = $7,
  verified_at = $8
WHERE id = $9 AND status = 'pending'
RETURNING task_id, user_id`,
		c.AIScore, c.IsValid, c.Feedback, c.RewardEarned, c.ModelUsed,
		c.VerificationTimeMs, c.VerificationMode, c.VerifiedAt.UTC(), c.SubmissionID).Scan(&taskID, &userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgGuardPending(ctx, tx, c.SubmissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("completing submission: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE tasks SET current_submission_count = current_submission_count + 1 WHERE id = $1`,
		taskID); err != nil {
		return nil, fmt.Errorf("incrementing submission count: %w", err)
	}
	if _, err := tx.Exec(ctx, `
UPDATE users SET total_tasks_completed = total_tasks_completed + 1,
  total_rewards_earned = total_rewards_earned + $1
WHERE id = $2`, c.RewardEarned, userID); err != nil {
		return nil, fmt.Errorf("crediting user: %w", err)
	}

	sub, err := pgGetSubmission(ctx, tx, c.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}
	return sub, nil
}

func (s *PGStore) FailSubmission(ctx context.Context, f Failure) (*Submission, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning failure: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE submissions SET status = 'failed', ai_score = 0, is_valid = false, feedback = $1,
  reward_earned = 0, verification_mode = $2, verified_at = $3
WHERE id = $4 AND status = 'pending'`,
		f.Feedback, f.VerificationMode, f.VerifiedAt.UTC(), f.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("failing submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, pgGuardPending(ctx, tx, f.SubmissionID)
	}

	sub, err := pgGetSubmission(ctx, tx, f.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing failure: %w", err)
	}
	return sub, nil
}

func (s *PGStore) ApplyReputation(ctx context.Context, c ReputationChange) (*ReputationEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning reputation update: %w", err)
	}
	defer tx.Rollback(ctx)

	var old int
	err = tx.QueryRow(ctx, `SELECT reputation_score FROM users WHERE id = $1 FOR UPDATE`, c.UserID).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading reputation: %w", err)
	}

	ev := newEvent(c, old)
	if _, err := tx.Exec(ctx, `UPDATE users SET reputation_score = $1 WHERE id = $2`, ev.NewScore, c.UserID); err != nil {
		return nil, fmt.Errorf("writing reputation: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO reputation_events (id, user_id, submission_id, event_type, reason, delta, old_score, new_score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ev.ID, ev.UserID, ev.SubmissionID, ev.EventType, ev.Reason, ev.Delta,
		ev.OldScore, ev.NewScore, ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("recording reputation event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing reputation update: %w", err)
	}
	return ev, nil
}

func (s *PGStore) ListReputationEvents(ctx context.Context, userID string, limit, offset int) ([]*ReputationEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, submission_id, event_type, reason, delta, old_score, new_score, created_at
FROM reputation_events WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, userID, clampLimit(limit, 50, 500), max(offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*ReputationEvent
	for rows.Next() {
		ev := &ReputationEvent{}
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.SubmissionID, &ev.EventType, &ev.Reason,
			&ev.Delta, &ev.OldScore, &ev.NewScore, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgGuardPending(ctx context.Context, q pgQuerier, id string) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

func pgGetSubmission(ctx context.Context, q pgQuerier, id string) (*Submission, error) {
	sub, err := pgScanSubmission(q.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

func pgScanTask(row pgx.Row) (*Task, error) {
	t := &Task{}
	var criteria, instructions []byte
	err := row.Scan(
		&t.ID, &t.DeveloperID, &t.Title, &t.Description, &t.TaskType, &t.Difficulty,
		&t.RewardPerSubmission, &t.TotalBudget, &t.MaxSubmissions, &criteria,
		&instructions, &t.Status, &t.CurrentSubmissionCount, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.VerificationCriteria, err = decodeJSON(string(criteria)); err != nil {
		return nil, fmt.Errorf("decoding verification criteria: %w", err)
	}
	if t.Instructions, err = decodeJSON(string(instructions)); err != nil {
		return nil, fmt.Errorf("decoding instructions: %w", err)
	}
	return t, nil
}

func pgScanSubmission(row pgx.Row) (*Submission, error) {
	sub := &Submission{}
	var data []byte
	err := row.Scan(
		&sub.ID, &sub.TaskID, &sub.UserID, &data, &sub.Status, &sub.AIScore, &sub.IsValid,
		&sub.Feedback, &sub.RewardEarned, &sub.ModelUsed, &sub.VerificationTimeMs, &sub.VerificationMode,
		&sub.CreatedAt, &sub.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if sub.SubmissionData, err = decodeJSON(string(data)); err != nil {
		return nil, fmt.Errorf("decoding submission data: %w", err)
	}
	return sub, nil
}
