// CLAUDE:SUMMARY Submission DB operations (SQLite) — pending insert, filtered listing, guarded terminal transitions with task/user counters
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const submissionColumns = `id, task_id, user_id, submission_data, status, ai_score, is_valid,
	feedback, reward_earned, model_used, verification_time_ms, verification_mode,
	created_at, verified_at`

// CreateSubmission inserts s as pending with empty result fields. The
// capacity check and the insert are one statement.
func (db *DB) CreateSubmission(ctx context.Context, s *Submission) error {
	data, err := encodeJSON(s.SubmissionData)
	if err != nil {
		return fmt.Errorf("encoding submission data: %w", err)
	}
	resetPending(s)

	res, err := db.ExecContext(ctx, `
		INSERT INTO submissions (id, task_id, user_id, submission_data, status, created_at)
		SELECT ?, t.id, ?, ?, 'pending', ?
		FROM tasks t
		WHERE t.id = ? AND (t.max_submissions IS NULL OR
			t.current_submission_count +
			(SELECT COUNT(*) FROM submissions p WHERE p.task_id = t.id AND p.status = 'pending')
			< t.max_submissions)`,
		s.ID, s.UserID, data, toMillis(s.CreatedAt), s.TaskID)
	if err != nil {
		return fmt.Errorf("creating submission: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		var one int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, s.TaskID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrTaskFull
	}
	return nil
}

func (db *DB) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	return getSubmission(ctx, db.DB, id)
}

func (db *DB) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]*Submission, error) {
	var where []string
	var args []any
	if f.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	q := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, rowid ASC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit, 50, 500), max(f.Offset, 0))

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (db *DB) CompleteSubmission(ctx context.Context, c Completion) (*Submission, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning completion: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE submissions SET status = 'completed', ai_score = ?, is_valid = ?, feedback = ?,
			reward_earned = ?, model_used = ?, verification_time_ms = ?, verification_mode = ?,
			verified_at = ?
		WHERE id = ? AND status = 'pending'`,
		c.AIScore, boolToInt(c.IsValid), c.Feedback, c.RewardEarned, c.ModelUsed,
		c.VerificationTimeMs, c.VerificationMode, toMillis(c.VerifiedAt), c.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("completing submission: %w", err)
	}
	if err := guardPending(ctx, tx, res, c.SubmissionID); err != nil {
		return nil, err
	}

	var taskID, userID string
	if err := tx.QueryRowContext(ctx, `SELECT task_id, user_id FROM submissions WHERE id = ?`,
		c.SubmissionID).Scan(&taskID, &userID); err != nil {
		return nil, fmt.Errorf("loading submission owner: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET current_submission_count = current_submission_count + 1 WHERE id = ?`,
		taskID); err != nil {
		return nil, fmt.Errorf("incrementing submission count: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_tasks_completed = total_tasks_completed + 1,
			total_rewards_earned = total_rewards_earned + ?
		WHERE id = ?`, c.RewardEarned, userID); err != nil {
		return nil, fmt.Errorf("crediting user: %w", err)
	}

	s, err := getSubmission(ctx, tx, c.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}
	return s, nil
}

func (db *DB) FailSubmission(ctx context.Context, f Failure) (*Submission, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning failure: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE submissions SET status = 'failed', ai_score = 0, is_valid = 0, feedback = ?,
			reward_earned = 0, verification_mode = ?, verified_at = ?
		WHERE id = ? AND status = 'pending'`,
		f.Feedback, f.VerificationMode, toMillis(f.VerifiedAt), f.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("failing submission: %w", err)
	}
	if err := guardPending(ctx, tx, res, f.SubmissionID); err != nil {
		return nil, err
	}

	s, err := getSubmission(ctx, tx, f.SubmissionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing failure: %w", err)
	}
	return s, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// guardPending turns a zero-row guarded update into ErrNotFound or
// ErrAlreadyTerminal.
func guardPending(ctx context.Context, q querier, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

func getSubmission(ctx context.Context, q querier, id string) (*Submission, error) {
	s, err := scanSubmission(q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func scanSubmission(s interface{ Scan(...any) error }) (*Submission, error) {
	sub := &Submission{}
	var data string
	var aiScore sql.NullFloat64
	var isValid sql.NullBool
	var feedback, modelUsed, mode sql.NullString
	var verifyMs, verifiedAt sql.NullInt64
	var createdAt int64
	err := s.Scan(
		&sub.ID, &sub.TaskID, &sub.UserID, &data, &sub.Status, &aiScore, &isValid,
		&feedback, &sub.RewardEarned, &modelUsed, &verifyMs, &mode,
		&createdAt, &verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if sub.SubmissionData, err = decodeJSON(data); err != nil {
		return nil, fmt.Errorf("decoding submission data: %w", err)
	}
	if aiScore.Valid {
		sub.AIScore = &aiScore.Float64
	}
	if isValid.Valid {
		sub.IsValid = &isValid.Bool
	}
	if feedback.Valid {
		sub.Feedback = &feedback.String
	}
	if modelUsed.Valid {
		sub.ModelUsed = &modelUsed.String
	}
	if verifyMs.Valid {
		sub.VerificationTimeMs = &verifyMs.Int64
	}
	if mode.Valid {
		sub.VerificationMode = &mode.String
	}
	sub.CreatedAt = fromMillis(createdAt)
	if verifiedAt.Valid {
		t := fromMillis(verifiedAt.Int64)
		sub.VerifiedAt = &t
	}
	return sub, nil
}

// resetPending prepares s for insertion: fresh ID when missing, pending
// status and no result fields.
func resetPending(s *Submission) {
	if s.ID == "" {
		s.ID = NewID()
	}
	s.Status = SubmissionPending
	s.AIScore, s.IsValid, s.Feedback = nil, nil, nil
	s.ModelUsed, s.VerificationTimeMs, s.VerificationMode, s.VerifiedAt = nil, nil, nil, nil
	s.RewardEarned = 0
	s.CreatedAt = time.Now().UTC()
}
