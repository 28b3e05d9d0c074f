// CLAUDE:SUMMARY Task DB operations (SQLite) — create, get, list active with pagination, close
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskColumns = `id, developer_id, title, description, task_type, difficulty,
	reward_per_submission, total_budget, max_submissions, verification_criteria,
	instructions, status, current_submission_count, created_at`

// CreateTask inserts t, assigning its ID, status and creation time.
func (db *DB) CreateTask(ctx context.Context, t *Task) error {
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

	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (id, developer_id, title, description, task_type, difficulty,
			reward_per_submission, total_budget, max_submissions, verification_criteria,
			instructions, status, current_submission_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		t.ID, t.DeveloperID, t.Title, t.Description, t.TaskType, t.Difficulty,
		t.RewardPerSubmission, t.TotalBudget, t.MaxSubmissions, criteria,
		instructions, t.Status, toMillis(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

func (db *DB) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListActiveTasks returns active tasks, newest first.
func (db *DB) ListActiveTasks(ctx context.Context, limit, offset int) ([]*Task, error) {
	limit = clampLimit(limit, 50, 200)
	if offset < 0 {
		offset = 0
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'active'
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateTaskStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(s interface{ Scan(...any) error }) (*Task, error) {
	t := &Task{}
	var maxSubs sql.NullInt64
	var criteria, instructions string
	var createdAt int64
	err := s.Scan(
		&t.ID, &t.DeveloperID, &t.Title, &t.Description, &t.TaskType, &t.Difficulty,
		&t.RewardPerSubmission, &t.TotalBudget, &maxSubs, &criteria,
		&instructions, &t.Status, &t.CurrentSubmissionCount, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if maxSubs.Valid {
		n := int(maxSubs.Int64)
		t.MaxSubmissions = &n
	}
	if t.VerificationCriteria, err = decodeJSON(criteria); err != nil {
		return nil, fmt.Errorf("decoding verification criteria: %w", err)
	}
	if t.Instructions, err = decodeJSON(instructions); err != nil {
		return nil, fmt.Errorf("decoding instructions: %w", err)
	}
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}
