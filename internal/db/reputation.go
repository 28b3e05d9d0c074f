// CLAUDE:SUMMARY Reputation DB operations (SQLite) — atomic score read/clamp/write with append-only event, history listing
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (db *DB) ApplyReputation(ctx context.Context, c ReputationChange) (*ReputationEvent, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning reputation update: %w", err)
	}
	defer tx.Rollback()

	var old int
	err = tx.QueryRowContext(ctx, `SELECT reputation_score FROM users WHERE id = ?`, c.UserID).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading reputation: %w", err)
	}

	ev := newEvent(c, old)
	if _, err := tx.ExecContext(ctx, `UPDATE users SET reputation_score = ? WHERE id = ?`,
		ev.NewScore, c.UserID); err != nil {
		return nil, fmt.Errorf("writing reputation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reputation_events (id, user_id, submission_id, event_type, reason, delta,
			old_score, new_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.SubmissionID, ev.EventType, ev.Reason, ev.Delta,
		ev.OldScore, ev.NewScore, toMillis(ev.CreatedAt)); err != nil {
		return nil, fmt.Errorf("recording reputation event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reputation update: %w", err)
	}
	return ev, nil
}

// ListReputationEvents returns a user's events, newest first.
func (db *DB) ListReputationEvents(ctx context.Context, userID string, limit, offset int) ([]*ReputationEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, submission_id, event_type, reason, delta, old_score, new_score, created_at
		FROM reputation_events WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, userID, clampLimit(limit, 50, 500), max(offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*ReputationEvent
	for rows.Next() {
		ev := &ReputationEvent{}
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.SubmissionID, &ev.EventType, &ev.Reason,
			&ev.Delta, &ev.OldScore, &ev.NewScore, &createdAt); err != nil {
			return nil, err
		}
		ev.CreatedAt = fromMillis(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// newEvent computes the new score for c starting from old and builds the
// event record. Without a Next rule the delta is clamped to the score range.
func newEvent(c ReputationChange, old int) *ReputationEvent {
	next := c.Next
	if next == nil {
		next = func(o int) int { return min(max(o+c.Delta, MinReputation), MaxReputation) }
	}
	return &ReputationEvent{
		ID:           NewID(),
		UserID:       c.UserID,
		SubmissionID: c.SubmissionID,
		EventType:    c.EventType,
		Reason:       c.Reason,
		Delta:        c.Delta,
		OldScore:     old,
		NewScore:     next(old),
		CreatedAt:    time.Now().UTC(),
	}
}
