// CLAUDE:SUMMARY User DB operations (SQLite) — get-or-create by wallet, lookup by id or wallet
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, wallet_address, username, reputation_score,
	total_tasks_completed, total_rewards_earned, created_at`

// GetOrCreateUser returns the user owning wallet, creating it with the
// default reputation on first sight.
func (db *DB) GetOrCreateUser(ctx context.Context, wallet string) (*User, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, wallet_address, username, reputation_score, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO NOTHING`,
		NewID(), wallet, usernameFor(wallet), DefaultReputation, toMillis(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return db.GetUserByWallet(ctx, wallet)
}

func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (db *DB) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = ?`, wallet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(s interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	var createdAt int64
	err := s.Scan(&u.ID, &u.WalletAddress, &u.Username, &u.ReputationScore,
		&u.TotalTasksCompleted, &u.TotalRewardsEarned, &createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}
