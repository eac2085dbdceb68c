package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists sessions in a single table, one row per user id.
// Durability per Put comes from the database commit.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sessionRow struct {
	UserID string `db:"user_id"`
	Session
}

const upsertSessionQuery = `
	INSERT INTO sessions (user_id, token, project, preference, next_action, task_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (user_id) DO UPDATE SET
		token = EXCLUDED.token,
		project = EXCLUDED.project,
		preference = EXCLUDED.preference,
		next_action = EXCLUDED.next_action,
		task_id = EXCLUDED.task_id,
		updated_at = now()`

// Get returns the stored session or a default one for unknown users.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, token, project, preference, next_action, task_id
		 FROM sessions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("session pg: get %s: %w", userID, err)
	}
	return row.Session, nil
}

// Put upserts the session row.
func (s *PostgresStore) Put(ctx context.Context, userID string, sess Session) error {
	_, err := s.db.ExecContext(ctx, upsertSessionQuery,
		userID, sess.Token, sess.ProjectID, sess.Preference, string(sess.NextAction), sess.LastTaskID)
	if err != nil {
		return fmt.Errorf("session pg: put %s: %w", userID, err)
	}
	return nil
}

// All returns a snapshot of every stored session.
func (s *PostgresStore) All(ctx context.Context) (map[string]Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, token, project, preference, next_action, task_id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("session pg: all: %w", err)
	}
	out := make(map[string]Session, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Session
	}
	return out, nil
}

// Replace swaps the entire table contents inside one transaction.
func (s *PostgresStore) Replace(ctx context.Context, sessions map[string]Session) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session pg: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("session pg: clear: %w", err)
	}
	for userID, sess := range sessions {
		if _, err := tx.ExecContext(ctx, upsertSessionQuery,
			userID, sess.Token, sess.ProjectID, sess.Preference, string(sess.NextAction), sess.LastTaskID); err != nil {
			return fmt.Errorf("session pg: insert %s: %w", userID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session pg: commit replace: %w", err)
	}
	return nil
}
