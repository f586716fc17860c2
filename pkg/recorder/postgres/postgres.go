// Package postgres provides a PostgreSQL recorder.Store built on pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sensei-dev/sensei/pkg/recorder"
)

// Config holds the connection settings. Zero pool values mean 10
// connections, 1 idle connection and a 5 minute connection lifetime.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration

	// MigrateOnStart applies pending schema migrations in New.
	MigrateOnStart bool
}

func (c Config) pool() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	pc.MaxConns = orDefault(c.MaxConns, 10)
	pc.MinConns = orDefault(c.MinConns, 1)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, 5*time.Minute)
	return pc, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Store is a PostgreSQL-backed recorder.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ recorder.Store = (*Store)(nil)

// New connects and verifies the connection. With MigrateOnStart the schema
// is brought up to date before New returns.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := cfg.pool()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	s := &Store{pool: pool}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

const insertInteraction = `
INSERT INTO interactions (id, session_id, subject, provider, user_message, ai_response, workflow_id, action, failed, created_at)
VALUES (@id, @session_id, @subject, @provider, @user_message, @ai_response, NULLIF(@workflow_id, ''), NULLIF(@action, ''), @failed, @created_at)`

// Save inserts one interaction. A reused ID fails with recorder.ErrConflict.
func (s *Store) Save(ctx context.Context, it recorder.Interaction) error {
	_, err := s.pool.Exec(ctx, insertInteraction, pgx.NamedArgs{
		"id":           it.ID,
		"session_id":   it.SessionID,
		"subject":      it.Subject,
		"provider":     it.Provider,
		"user_message": it.UserMessage,
		"ai_response":  it.AIResponse,
		"workflow_id":  it.WorkflowID,
		"action":       it.Action,
		"failed":       it.Failed,
		"created_at":   it.CreatedAt,
	})
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return recorder.ErrConflict
	case err != nil:
		return fmt.Errorf("saving interaction %s: %w", it.ID, err)
	}
	return nil
}

// The inner query picks the newest rows so LIMIT keeps the latest ones.
// LIMIT NULL means no limit.
const listInteractions = `
SELECT id, session_id, subject, provider, user_message, ai_response, workflow_id, action, failed, created_at
FROM (
	SELECT id, session_id, subject, provider, user_message, ai_response,
	       COALESCE(workflow_id, '') AS workflow_id, COALESCE(action, '') AS action, failed, created_at
	FROM interactions
	WHERE session_id = @session_id AND (@subject = '' OR subject = @subject)
	ORDER BY created_at DESC, id DESC
	LIMIT @limit
) newest
ORDER BY created_at, id`

// ListBySession returns a session's interactions oldest first.
func (s *Store) ListBySession(ctx context.Context, subject, sessionID string, limit int) ([]recorder.Interaction, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, listInteractions, pgx.NamedArgs{
		"session_id": sessionID,
		"subject":    subject,
		"limit":      lim,
	})
	if err != nil {
		return nil, fmt.Errorf("listing session %s: %w", sessionID, err)
	}
	out, err := pgx.CollectRows(rows, scanInteraction)
	if err != nil {
		return nil, fmt.Errorf("listing session %s: %w", sessionID, err)
	}
	if out == nil {
		out = []recorder.Interaction{}
	}
	return out, nil
}

func scanInteraction(row pgx.CollectableRow) (recorder.Interaction, error) {
	var it recorder.Interaction
	err := row.Scan(&it.ID, &it.SessionID, &it.Subject, &it.Provider, &it.UserMessage,
		&it.AIResponse, &it.WorkflowID, &it.Action, &it.Failed, &it.CreatedAt)
	return it, err
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
