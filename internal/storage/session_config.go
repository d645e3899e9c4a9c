package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// SessionConfigTable holds one agent's per-session provider and model choice.
type SessionConfigTable struct {
	db   *sql.DB
	name string
}

// SessionConfigTable returns the session config table called name, creating it on first use.
func (s *Store) SessionConfigTable(ctx context.Context, name string) (*SessionConfigTable, error) {
	if !validTableName(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+name+` (
		id          TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		model_id    TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create session config table %s: %w", name, err)
	}
	return &SessionConfigTable{db: s.db, name: name}, nil
}

// Put inserts or replaces the config of a session.
func (t *SessionConfigTable) Put(ctx context.Context, sessionID string, cfg types.SessionConfig) error {
	now := nowMs()
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO `+t.name+` (id, provider_id, model_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET provider_id = excluded.provider_id, model_id = excluded.model_id, updated_at = excluded.updated_at`,
		sessionID, cfg.ProviderID, cfg.ModelID, now, now,
	)
	if err != nil {
		return fmt.Errorf("put session config: %w", err)
	}
	return nil
}

func (t *SessionConfigTable) Get(ctx context.Context, sessionID string) (*types.SessionConfig, error) {
	var cfg types.SessionConfig
	err := t.db.QueryRowContext(ctx,
		`SELECT provider_id, model_id FROM `+t.name+` WHERE id = ?`, sessionID,
	).Scan(&cfg.ProviderID, &cfg.ModelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session config: %w", err)
	}
	return &cfg, nil
}

func (t *SessionConfigTable) Delete(ctx context.Context, sessionID string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session config: %w", err)
	}
	return nil
}
