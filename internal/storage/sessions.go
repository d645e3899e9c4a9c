package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/opencode-ai/agentcore/pkg/types"
)

const sessionColumns = `id, agent_id, title, project_dir, is_pinned, created_at, updated_at`

// CreateSession inserts a session row. Zero timestamps are filled with the current time.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	if sess.CreatedAt == 0 {
		sess.CreatedAt = nowMs()
	}
	if sess.UpdatedAt == 0 {
		sess.UpdatedAt = sess.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.AgentID, sess.Title, sess.ProjectDir, sess.IsPinned, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions matching filter, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error) {
	var (
		where []string
		args  []any
	)
	if filter.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.ProjectDir != "" {
		where = append(where, "project_dir = ?")
		args = append(args, filter.ProjectDir)
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	result := []*types.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

// UpdateSession rewrites the mutable fields of a session row.
func (s *Store) UpdateSession(ctx context.Context, sess *types.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, project_dir = ?, is_pinned = ?, updated_at = ? WHERE id = ?`,
		sess.Title, sess.ProjectDir, sess.IsPinned, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectOne(res)
}

// TouchSession bumps updated_at.
func (s *Store) TouchSession(ctx context.Context, id string, updatedAt int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, updatedAt, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return expectOne(res)
}

// DeleteSession removes a session row. Deleting a missing row is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*types.Session, error) {
	var sess types.Session
	if err := row.Scan(&sess.ID, &sess.AgentID, &sess.Title, &sess.ProjectDir, &sess.IsPinned, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
