package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencode-ai/agentcore/pkg/types"
)

const messageColumns = `id, session_id, order_seq, role, content, status, metadata, created_at, updated_at`

// MessageTable is one agent's message table. Rows are ordered per session by order_seq.
type MessageTable struct {
	db   *sql.DB
	name string
}

// MessageTable returns the message table called name, creating it on first use.
func (s *Store) MessageTable(ctx context.Context, name string) (*MessageTable, error) {
	if !validTableName(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + name + ` (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			order_seq  INTEGER NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			status     TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + name + `_session_seq ON ` + name + `(session_id, order_seq)`,
		`CREATE INDEX IF NOT EXISTS idx_` + name + `_status ON ` + name + `(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create message table %s: %w", name, err)
		}
	}
	return &MessageTable{db: s.db, name: name}, nil
}

// Name returns the table name.
func (t *MessageTable) Name() string {
	return t.name
}

// NextOrderSeq returns max(order_seq)+1 for the session, or 0 when it has no messages.
func (t *MessageTable) NextOrderSeq(ctx context.Context, sessionID string) (int64, error) {
	return nextOrderSeq(ctx, t.db, t.name, sessionID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nextOrderSeq(ctx context.Context, q querier, table, sessionID string) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(order_seq) + 1, 0) FROM `+table+` WHERE session_id = ?`, sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next order seq: %w", err)
	}
	return seq, nil
}

// CreateUserMessage inserts a user message with status sent.
func (t *MessageTable) CreateUserMessage(ctx context.Context, sessionID string, content types.UserContent) (*types.Message, error) {
	raw, err := types.EncodeUserContent(content)
	if err != nil {
		return nil, fmt.Errorf("encode user content: %w", err)
	}
	return t.insert(ctx, &types.Message{
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   raw,
		Status:    types.StatusSent,
		Metadata:  "{}",
	})
}

// CreateAssistantMessage inserts an assistant message with status pending and empty content.
func (t *MessageTable) CreateAssistantMessage(ctx context.Context, sessionID string, meta types.MessageMetadata) (*types.Message, error) {
	rawMeta, err := types.EncodeMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return t.insert(ctx, &types.Message{
		SessionID: sessionID,
		Role:      types.RoleAssistant,
		Content:   "[]",
		Status:    types.StatusPending,
		Metadata:  rawMeta,
	})
}

// insert allocates the order sequence and writes the row in one immediate transaction.
func (t *MessageTable) insert(ctx context.Context, msg *types.Message) (*types.Message, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextOrderSeq(ctx, tx, t.name, msg.SessionID)
	if err != nil {
		return nil, err
	}

	now := nowMs()
	msg.ID = NewID()
	msg.OrderSeq = seq
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+t.name+` (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.OrderSeq, string(msg.Role), msg.Content, string(msg.Status), msg.Metadata, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return msg, nil
}

// UpdateAssistantContent overwrites the content and metadata of a pending message.
func (t *MessageTable) UpdateAssistantContent(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata) error {
	raw, err := types.EncodeBlocks(blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	rawMeta, err := types.EncodeMetadata(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE `+t.name+` SET content = ?, metadata = ?, updated_at = ? WHERE id = ? AND status = ?`,
		raw, rawMeta, nowMs(), id, string(types.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return t.expectPending(ctx, res, id)
}

// FinalizeAssistantMessage writes the final content and metadata and marks the message sent.
func (t *MessageTable) FinalizeAssistantMessage(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata) error {
	return t.finish(ctx, id, blocks, meta, types.StatusSent)
}

// SetMessageError marks the message as failed. A non-empty errText is appended as an error block.
func (t *MessageTable) SetMessageError(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata, errText string) error {
	if errText != "" {
		blocks = append(blocks[:len(blocks):len(blocks)], types.AssistantBlock{
			Type:      types.BlockError,
			Content:   errText,
			Status:    types.BlockFailed,
			Timestamp: nowMs(),
		})
	}
	return t.finish(ctx, id, blocks, meta, types.StatusError)
}

func (t *MessageTable) finish(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata, status types.MessageStatus) error {
	raw, err := types.EncodeBlocks(blocks)
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}
	rawMeta, err := types.EncodeMetadata(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE `+t.name+` SET content = ?, metadata = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		raw, rawMeta, string(status), nowMs(), id, string(types.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return t.expectPending(ctx, res, id)
}

// expectPending distinguishes a missing row from one that already left pending.
func (t *MessageTable) expectPending(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := t.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotPending
}

// RecoverPendingMessages marks every pending message as error and returns how many were repaired.
func (t *MessageTable) RecoverPendingMessages(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx,
		`UPDATE `+t.name+` SET status = ?, updated_at = ? WHERE status = ?`,
		string(types.StatusError), nowMs(), string(types.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("recover pending: %w", err)
	}
	return res.RowsAffected()
}

func (t *MessageTable) Get(ctx context.Context, id string) (*types.Message, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM `+t.name+` WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListBySession returns the session's messages in order_seq order.
func (t *MessageTable) ListBySession(ctx context.Context, sessionID string) ([]*types.Message, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM `+t.name+` WHERE session_id = ? ORDER BY order_seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	result := []*types.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

// ListIDsBySession returns the session's message ids in order_seq order.
func (t *MessageTable) ListIDsBySession(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id FROM `+t.name+` WHERE session_id = ? ORDER BY order_seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *MessageTable) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// CountPending counts pending messages of a session.
func (t *MessageTable) CountPending(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+t.name+` WHERE session_id = ? AND status = ?`, sessionID, string(types.StatusPending),
	).Scan(&n)
	return n, err
}

func scanMessage(row scanner) (*types.Message, error) {
	var (
		msg    types.Message
		role   string
		status string
	)
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.OrderSeq, &role, &msg.Content, &status, &msg.Metadata, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	msg.Role = types.Role(role)
	msg.Status = types.MessageStatus(status)
	return &msg, nil
}
