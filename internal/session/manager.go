package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = fmt.Errorf("session not found: %w", storage.ErrNotFound)

// DefaultTitle is used when a session is created without title or initial message.
const DefaultTitle = "New Chat"

const titleRunes = 40

// Store is the part of the relational store the Manager reads and writes.
type Store interface {
	CreateSession(ctx context.Context, sess *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error)
	UpdateSession(ctx context.Context, sess *types.Session) error
	TouchSession(ctx context.Context, id string, updatedAt int64) error
	DeleteSession(ctx context.Context, id string) error
}

// Manager is the session CRUD layer.
type Manager struct {
	store Store
	now   func() time.Time

	mu      sync.RWMutex
	windows map[string]string
}

// NewManager creates a session manager over store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:   store,
		now:     time.Now,
		windows: make(map[string]string),
	}
}

// CreateInput describes a new session row.
type CreateInput struct {
	AgentID    string
	Title      string
	ProjectDir string
}

// Create allocates a fresh id and inserts the session row.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*types.Session, error) {
	now := m.now().UnixMilli()
	sess := &types.Session{
		ID:         storage.NewID(),
		AgentID:    in.AgentID,
		Title:      in.Title,
		ProjectDir: in.ProjectDir,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if sess.Title == "" {
		sess.Title = DefaultTitle
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*types.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// List returns sessions matching filter, most recently updated first.
func (m *Manager) List(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error) {
	return m.store.ListSessions(ctx, filter)
}

// Rename sets the title and bumps updatedAt.
func (m *Manager) Rename(ctx context.Context, id, title string) (*types.Session, error) {
	return m.update(ctx, id, func(s *types.Session) { s.Title = title })
}

// SetPinned pins or unpins a session and bumps updatedAt.
func (m *Manager) SetPinned(ctx context.Context, id string, pinned bool) (*types.Session, error) {
	return m.update(ctx, id, func(s *types.Session) { s.IsPinned = pinned })
}

func (m *Manager) update(ctx context.Context, id string, fn func(*types.Session)) (*types.Session, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(sess)
	sess.UpdatedAt = m.stamp(sess.UpdatedAt)
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}
	return sess, nil
}

// Touch bumps updatedAt so the session sorts first.
func (m *Manager) Touch(ctx context.Context, id string) error {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	err = m.store.TouchSession(ctx, id, m.stamp(sess.UpdatedAt))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return err
}

// stamp returns a timestamp strictly after prev, so updates always reorder.
func (m *Manager) stamp(prev int64) int64 {
	now := m.now().UnixMilli()
	if now <= prev {
		now = prev + 1
	}
	return now
}

// Delete removes the session row and every window binding to it. It returns the
// windows that were unbound.
func (m *Manager) Delete(ctx context.Context, id string) ([]string, error) {
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return nil, err
	}
	return m.unbindSession(id), nil
}

// Bind makes sessionID the active session of windowID.
func (m *Manager) Bind(windowID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows[windowID] = sessionID
}

// Unbind clears the active session of windowID. It reports whether one was bound.
func (m *Manager) Unbind(windowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.windows[windowID]
	delete(m.windows, windowID)
	return ok
}

// Active returns the session bound to windowID.
func (m *Manager) Active(windowID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.windows[windowID]
	return id, ok
}

// WindowsFor returns the windows bound to sessionID, sorted.
func (m *Manager) WindowsFor(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for w, s := range m.windows {
		if s == sessionID {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) unbindSession(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for w, s := range m.windows {
		if s == sessionID {
			out = append(out, w)
			delete(m.windows, w)
		}
	}
	sort.Strings(out)
	return out
}

// TitleFrom derives a session title from the first user message.
func TitleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return DefaultTitle
	}
	r := []rune(text)
	if len(r) > titleRunes {
		return string(r[:titleRunes])
	}
	return text
}
