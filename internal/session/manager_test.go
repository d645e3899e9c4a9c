package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/pkg/types"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewManager(store)
	clock := time.UnixMilli(1_700_000_000_000)
	m.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return m
}

func TestManager_CreateGet(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, CreateInput{AgentID: "deepchat"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, DefaultTitle, sess.Title)
	assert.Empty(t, sess.ProjectDir)
	assert.Equal(t, sess.CreatedAt, sess.UpdatedAt)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManager_ListOrderAndFilter(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	a, err := m.Create(ctx, CreateInput{AgentID: "deepchat", Title: "a", ProjectDir: "/p"})
	require.NoError(t, err)
	b, err := m.Create(ctx, CreateInput{AgentID: "deepchat", Title: "b"})
	require.NoError(t, err)
	c, err := m.Create(ctx, CreateInput{AgentID: "other", Title: "c", ProjectDir: "/p"})
	require.NoError(t, err)

	list, err := m.List(ctx, types.SessionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(list))

	require.NoError(t, m.Touch(ctx, a.ID))
	list, err = m.List(ctx, types.SessionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID, b.ID}, ids(list))

	list, err = m.List(ctx, types.SessionFilter{AgentID: "deepchat"})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(list))

	list, err = m.List(ctx, types.SessionFilter{AgentID: "deepchat", ProjectDir: "/p"})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids(list))
}

func TestManager_RenamePin(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, CreateInput{AgentID: "deepchat"})
	require.NoError(t, err)

	renamed, err := m.Rename(ctx, sess.ID, "Plans")
	require.NoError(t, err)
	assert.Equal(t, "Plans", renamed.Title)
	assert.Greater(t, renamed.UpdatedAt, sess.UpdatedAt)

	pinned, err := m.SetPinned(ctx, sess.ID, true)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	assert.Greater(t, pinned.UpdatedAt, renamed.UpdatedAt)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, pinned, got)

	_, err = m.Rename(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Touch(ctx, "missing"), ErrSessionNotFound)
}

func TestManager_WindowBinding(t *testing.T) {
	m := newManager(t)

	_, ok := m.Active("w1")
	assert.False(t, ok)

	m.Bind("w1", "s1")
	m.Bind("w1", "s2")
	m.Bind("w2", "s2")
	m.Bind("w3", "s1")

	id, ok := m.Active("w1")
	assert.True(t, ok)
	assert.Equal(t, "s2", id)
	assert.Equal(t, []string{"w1", "w2"}, m.WindowsFor("s2"))

	assert.True(t, m.Unbind("w3"))
	assert.False(t, m.Unbind("w3"))
	assert.Empty(t, m.WindowsFor("s1"))
}

func TestManager_DeleteUnbindsWindows(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, CreateInput{AgentID: "deepchat"})
	require.NoError(t, err)
	m.Bind("w2", sess.ID)
	m.Bind("w1", sess.ID)
	m.Bind("w3", "other")

	unbound, err := m.Delete(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2"}, unbound)

	_, err = m.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	id, ok := m.Active("w3")
	assert.True(t, ok)
	assert.Equal(t, "other", id)
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, DefaultTitle, TitleFrom(""))
	assert.Equal(t, DefaultTitle, TitleFrom("  \n\t "))
	assert.Equal(t, "hello world", TitleFrom("  hello\n  world "))
	long := strings.Repeat("é", 50)
	assert.Equal(t, strings.Repeat("é", 40), TitleFrom(long))
}

func ids(list []*types.Session) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}
