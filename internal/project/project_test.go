package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootGitRepository(t *testing.T) {
	ClearCache()
	repo := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0755))
	nested := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := Root(nested)
	require.NoError(t, err)
	assert.Equal(t, repo, root)
}

func TestRootLinkedWorktree(t *testing.T) {
	ClearCache()
	wt := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: /elsewhere/.git/worktrees/wt\n"), 0644))

	root, err := Root(wt)
	require.NoError(t, err)
	assert.Equal(t, wt, root)
}

func TestRootPlainDirectory(t *testing.T) {
	ClearCache()
	dir := t.TempDir()

	root, err := Root(dir)
	require.NoError(t, err)
	if findWorktree(dir) == "" {
		assert.Equal(t, dir, root)
	}
}

func TestRootIgnoresStrayGitFile(t *testing.T) {
	ClearCache()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git"), []byte("not a pointer"), 0644))

	assert.NotEqual(t, dir, findWorktree(dir))
}
