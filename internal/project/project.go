// Package project resolves the project directory that sessions are grouped by.
package project

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]string)
)

// Root returns the directory sessions started in directory belong to: the top of the
// enclosing git worktree, or directory itself when it is not inside one.
func Root(directory string) (string, error) {
	directory, err := filepath.Abs(directory)
	if err != nil {
		return "", err
	}

	cacheMu.RLock()
	root, ok := cache[directory]
	cacheMu.RUnlock()
	if ok {
		return root, nil
	}

	root = directory
	if worktree := findWorktree(directory); worktree != "" {
		root = worktree
	}

	cacheMu.Lock()
	cache[directory] = root
	cacheMu.Unlock()
	return root, nil
}

// findWorktree walks up from start to the first directory holding a .git entry.
// Linked worktrees and submodules use a .git file with a gitdir line; they count too.
func findWorktree(start string) string {
	current := start
	for {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return current
			}
			if content, err := os.ReadFile(gitPath); err == nil &&
				strings.HasPrefix(strings.TrimSpace(string(content)), "gitdir: ") {
				return current
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// ClearCache forgets resolved roots. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]string)
}
