package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, InfoLevel, cfg.Level)
	assert.Equal(t, os.Stderr, cfg.Output)
	assert.False(t, cfg.Pretty)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
	assert.Empty(t, cfg.File)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"  debug  ", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
		{"", InfoLevel},
		{"INVALID", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("hidden")
	Warn().Str("sessionID", "s1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, "s1", entry["sessionID"])
	assert.Equal(t, "warn", entry["level"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	log := Component("storage")
	log.Debug().Msg("opened")

	assert.Contains(t, buf.String(), `"component":"storage"`)
}

func TestInit_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "agentcore.log")

	Init(Config{Level: InfoLevel, Output: &buf, File: path, MaxSizeMB: 1})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("to both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}
