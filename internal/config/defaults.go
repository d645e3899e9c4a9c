package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/pkg/types"
)

const (
	// DefaultRendererIntervalMs is the renderer flush period of a generation.
	DefaultRendererIntervalMs = 120
	// DefaultStorageIntervalMs is the storage flush period of a generation.
	DefaultStorageIntervalMs = 600
	// DefaultTemperature is used when the config sets none.
	DefaultTemperature = 0.7
)

// ErrNoDefaultModel is returned when neither the config nor the fallback resolves a model.
var ErrNoDefaultModel = errors.New("no default provider/model configured")

// Defaults is the read-only default-configuration source. It always serves a
// consistent snapshot and can follow config file changes with Watch.
type Defaults struct {
	mu       sync.RWMutex
	cfg      *types.Config
	fallback func() (types.ModelRef, bool)
}

// NewDefaults creates a defaults source over cfg.
func NewDefaults(cfg *types.Config) *Defaults {
	if cfg == nil {
		cfg = &types.Config{}
	}
	return &Defaults{cfg: cfg}
}

// SetFallback installs a resolver consulted when the config names no model.
func (d *Defaults) SetFallback(fn func() (types.ModelRef, bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// Update replaces the current snapshot.
func (d *Defaults) Update(cfg *types.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

// Config returns the current snapshot. Callers must not mutate it.
func (d *Defaults) Config() *types.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// DefaultModel returns the fallback provider/model pair.
func (d *Defaults) DefaultModel() (types.ModelRef, error) {
	d.mu.RLock()
	model := d.cfg.Model
	fallback := d.fallback
	d.mu.RUnlock()

	if model != "" {
		providerID, modelID, ok := strings.Cut(model, "/")
		if !ok || providerID == "" || modelID == "" {
			return types.ModelRef{}, fmt.Errorf("%w: model %q is not in provider/model form", ErrNoDefaultModel, model)
		}
		return types.ModelRef{ProviderID: providerID, ModelID: modelID}, nil
	}

	if fallback != nil {
		if ref, ok := fallback(); ok {
			return ref, nil
		}
	}
	return types.ModelRef{}, ErrNoDefaultModel
}

// DefaultSystemPrompt returns the configured system prompt, possibly empty.
func (d *Defaults) DefaultSystemPrompt() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.SystemPrompt
}

// Temperature returns the configured generation temperature.
func (d *Defaults) Temperature() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cfg.Temperature != nil {
		return *d.cfg.Temperature
	}
	return DefaultTemperature
}

// Watch reloads the configuration of directory whenever one of files changes.
// It returns once the watcher is installed; reloading stops when ctx is done.
func (d *Defaults) Watch(ctx context.Context, directory string, files ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// Directories rather than files so editors that replace files by rename are seen.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logging.Debug().Err(err).Str("dir", dir).Msg("config watch skipped")
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[ev.Name] || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				cfg, err := Load(directory)
				if err != nil {
					logging.Warn().Err(err).Str("file", ev.Name).Msg("config reload failed")
					continue
				}
				d.Update(cfg)
				logging.Info().Str("file", ev.Name).Msg("config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return nil
}

// ConfigFiles lists the files Load reads for directory, for use with Watch.
func ConfigFiles(directory string) []string {
	dirs := []string{GetPaths().Config}
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".agentcore"))
	}
	var files []string
	for _, dir := range dirs {
		for _, name := range configNames {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files
}
