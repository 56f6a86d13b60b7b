package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Manager holds the live configuration snapshot and re-reads it when the
// backing .env file changes. Callers must treat the returned *Config as
// read-only; a reload swaps the pointer, it never mutates in place.
type Manager struct {
	current atomic.Pointer[Config]
	envPath string
	logger  zerolog.Logger
}

func NewManager(initial *Config, envPath string, logger zerolog.Logger) *Manager {
	m := &Manager{
		envPath: strings.TrimSpace(envPath),
		logger:  logger,
	}
	m.current.Store(initial)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	if m == nil {
		return nil
	}
	return m.current.Load()
}

// Reload re-reads the .env file (when configured) and rebuilds the snapshot
// from the environment. The previous snapshot stays active on failure.
func (m *Manager) Reload() error {
	if m == nil {
		return fmt.Errorf("config manager is nil")
	}

	if m.envPath != "" {
		if err := godotenv.Overload(m.envPath); err != nil {
			return fmt.Errorf("reload env file %s: %w", m.envPath, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		return err
	}

	m.current.Store(cfg)
	return nil
}

// Watch reloads the snapshot whenever the .env file is written or replaced.
// It blocks until ctx is cancelled; watch setup failure is returned
// immediately so the caller can decide whether to run without hot reload.
func (m *Manager) Watch(ctx context.Context) error {
	if m == nil || m.envPath == "" {
		return fmt.Errorf("config manager has no env file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace .env atomically, so watch the directory and filter.
	dir := filepath.Dir(m.envPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}

	target := filepath.Base(m.envPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				if err := m.Reload(); err != nil {
					m.logger.Warn().Err(err).Str("env_file", m.envPath).Msg("config reload failed, keeping previous snapshot")
					return
				}
				m.logger.Info().Str("env_file", m.envPath).Msg("configuration reloaded")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
