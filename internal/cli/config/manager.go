package config

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/bqrun/internal/apperr"
	"github.com/spf13/pflag"
)

// watchDebounce is how long Watch waits after the last file event before reloading.
const watchDebounce = 100 * time.Millisecond

// Manager owns the current configuration. Readers get snapshots through
// Current; every reload builds a fresh Config and swaps it in whole, so a
// reader never observes a half-applied update.
type Manager struct {
	file  string
	dir   string
	flags *pflag.FlagSet

	mu       sync.Mutex // serializes reloads
	settings map[string]any
	fileUsed string

	current atomic.Pointer[Config]
	logger  *slog.Logger
}

// Options configure a Manager.
type Options struct {
	File   string
	Dir    string
	Flags  *pflag.FlagSet
	Logger *slog.Logger
}

// NewManager creates a Manager holding the defaults. Call Load to read the
// configured layers.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		file:   opts.File,
		dir:    opts.Dir,
		flags:  opts.Flags,
		logger: logger,
	}
	m.current.Store(Defaults())
	return m
}

// Current returns the current configuration snapshot.
func (m *Manager) Current() Config {
	return *m.current.Load()
}

// FileUsed returns the config file read by the last successful load.
func (m *Manager) FileUsed() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileUsed
}

// SetLogger replaces the logger used for watch and reload messages.
func (m *Manager) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger != nil {
		m.logger = logger
	}
}

// Load reads every layer and swaps in the result. On failure the previous
// configuration stays current and a config error is returned.
func (m *Manager) Load() (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// Reload is Load, used after a change notification.
func (m *Manager) Reload() (Config, error) {
	return m.Load()
}

// ApplySettings replaces the editor settings layer and reloads. If the
// reload fails the previous settings are restored.
func (m *Manager) ApplySettings(settings map[string]any) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.settings
	m.settings = maps.Clone(settings)
	cfg, err := m.loadLocked()
	if err != nil {
		m.settings = prev
	}
	return cfg, err
}

func (m *Manager) loadLocked() (Config, error) {
	cfg, used, err := Load(Sources{
		File:     m.file,
		Dir:      m.dir,
		Settings: m.settings,
		Flags:    m.flags,
	})
	if err != nil {
		m.logger.Warn("configuration not reloaded", "error", err)
		return *m.current.Load(), apperr.Wrap(apperr.Config, "Failed to load BigQuery configuration", err)
	}
	m.fileUsed = used
	m.current.Store(cfg)
	m.logger.Debug("configuration loaded", "file", used)
	return *cfg, nil
}

// watchTarget is the file Watch follows: the explicit or discovered config
// file, or bqrun.yaml in the start directory so a newly created file is seen.
func (m *Manager) watchTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.file
	if target == "" {
		target = m.fileUsed
	}
	if target == "" {
		dir := m.dir
		if dir == "" {
			dir, _ = os.Getwd()
		}
		target = filepath.Join(dir, FileNames[0])
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	return target
}

// Watch reloads the configuration whenever the config file changes and calls
// onChange with the outcome. It blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := m.watchTarget()
	// Watch the directory: editors replace files on save, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	var (
		timerMu       sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			timerMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				m.logger.Debug("config file changed, reloading", "file", event.Name)
				cfg, err := m.Reload()
				if onChange != nil {
					onChange(cfg, err)
				}
			})
			timerMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher error", "error", err)
		}
	}
}
