// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to configuration with hot reload support.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config, Changes)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reads the file again and installs it when it loads. A file that
// fails to load or validate leaves the current configuration in place.
// Listeners receive the new configuration and the fields that differ.
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	callbacks := append([]func(*Config, Changes){}, h.onChange...)
	h.mu.Unlock()

	changes := Diff(oldCfg, newCfg)
	h.logChanges(changes)

	for _, fn := range callbacks {
		fn(newCfg, changes)
	}

	h.logger.Info().Int("changed", len(changes)).Msg("configuration reloaded")
	return nil
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config, Changes)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the config file for changes.
// Changes trigger automatic reload.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Only react to our config file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(changes Changes) {
	for _, c := range changes {
		if c.Reloadable {
			h.logger.Info().Str("field", c.Field).Str("old", c.Old).Str("new", c.New).Msg("config field changed")
			continue
		}
		h.logger.Warn().Str("field", c.Field).Str("old", c.Old).Str("new", c.New).Msg("config field changed, restart to apply")
	}
}

// Change is one configuration field that differs between two loads.
type Change struct {
	Field      string // dotted YAML path, e.g. "codec.format"
	Old, New   string
	Reloadable bool
}

// Changes lists changed fields in the order of ReloadableFields followed
// by NonReloadableFields.
type Changes []Change

// Has reports whether field changed.
func (c Changes) Has(field string) bool {
	for _, ch := range c {
		if ch.Field == field {
			return true
		}
	}
	return false
}

// Diff compares the fields listed by ReloadableFields and
// NonReloadableFields.
func Diff(old, new *Config) Changes {
	var out Changes
	add := func(reloadable bool, fields []string) {
		for _, f := range fields {
			o, n := fieldValue(old, f), fieldValue(new, f)
			if o != n {
				out = append(out, Change{Field: f, Old: o, New: n, Reloadable: reloadable})
			}
		}
	}
	add(true, ReloadableFields())
	add(false, NonReloadableFields())
	return out
}

func fieldValue(cfg *Config, field string) string {
	switch field {
	case "schemas.dirs":
		return strings.Join(cfg.Schemas.Dirs, ",")
	case "schemas.watch":
		return strconv.FormatBool(cfg.Schemas.Watch)
	case "codec.format":
		return cfg.Codec.Format
	case "codec.pretty":
		return strconv.FormatBool(cfg.Codec.Pretty)
	case "archive.dsn":
		return cfg.Archive.DSN
	case "archive.format":
		return cfg.Archive.Format
	case "logging.level":
		return cfg.Logging.Level
	case "logging.format":
		return cfg.Logging.Format
	case "metrics.enabled":
		return strconv.FormatBool(cfg.Metrics.Enabled)
	case "metrics.namespace":
		return cfg.Metrics.Namespace
	}
	return ""
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"schemas.dirs",
		"codec.format",
		"codec.pretty",
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"schemas.watch",
		"archive.dsn",
		"archive.format",
		"metrics.enabled",
		"metrics.namespace",
	}
}
