package schema

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/typedwire/core/converter"
	"github.com/artpar/typedwire/core/message"
)

// LoadDirs parses every document under dirs into a new registry whose
// deriver knows the built-in converters.
func LoadDirs(dirs ...string) (*message.Registry, error) {
	var docs []Document
	for _, dir := range dirs {
		d, err := ParseDir(dir)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}

	reg := message.NewRegistry()
	converter.Defaults().Install(reg.Deriver())
	if _, err := Load(reg, docs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Watcher holds the registry loaded from definition directories and
// rebuilds it when a file changes. A reload that fails keeps the previous
// registry, since types cannot be removed from a registry once registered.
type Watcher struct {
	mu       sync.RWMutex
	registry *message.Registry
	dirs     []string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*message.Registry)
	onReload []func(*message.Registry, error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads dirs and returns a watcher holding the result.
func NewWatcher(logger zerolog.Logger, dirs ...string) (*Watcher, error) {
	reg, err := LoadDirs(dirs...)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	return &Watcher{
		registry: reg,
		dirs:     dirs,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Registry returns the current registry.
func (w *Watcher) Registry() *message.Registry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry
}

// OnChange registers a callback invoked with every reloaded registry.
func (w *Watcher) OnChange(fn func(*message.Registry)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// OnReload registers a callback invoked after every reload attempt, with
// the registry in use afterwards and the reload error, if any.
func (w *Watcher) OnReload(fn func(*message.Registry, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Reload parses the directories again and swaps the registry in.
func (w *Watcher) Reload() error {
	w.logger.Info().Strs("dirs", w.dirs).Msg("reloading message schemas")

	reg, err := LoadDirs(w.dirs...)
	if err != nil {
		w.logger.Error().Err(err).Msg("schema reload failed, keeping old types")
		w.mu.RLock()
		current := w.registry
		observers := append([]func(*message.Registry, error){}, w.onReload...)
		w.mu.RUnlock()
		for _, fn := range observers {
			fn(current, err)
		}
		return fmt.Errorf("reload schemas: %w", err)
	}

	w.mu.Lock()
	old := w.registry
	w.registry = reg
	callbacks := append([]func(*message.Registry){}, w.onChange...)
	observers := append([]func(*message.Registry, error){}, w.onReload...)
	w.mu.Unlock()

	w.logger.Info().
		Int("old", len(old.Types())).
		Int("new", len(reg.Types())).
		Msg("message schemas reloaded")

	for _, fn := range callbacks {
		fn(reg)
	}
	for _, fn := range observers {
		fn(reg, nil)
	}
	return nil
}

// Start watches the directories and their subdirectories for changes.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range w.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.watcher = watcher

	go w.watchLoop()

	w.logger.Info().Strs("dirs", w.dirs).Msg("watching message schemas for changes")
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("schema file changed")

			if err := w.Reload(); err != nil {
				w.logger.Error().Err(err).Msg("file watch reload failed")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("schema watcher error")

		case <-w.stopCh:
			return
		}
	}
}
