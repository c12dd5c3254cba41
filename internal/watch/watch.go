// Package watch delivers debounced batches of changed Pascal source files.
package watch

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/jward/pascope/internal/metrics"
	"github.com/jward/pascope/internal/project"
	"github.com/jward/pascope/internal/unit"
)

// Batch is one debounced set of changes. Paths are sorted.
type Batch struct {
	Changed []string
	Removed []string
}

// Watcher recursively watches directories and reports source and project
// descriptor changes after a quiet period.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	debounce    time.Duration
	excludeDirs []glob.Glob
	onChange    func(Batch)
	callbackMu  sync.Mutex
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	pending   map[string]bool // path -> removed
	pendingMu sync.Mutex
	timer     *time.Timer
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// New creates a Watcher. excludeDirs are gobwas globs matched against
// directory base names; hidden directories are always skipped.
func New(debounce time.Duration, excludeDirs []string, onChange func(Batch), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiled := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:   fsw,
		debounce:    debounce,
		excludeDirs: compiled,
		onChange:    onChange,
		logger:      zerolog.Nop(),
		pending:     make(map[string]bool),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = metrics.New(nil)
	}
	return w, nil
}

// Watch adds every root recursively and starts the event loop.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.metrics.WatcherEvents.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if !w.shouldExcludeDir(event.Name) {
				if err := w.watchRecursive(event.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				} else {
					w.enqueueExistingFiles(event.Name)
				}
			}
			return
		}
	}

	if !relevant(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.scheduleChange(event.Name, true)
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.scheduleChange(event.Name, false)
	}
}

func (w *Watcher) scheduleChange(path string, removed bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = removed

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	if len(pending) == 0 {
		return
	}
	var b Batch
	for path, removed := range pending {
		// A rename away and back within one window leaves the file present.
		if removed {
			if _, err := os.Stat(path); err == nil {
				removed = false
			}
		}
		if removed {
			b.Removed = append(b.Removed, path)
		} else {
			b.Changed = append(b.Changed, path)
		}
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Removed)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.logger.Debug().Int("changed", len(b.Changed)).Int("removed", len(b.Removed)).Msg("flushing changes")
	w.onChange(b)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func relevant(path string) bool {
	return unit.IsSourceFile(path) || project.IsProjectFile(path)
}

// Close stops the event loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if relevant(path) {
			w.scheduleChange(path, false)
		}
		return nil
	})
}
