package pascope

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jward/pascope/internal/config"
	"github.com/jward/pascope/internal/metrics"
	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/stub"
	"github.com/jward/pascope/internal/unit"
	"github.com/jward/pascope/internal/uses"
)

// Engine orchestrates the pascope pipeline: file discovery, change
// detection, stub and unit extraction, and query access.
type Engine struct {
	store    *store.Store
	analyzer *uses.Analyzer
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	registerer      prometheus.Registerer
	source          uses.Source
	scopeNames      []string
	exclude         func(path string) bool
	excludePatterns []string

	// useParallel enables the parallel extraction pipeline.
	useParallel bool

	// stale is set when a stored stub could not be decoded with the current
	// format. The next IndexFiles call rebuilds everything.
	stale atomic.Bool

	// indexMu serializes indexing passes; queries do not take it.
	indexMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel extraction. When true (default), IndexFiles
// uses a worker pool for extraction, with a single writer committing
// batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithScopeNames sets the ordered namespace prefixes used to expand short
// unit names in uses clauses.
func WithScopeNames(names ...string) Option {
	return func(e *Engine) {
		e.scopeNames = append([]string(nil), names...)
	}
}

// WithRegisterer registers the engine's metrics on reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithMetrics shares an existing metrics set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSource replaces the file system used for uses clause analysis.
func WithSource(src uses.Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithExclude skips paths for which fn returns true during discovery and
// indexing.
func WithExclude(fn func(path string) bool) Option {
	return func(e *Engine) {
		e.exclude = fn
	}
}

// WithConfig applies a loaded project configuration: scope names and
// exclude patterns.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.scopeNames = append([]string(nil), cfg.ScopeNames...)
		e.exclude = cfg.ExcludeMatch
		e.excludePatterns = append([]string(nil), cfg.Exclude...)
	}
}

// New creates an Engine backed by a SQLite database at dbPath. If the
// database was written with a different stub format it is cleared.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("pascope: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("pascope: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      zerolog.Nop(),
		source:      uses.FileSource{},
		useParallel: true, // default to parallel extraction
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(e.registerer)
	}
	e.analyzer = uses.NewAnalyzer(s,
		uses.WithScopeNames(e.scopeNames...),
		uses.WithSource(e.source),
		uses.WithLogger(e.logger),
		uses.WithMetrics(e.metrics),
	)

	if err := e.checkFormatVersion(); err != nil {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Analyzer returns the uses scope analyzer shared by queries.
func (e *Engine) Analyzer() *uses.Analyzer {
	return e.analyzer
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Query returns a new QueryBuilder over the Engine's indexes.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e, store: e.store}
}

// Stale reports whether stored stubs need a full rebuild.
func (e *Engine) Stale() bool {
	return e.stale.Load()
}

func (e *Engine) markStale(reason error) {
	if e.stale.CompareAndSwap(false, true) {
		e.logger.Warn().Err(reason).Msg("stored stubs are unreadable; next index pass rebuilds")
	}
}

// checkFormatVersion clears the store when its stubs were written with a
// different format.
func (e *Engine) checkFormatVersion() error {
	current := strconv.Itoa(stub.FormatVersion)
	stored, err := e.store.GetMetadata(formatVersionKey)
	if err != nil {
		return fmt.Errorf("pascope: %w", err)
	}
	if stored != "" && stored != current {
		e.logger.Info().Str("stored", stored).Str("current", current).Msg("stub format changed; clearing index")
		if err := e.store.Reset(); err != nil {
			return fmt.Errorf("pascope: reset: %w", err)
		}
		e.metrics.Rebuilds.Inc()
	}
	if stored != current {
		if err := e.store.SetMetadata(formatVersionKey, current); err != nil {
			return fmt.Errorf("pascope: %w", err)
		}
	}
	return nil
}

// target is one file to index and whether it belongs to a read-only root.
type target struct {
	path     string
	readOnly bool
}

// IndexFiles indexes the given file paths as project files. When
// WithParallel is enabled, uses a worker pool for concurrent extraction
// with batched SQLite writes. Otherwise falls back to the serial path.
//
// For each file:
//  1. Skip non-Pascal or excluded paths
//  2. Skip unchanged files (same content hash)
//  3. Extract named type stubs and the unit key
//  4. Replace the file's previous contributions in one transaction
//
// Errors on individual files are collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	return e.index(ctx, targets(paths, false))
}

// IndexExtraRoot indexes every source file under dir as read-only.
func (e *Engine) IndexExtraRoot(ctx context.Context, dir string) error {
	paths, err := e.walkListFiles(dir)
	if err != nil {
		return err
	}
	return e.index(ctx, targets(paths, true))
}

func targets(paths []string, readOnly bool) []target {
	ts := make([]target, 0, len(paths))
	for _, p := range paths {
		ts = append(ts, target{path: p, readOnly: readOnly})
	}
	return ts
}

func (e *Engine) index(ctx context.Context, ts []target) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	for i := range ts {
		ts[i].path = canonical(ts[i].path)
	}
	if e.stale.Load() {
		var err error
		if ts, err = e.rebuildTargets(ts); err != nil {
			return err
		}
	}

	if e.useParallel {
		return e.indexParallel(ctx, ts)
	}
	return e.indexSerial(ctx, ts)
}

// rebuildTargets clears the store and returns every previously indexed file
// that still exists, followed by ts.
func (e *Engine) rebuildTargets(ts []target) ([]target, error) {
	files, err := e.store.Files()
	if err != nil {
		return nil, fmt.Errorf("pascope: rebuild: %w", err)
	}
	if err := e.store.Reset(); err != nil {
		return nil, fmt.Errorf("pascope: rebuild: %w", err)
	}
	e.metrics.Rebuilds.Inc()
	e.stale.Store(false)
	e.analyzer.Purge()

	seen := make(map[string]bool, len(ts))
	for _, t := range ts {
		seen[t.path] = true
	}
	var all []target
	for _, f := range files {
		if seen[f.Path] {
			continue
		}
		if _, err := os.Stat(f.Path); err != nil {
			continue
		}
		all = append(all, target{path: f.Path, readOnly: f.ReadOnly})
	}
	e.logger.Info().Int("files", len(all)+len(ts)).Msg("rebuilding index")
	return append(all, ts...), nil
}

func (e *Engine) indexSerial(ctx context.Context, ts []target) error {
	var errs []error
	committed := 0
	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, skip, err := e.prepareFile(t)
		if err != nil {
			errs = append(errs, e.fileError("index", t.path, err))
			continue
		}
		if skip {
			continue
		}
		if err := e.extractFile(item); err != nil {
			errs = append(errs, e.fileError("extract", t.path, err))
			continue
		}
		if err := e.commitFile(item); err != nil {
			errs = append(errs, e.fileError("commit", t.path, err))
			continue
		}
		committed++
	}
	if committed > 0 {
		e.analyzer.Purge()
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) fileError(phase, path string, err error) error {
	e.metrics.IndexErrors.Inc()
	e.logger.Warn().Err(err).Str("path", path).Str("phase", phase).Msg("skipping file")
	return fmt.Errorf("%s %s: %w", phase, path, err)
}

// RemoveFiles drops the given files and everything indexed for them.
func (e *Engine) RemoveFiles(paths []string) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	var ids []int64
	for _, p := range paths {
		p = canonical(p)
		f, err := e.store.FileByPath(p)
		if err != nil {
			return fmt.Errorf("pascope: remove %s: %w", p, err)
		}
		e.analyzer.Invalidate(p)
		if f != nil {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.store.DeleteFiles(ids); err != nil {
		return fmt.Errorf("pascope: remove: %w", err)
	}
	e.analyzer.Purge()
	return nil
}

// skipDirs are excluded from directory walks in addition to hidden dirs.
var skipDirs = map[string]bool{
	"__history":    true,
	"__recovery":   true,
	"node_modules": true,
}

// IndexDirectory walks root and indexes all Pascal source files. If root is
// inside a git repository, uses git ls-files to respect .gitignore. Falls
// back to a filesystem walk otherwise. Previously indexed project files
// under root that no longer exist are removed.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	root = canonical(root)
	paths, err := e.gitListFiles(root)
	if err != nil {
		// Not a git repo or git not available; fall back to walk.
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	if err := e.pruneMissing(root, paths); err != nil {
		return err
	}
	return e.IndexFiles(ctx, paths)
}

func (e *Engine) pruneMissing(root string, present []string) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("pascope: prune: %w", err)
	}
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[canonical(p)] = true
	}
	var gone []string
	prefix := root + string(filepath.Separator)
	for _, f := range files {
		if f.ReadOnly || !strings.HasPrefix(f.Path, prefix) || keep[f.Path] {
			continue
		}
		gone = append(gone, f.Path)
	}
	if len(gone) == 0 {
		return nil
	}
	e.logger.Debug().Int("files", len(gone)).Msg("pruning removed files")
	return e.RemoveFiles(gone)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to Pascal sources.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if e.wanted(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem. Skips hidden
// directories and IDE history folders.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.wanted(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func (e *Engine) wanted(path string) bool {
	if !unit.IsSourceFile(path) {
		return false
	}
	return e.exclude == nil || !e.exclude(path)
}

// canonical returns an absolute, cleaned path. Paths that cannot be made
// absolute are only cleaned.
func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
