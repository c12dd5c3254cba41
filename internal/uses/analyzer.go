package uses

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jward/pascope/internal/metrics"
	"github.com/jward/pascope/internal/pascal"
	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/unit"
)

// UnitLookup answers whether a unit key exists in the unit index.
type UnitLookup interface {
	HasUnit(nameKey string) (bool, error)
}

// Source supplies file content and a content version. Two calls returning
// the same version for a path must observe the same content.
type Source interface {
	Version(path string) (string, error)
	ReadFile(path string) ([]byte, error)
}

// FileSource reads from the local file system. The version is the content
// hash, so an edit that keeps the size and modification time still counts.
type FileSource struct{}

func (FileSource) Version(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return store.ContentHash(content), nil
}

func (FileSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Scope is the ordered set of unit keys visible from one file.
type Scope struct {
	units []string
	set   map[string]bool
}

func newScope(keys []string) Scope {
	s := Scope{set: make(map[string]bool, len(keys))}
	for _, k := range keys {
		if s.set[k] {
			continue
		}
		s.set[k] = true
		s.units = append(s.units, k)
	}
	return s
}

// Contains reports whether the unit key is visible.
func (s Scope) Contains(key string) bool {
	return s.set[key]
}

// Units returns the visible unit keys in the order they were declared, with
// the file's own unit last unless it was listed explicitly.
func (s Scope) Units() []string {
	return append([]string(nil), s.units...)
}

func (s Scope) Len() int {
	return len(s.units)
}

type cacheEntry struct {
	version string
	scope   Scope
}

// Analyzer computes and caches per-file scopes.
type Analyzer struct {
	units      UnitLookup
	source     Source
	scopeNames []string
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithScopeNames sets the ordered namespace prefixes tried when expanding
// short unit names, for example "System" turns "SysUtils" into
// "system.sysutils" when that unit is indexed.
func WithScopeNames(names ...string) Option {
	return func(a *Analyzer) {
		a.scopeNames = a.scopeNames[:0]
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			a.scopeNames = append(a.scopeNames, pascal.Normalize(n))
		}
	}
}

func WithSource(src Source) Option {
	return func(a *Analyzer) {
		a.source = src
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// NewAnalyzer returns an Analyzer that checks expansions against units.
func NewAnalyzer(units UnitLookup, opts ...Option) *Analyzer {
	a := &Analyzer{
		units:  units,
		source: FileSource{},
		logger: zerolog.Nop(),
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}
	return a
}

// ScopeFor returns the units visible from path. The result is cached until
// the file's content version changes.
func (a *Analyzer) ScopeFor(path string) (Scope, error) {
	version, err := a.source.Version(path)
	if err != nil {
		return Scope{}, fmt.Errorf("uses: version %s: %w", path, err)
	}

	a.mu.Lock()
	entry, ok := a.cache[path]
	a.mu.Unlock()
	if ok && entry.version == version {
		a.metrics.ScopeCacheHits.Inc()
		return entry.scope, nil
	}
	a.metrics.ScopeCacheMisses.Inc()

	src, err := a.source.ReadFile(path)
	if err != nil {
		return Scope{}, fmt.Errorf("uses: read %s: %w", path, err)
	}
	scope, err := a.compute(path, src)
	if err != nil {
		return Scope{}, err
	}

	a.mu.Lock()
	a.cache[path] = cacheEntry{version: version, scope: scope}
	a.mu.Unlock()
	a.logger.Debug().Str("path", path).Int("units", scope.Len()).Msg("computed uses scope")
	return scope, nil
}

// Compute derives the scope of src without consulting or filling the cache.
func (a *Analyzer) Compute(path string, src []byte) (Scope, error) {
	return a.compute(path, src)
}

func (a *Analyzer) compute(path string, src []byte) (Scope, error) {
	names := Parse(src)
	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		key, err := a.expand(name)
		if err != nil {
			return Scope{}, fmt.Errorf("uses: expand %q in %s: %w", name, path, err)
		}
		keys = append(keys, key)
	}
	keys = append(keys, unit.NameFor(path, src))
	return newScope(keys), nil
}

// expand returns the first "<prefix>.<name>" present in the unit index, or
// name unchanged. Qualified names are never expanded.
func (a *Analyzer) expand(name string) (string, error) {
	if strings.Contains(name, ".") {
		return name, nil
	}
	for _, prefix := range a.scopeNames {
		candidate := prefix + "." + name
		ok, err := a.units.HasUnit(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return name, nil
}

// Invalidate drops the cached scope for path.
func (a *Analyzer) Invalidate(path string) {
	a.mu.Lock()
	delete(a.cache, path)
	a.mu.Unlock()
}

// Purge drops every cached scope. Expansions depend on the unit index, so
// callers purge after the set of indexed units changes.
func (a *Analyzer) Purge() {
	a.mu.Lock()
	a.cache = make(map[string]cacheEntry)
	a.mu.Unlock()
}

// Cached reports how many scopes are cached.
func (a *Analyzer) Cached() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}
