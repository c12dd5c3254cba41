package pascope

import (
	"errors"
	"fmt"

	"github.com/jward/pascope/internal/pascal"
	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/stub"
)

// QueryBuilder provides the navigation-facing query API over the indexes.
type QueryBuilder struct {
	engine *Engine
	store  *store.Store
}

// located is a decoded occurrence with the file row it belongs to.
type located struct {
	stub   TypeStub
	fileID int64
}

// FindTypes returns every type definition named name, compared
// case-insensitively, ordered by file path then offset.
func (q *QueryBuilder) FindTypes(name string) ([]TypeStub, error) {
	occs, err := q.findTypes(name)
	if err != nil {
		return nil, err
	}
	stubs := make([]TypeStub, 0, len(occs))
	for _, o := range occs {
		stubs = append(stubs, o.stub)
	}
	return stubs, nil
}

func (q *QueryBuilder) findTypes(name string) ([]located, error) {
	recs, err := q.store.FindTypes(pascal.Normalize(name))
	if err != nil {
		return nil, fmt.Errorf("find types: %w", err)
	}
	return q.decodeAll(recs), nil
}

// decodeAll decodes stored occurrences, skipping any that can be neither
// decoded nor recomputed.
func (q *QueryBuilder) decodeAll(recs []*store.StubRecord) []located {
	var (
		occs      []located
		transient map[string][]TypeStub
	)
	for _, rec := range recs {
		s, err := stub.Decode(rec.Data)
		if err != nil {
			// Persisted form unusable: recompute from source for this call
			// and schedule a rebuild.
			q.engine.markStale(err)
			if transient == nil {
				transient = make(map[string][]TypeStub)
			}
			fallback, ok := q.reextract(transient, rec)
			if !ok {
				continue
			}
			s = fallback
		}
		s.File = rec.FilePath
		s.Offset = rec.Offset
		occs = append(occs, located{stub: s, fileID: rec.FileID})
	}
	return occs
}

// reextract finds the stub at rec's offset by running the extractor on the
// current file content read through the engine's Source. Results are cached
// in cache for the caller's lifetime only.
func (q *QueryBuilder) reextract(cache map[string][]TypeStub, rec *store.StubRecord) (TypeStub, bool) {
	stubs, ok := cache[rec.FilePath]
	if !ok {
		content, err := q.engine.source.ReadFile(rec.FilePath)
		if err != nil {
			q.engine.logger.Warn().Err(err).Str("path", rec.FilePath).Msg("cannot re-extract stub")
		} else {
			stubs = stub.Extract(content)
		}
		cache[rec.FilePath] = stubs
	}
	for _, s := range stubs {
		if s.Offset == rec.Offset && s.Key() == rec.NameKey {
			return s, true
		}
	}
	return TypeStub{}, false
}

// UnitFile returns the path of the file that defines unit name, compared
// case-insensitively. The second result is false when no file does.
func (q *QueryBuilder) UnitFile(name string) (string, bool, error) {
	f, err := q.store.UnitFile(pascal.Normalize(name))
	if err != nil {
		return "", false, fmt.Errorf("unit file: %w", err)
	}
	if f == nil {
		return "", false, nil
	}
	return f.Path, true, nil
}

// Units returns every unit index entry ordered by key.
func (q *QueryBuilder) Units() ([]*Unit, error) {
	return q.store.Units()
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	return q.store.Files()
}

// TypesInFile returns the stubs indexed for file in offset order.
func (q *QueryBuilder) TypesInFile(file string) ([]TypeStub, error) {
	f, err := q.store.FileByPath(canonical(file))
	if err != nil {
		return nil, fmt.Errorf("types in file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	recs, err := q.store.StubsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("types in file: %w", err)
	}
	occs := q.decodeAll(recs)
	stubs := make([]TypeStub, 0, len(occs))
	for _, o := range occs {
		stubs = append(stubs, o.stub)
	}
	return stubs, nil
}

// Scope returns the unit keys visible from file.
func (q *QueryBuilder) Scope(file string) (Scope, error) {
	scope, err := q.engine.analyzer.ScopeFor(canonical(file))
	if err != nil {
		return Scope{}, fmt.Errorf("scope: %w", err)
	}
	return scope, nil
}

// Rename is not supported; definitions are read-only to the index.
func (q *QueryBuilder) Rename(file string, offset int, newName string) error {
	return fmt.Errorf("rename %s at %d to %q: %w", file, offset, newName, ErrNotSupported)
}

// IsNotSupported reports whether err is an unsupported-operation error.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
