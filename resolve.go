package pascope

import (
	"fmt"
	"time"

	"github.com/jward/pascope/internal/pascal"
)

// Resolution partitions the definitions of an identifier by visibility from
// the referencing file. Both slices keep FindTypes order and together hold
// every candidate.
type Resolution struct {
	Identifier string     `json:"identifier"`
	InScope    []TypeStub `json:"in_scope"`
	OutOfScope []TypeStub `json:"out_of_scope"`
}

// Candidates returns in-scope definitions followed by out-of-scope ones.
func (r *Resolution) Candidates() []TypeStub {
	all := make([]TypeStub, 0, len(r.InScope)+len(r.OutOfScope))
	all = append(all, r.InScope...)
	return append(all, r.OutOfScope...)
}

// Resolve looks up identifier as referenced from file at offset. A
// definition is in scope when its file's unit is visible through file's
// uses clauses, or when it lives in file itself. When offset lies on the
// name of a definition of identifier in file, the reference is the
// definition and both partitions are empty.
func (q *QueryBuilder) Resolve(identifier, file string, offset int) (*Resolution, error) {
	start := time.Now()
	defer func() {
		q.engine.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}()

	file = canonical(file)
	res := &Resolution{Identifier: identifier}

	candidates, err := q.findTypes(identifier)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", identifier, err)
	}
	for _, c := range candidates {
		if c.stub.File == file && c.stub.Covers(offset) {
			return res, nil
		}
	}
	if len(candidates) == 0 {
		return res, nil
	}

	scope, err := q.engine.analyzer.ScopeFor(file)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", identifier, err)
	}

	owners := make(map[int64]string)
	for _, c := range candidates {
		owner, ok := owners[c.fileID]
		if !ok {
			if owner, err = q.ownerUnit(c.fileID); err != nil {
				return nil, fmt.Errorf("resolve %s: %w", identifier, err)
			}
			owners[c.fileID] = owner
		}
		if c.stub.File == file || (owner != "" && scope.Contains(owner)) {
			res.InScope = append(res.InScope, c.stub)
		} else {
			res.OutOfScope = append(res.OutOfScope, c.stub)
		}
	}
	return res, nil
}

// ResolveAt resolves the identifier under offset in file, reading the file
// through the engine's source.
func (q *QueryBuilder) ResolveAt(file string, offset int) (*Resolution, error) {
	file = canonical(file)
	src, err := q.engine.source.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("resolve at %s:%d: %w", file, offset, err)
	}
	tok, ok := pascal.IdentifierAt(src, offset)
	if !ok {
		return nil, fmt.Errorf("resolve at %s:%d: no identifier", file, offset)
	}
	return q.Resolve(tok.Text, file, offset)
}

// ownerUnit returns the unit key a file contributes. When another file has
// since taken the key over in the unit index, the file's own declared key is
// used so its definitions stay attributable.
func (q *QueryBuilder) ownerUnit(fileID int64) (string, error) {
	key, ok, err := q.store.UnitKeyForFile(fileID)
	if err != nil || ok {
		return key, err
	}
	f, err := q.store.FileByID(fileID)
	if err != nil || f == nil {
		return "", err
	}
	return f.UnitKey, nil
}
