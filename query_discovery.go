package pascope

import (
	"fmt"
	"sort"

	"github.com/jward/pascope/internal/pascal"
	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/stub"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName SortField = "name"
	SortByFile SortField = "file"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"` // total matching results (before pagination)
}

// --- Search ---

// SearchTypes returns definitions whose name matches pattern, where '*'
// matches any run of characters and case is ignored. pathPrefix restricts
// results to files under a directory.
func (q *QueryBuilder) SearchTypes(pattern, pathPrefix string, s Sort, page Pagination) (*PagedResult[TypeStub], error) {
	page = page.normalize()
	prefix := ""
	if pathPrefix != "" {
		prefix = canonical(pathPrefix)
	}
	order := store.StubOrder{ByFile: s.Field == SortByFile, Desc: s.Order == Desc}

	recs, total, err := q.store.SearchStubs(pascal.Normalize(pattern), prefix, order, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("search types: %w", err)
	}
	occs := q.decodeAll(recs)
	items := make([]TypeStub, 0, len(occs))
	for _, o := range occs {
		items = append(items, o.stub)
	}
	return &PagedResult[TypeStub]{Items: items, TotalCount: total}, nil
}

// --- Digest ---

// KindCount is the number of definitions of one kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Summary provides a high-level overview of the index.
type Summary struct {
	Files         int         `json:"files"`
	ReadOnlyFiles int         `json:"read_only_files"`
	Types         int         `json:"types"`
	Units         int         `json:"units"`
	Kinds         []KindCount `json:"kinds"`
	Stale         bool        `json:"stale"`
}

// Summary returns row counts and a per-kind breakdown of the definitions.
// Kinds are ordered by descending count, then name.
func (q *QueryBuilder) Summary() (*Summary, error) {
	st, err := q.store.Stats()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	summary := &Summary{
		Files:         st.Files,
		ReadOnlyFiles: st.ReadOnlyFiles,
		Types:         st.Stubs,
		Units:         st.Units,
	}

	counts := make(map[string]int)
	err = q.store.EachStubData(func(data []byte) error {
		s, err := stub.Decode(data)
		if err != nil {
			q.engine.markStale(err)
			return nil
		}
		counts[s.Kind.String()]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	for kind, n := range counts {
		summary.Kinds = append(summary.Kinds, KindCount{Kind: kind, Count: n})
	}
	sort.Slice(summary.Kinds, func(i, j int) bool {
		if summary.Kinds[i].Count != summary.Kinds[j].Count {
			return summary.Kinds[i].Count > summary.Kinds[j].Count
		}
		return summary.Kinds[i].Kind < summary.Kinds[j].Kind
	})
	summary.Stale = q.engine.Stale()
	return summary, nil
}
