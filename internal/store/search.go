package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StubOrder selects the ORDER BY of SearchStubs.
type StubOrder struct {
	ByFile bool // file path, then offset; otherwise name, then file path
	Desc   bool
}

func (o StubOrder) clause() string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	if o.ByFile {
		return fmt.Sprintf("f.path %s, t.name_offset %s", dir, dir)
	}
	return fmt.Sprintf("t.name_key %s, f.path %s, t.name_offset %s", dir, dir, dir)
}

// SearchStubs returns one page of occurrences whose name key matches the
// glob pattern ('*' matches any run of characters) and whose file lies under
// pathPrefix, plus the total number of matches. An empty pattern or "*"
// matches every name; an empty prefix matches every file. pattern must
// already be normalized.
func (s *Store) SearchStubs(pattern, pathPrefix string, order StubOrder, limit, offset int) ([]*StubRecord, int, error) {
	var where []string
	var args []any

	if pattern != "" && pattern != "*" {
		like := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, `t.name_key LIKE ? ESCAPE '\'`)
		args = append(args, like)
	}
	if prefix := normalizePathPrefix(pathPrefix); prefix != "" {
		where = append(where, `f.path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(prefix)+"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}
	from := " FROM type_stubs t JOIN files f ON f.id = t.file_id" + whereClause

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search stubs: count: %w", err)
	}

	dataArgs := append(append([]any{}, args...), limit, offset)
	recs, err := s.queryStubs("SELECT "+stubCols+from+" ORDER BY "+order.clause()+" LIMIT ? OFFSET ?", dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search stubs: %w", err)
	}
	return recs, total, nil
}

// normalizePathPrefix ensures a path prefix ends with a separator for
// correct LIKE matching, so "src/core" does not match "src/core_utils/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(prefix, sep) {
		return prefix + sep
	}
	return prefix
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Stats holds row counts across the index.
type Stats struct {
	Files         int
	ReadOnlyFiles int
	Stubs         int
	Units         int
}

// Stats counts files, read-only files, stubs and unit entries.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(*) FROM files WHERE read_only),
		(SELECT COUNT(*) FROM type_stubs),
		(SELECT COUNT(*) FROM units)`,
	).Scan(&st.Files, &st.ReadOnlyFiles, &st.Stubs, &st.Units)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// EachStubData calls fn with every stored stub blob.
func (s *Store) EachStubData(fn func(data []byte) error) error {
	rows, err := s.db.Query("SELECT data FROM type_stubs")
	if err != nil {
		return fmt.Errorf("stub data: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("stub data: scan: %w", err)
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return rows.Err()
}
