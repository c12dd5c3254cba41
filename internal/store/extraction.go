package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

const fileCols = `id, path, hash, unit_key, read_only, last_indexed`

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, unit_key, read_only, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Hash, f.UnitKey, f.ReadOnly, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites the mutable columns of an existing file row.
func (s *Store) UpdateFile(f *File) error {
	_, err := s.db.Exec(
		"UPDATE files SET hash = ?, unit_key = ?, read_only = ?, last_indexed = ? WHERE id = ?",
		f.Hash, f.UnitKey, f.ReadOnly, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var lastIndexed sql.NullTime
	if err := scanner.Scan(&f.ID, &f.Path, &hash, &f.UnitKey, &f.ReadOnly, &lastIndexed); err != nil {
		return nil, err
	}
	f.Hash = hash.String
	f.LastIndexed = lastIndexed.Time
	return f, nil
}

func (s *Store) queryFile(query string, args ...any) (*File, error) {
	f, err := scanFile(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := s.queryFile("SELECT "+fileCols+" FROM files WHERE path = ?", path)
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := s.queryFile("SELECT "+fileCols+" FROM files WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Stub operations ---

func (s *Store) InsertStub(rec *StubRecord) (int64, error) {
	return insertStubExec(s.db, rec)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// insertStubExec collapses duplicate (file, offset) occurrences, keeping the
// first one written.
func insertStubExec(db execer, rec *StubRecord) (int64, error) {
	res, err := db.Exec(
		"INSERT OR IGNORE INTO type_stubs (file_id, name_key, name_offset, data) VALUES (?, ?, ?, ?)",
		rec.FileID, rec.NameKey, rec.Offset, rec.Data,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stub: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

const stubCols = `t.id, t.file_id, f.path, t.name_key, t.name_offset, t.data`

func (s *Store) queryStubs(query string, args ...any) ([]*StubRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []*StubRecord
	for rows.Next() {
		rec := &StubRecord{}
		if err := rows.Scan(&rec.ID, &rec.FileID, &rec.FilePath, &rec.NameKey, &rec.Offset, &rec.Data); err != nil {
			return nil, fmt.Errorf("scan stub: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// FindTypes returns every occurrence stored under nameKey, ordered by file
// path and then offset. nameKey must already be normalized.
func (s *Store) FindTypes(nameKey string) ([]*StubRecord, error) {
	recs, err := s.queryStubs(
		"SELECT "+stubCols+" FROM type_stubs t JOIN files f ON f.id = t.file_id"+
			" WHERE t.name_key = ? ORDER BY f.path, t.name_offset",
		nameKey,
	)
	if err != nil {
		return nil, fmt.Errorf("find types: %w", err)
	}
	return recs, nil
}

// StubsByFile returns a file's occurrences in offset order.
func (s *Store) StubsByFile(fileID int64) ([]*StubRecord, error) {
	recs, err := s.queryStubs(
		"SELECT "+stubCols+" FROM type_stubs t JOIN files f ON f.id = t.file_id"+
			" WHERE t.file_id = ? ORDER BY t.name_offset",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("stubs by file: %w", err)
	}
	return recs, nil
}

// CountStubs returns the total number of indexed occurrences.
func (s *Store) CountStubs() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM type_stubs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count stubs: %w", err)
	}
	return n, nil
}

// --- Unit operations ---

// PutUnit maps nameKey to fileID, replacing any earlier mapping.
func (s *Store) PutUnit(nameKey string, fileID int64) error {
	return putUnitExec(s.db, nameKey, fileID)
}

func putUnitExec(db execer, nameKey string, fileID int64) error {
	if _, err := db.Exec("INSERT OR REPLACE INTO units (name_key, file_id) VALUES (?, ?)", nameKey, fileID); err != nil {
		return fmt.Errorf("put unit %q: %w", nameKey, err)
	}
	return nil
}

// UnitFile returns the file that currently owns nameKey, or nil.
func (s *Store) UnitFile(nameKey string) (*File, error) {
	f, err := s.queryFile(
		"SELECT f.id, f.path, f.hash, f.unit_key, f.read_only, f.last_indexed"+
			" FROM units u JOIN files f ON f.id = u.file_id WHERE u.name_key = ?",
		nameKey,
	)
	if err != nil {
		return nil, fmt.Errorf("unit file: %w", err)
	}
	return f, nil
}

// HasUnit reports whether nameKey is present in the unit index.
func (s *Store) HasUnit(nameKey string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM units WHERE name_key = ?", nameKey).Scan(&n); err != nil {
		return false, fmt.Errorf("has unit: %w", err)
	}
	return n > 0, nil
}

// UnitKeyForFile returns the unit key owned by fileID. The second result is
// false when the file owns no key, for example because a later file
// declaring the same unit replaced it.
func (s *Store) UnitKeyForFile(fileID int64) (string, bool, error) {
	var key string
	err := s.db.QueryRow("SELECT name_key FROM units WHERE file_id = ? LIMIT 1", fileID).Scan(&key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("unit key for file: %w", err)
	}
	return key, true, nil
}

// Units returns every unit entry ordered by key.
func (s *Store) Units() ([]*Unit, error) {
	rows, err := s.db.Query("SELECT u.name_key, u.file_id, f.path FROM units u JOIN files f ON f.id = u.file_id ORDER BY u.name_key")
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	defer rows.Close()
	var units []*Unit
	for rows.Next() {
		u := &Unit{}
		if err := rows.Scan(&u.NameKey, &u.FileID, &u.Path); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
