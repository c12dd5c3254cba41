package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the name and unit indexes.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  unit_key        TEXT NOT NULL DEFAULT '',
  read_only       BOOLEAN NOT NULL DEFAULT FALSE,
  last_indexed    TIMESTAMP
);

-- NameIndex: one row per (file, definition offset); name_key is lowercase.
CREATE TABLE IF NOT EXISTS type_stubs (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name_key        TEXT NOT NULL,
  name_offset     INTEGER NOT NULL,
  data            BLOB NOT NULL,
  UNIQUE (file_id, name_offset)
);

-- UnitIndex: last writer for a unit name wins.
CREATE TABLE IF NOT EXISTS units (
  name_key        TEXT PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_type_stubs_name ON type_stubs(name_key);
CREATE INDEX IF NOT EXISTS idx_type_stubs_file ON type_stubs(file_id);
CREATE INDEX IF NOT EXISTS idx_units_file ON units(file_id);
`

// DeleteFileData transactionally removes a file's index contributions.
// The file row itself is kept.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, []int64{fileID}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFiles removes the given files and everything indexed for them.
func (s *Store) DeleteFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileIDs); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id IN ("+placeholderList(len(fileIDs))+")", int64sToArgs(fileIDs)...); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return tx.Commit()
}

// deleteFileDataTx removes the stubs and unit rows of fileIDs. A unit key
// they owned passes to the most recently indexed remaining file that
// declares the same unit, so an earlier declarer regains it.
func deleteFileDataTx(tx *sql.Tx, fileIDs []int64) error {
	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)

	orphaned, err := unitKeysTx(tx, "SELECT name_key FROM units WHERE file_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("delete file data: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM type_stubs WHERE file_id IN (" + placeholders + ")",
		"DELETE FROM units WHERE file_id IN (" + placeholders + ")",
	} {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}

	reassign := `INSERT OR REPLACE INTO units (name_key, file_id)
		SELECT unit_key, id FROM files
		WHERE unit_key = ? AND id NOT IN (` + placeholders + `)
		ORDER BY last_indexed DESC, id DESC LIMIT 1`
	for _, key := range orphaned {
		if _, err := tx.Exec(reassign, append([]any{key}, args...)...); err != nil {
			return fmt.Errorf("delete file data: reassign unit %q: %w", key, err)
		}
	}
	return nil
}

func unitKeysTx(tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Reset removes every file, stub and unit, leaving metadata in place. Used
// when persisted stubs can no longer be decoded.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM type_stubs",
		"DELETE FROM units",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	if _, err := s.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
