package store

import "time"

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Hash        string
	UnitKey     string
	ReadOnly    bool
	LastIndexed time.Time
}

// StubRecord is one NameIndex occurrence: the encoded stub plus the
// location the index attaches to it.
type StubRecord struct {
	ID       int64
	FileID   int64
	FilePath string // populated by queries that join files
	NameKey  string
	Offset   int
	Data     []byte
}

// Unit is one UnitIndex entry.
type Unit struct {
	NameKey string
	FileID  int64
	Path    string
}
