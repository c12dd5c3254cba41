package store

// DataStore is the interface for extraction-phase writes. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement this interface.
type DataStore interface {
	InsertStub(rec *StubRecord) (int64, error)
	PutUnit(nameKey string, fileID int64) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
