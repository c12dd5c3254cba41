package store

import "sync"

// BatchedStore buffers one file's index contributions in memory. It
// implements DataStore so extraction can write to it without knowing
// whether it is hitting SQLite or a buffer; CommitBatch applies the buffer
// in a single transaction.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	FileID int64

	mu      sync.Mutex
	Stubs   []StubRecord
	UnitKey string

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty buffer for fileID.
func NewBatchedStore(fileID int64) *BatchedStore {
	return &BatchedStore{
		FileID:     fileID,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertStub(rec *StubRecord) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	rec.ID = fakeID
	b.Stubs = append(b.Stubs, *rec)
	return fakeID, nil
}

// PutUnit records the file's unit key. A file owns at most one key; a
// later call replaces the earlier one.
func (b *BatchedStore) PutUnit(nameKey string, _ int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UnitKey = nameKey
	return nil
}
