package store

import "fmt"

// CommitBatch replaces a file's index contributions with the buffered ones
// inside a single transaction: the file's old stubs and unit mapping are
// removed, the buffered stubs inserted, and the unit key written last so it
// overrides any other file that declared the same unit.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, []int64{batch.FileID}); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for i := range batch.Stubs {
		rec := batch.Stubs[i]
		rec.FileID = batch.FileID
		realID, err := insertStubExec(tx, &rec)
		if err != nil {
			return fmt.Errorf("commit batch: stub %q: %w", rec.NameKey, err)
		}
		batch.Stubs[i].ID = realID
	}

	if batch.UnitKey != "" {
		if err := putUnitExec(tx, batch.UnitKey, batch.FileID); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
