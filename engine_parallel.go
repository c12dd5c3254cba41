package pascope

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/stub"
	"github.com/jward/pascope/internal/unit"
)

// workItem holds everything an extraction worker needs.
type workItem struct {
	path     string
	content  []byte
	hash     string
	readOnly bool
	file     *store.File
	batch    *store.BatchedStore
	stubs    int
}

// indexParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, prepare file records.
//	Phase B (parallel): Extract stubs and unit keys via a worker pool.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) indexParallel(ctx context.Context, ts []target) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []*workItem
	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, skip, err := e.prepareFile(t)
		if err != nil {
			errs = append(errs, e.fileError("prepare", t.path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	if len(items) > 0 {
		errs = append(errs, e.runWorkers(ctx, items)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) runWorkers(ctx context.Context, items []*workItem) []error {
	// ---- Phase B: Parallel extraction ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan *workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item *workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Extraction is pure; the BatchedStore per item handles write
			// isolation.
			for item := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{item: item, err: ctx.Err()}
					continue
				}
				resultCh <- result{item: item, err: e.extractFile(item)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	var errs []error
	committed := 0
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, e.fileError("extract", res.item.path, res.err))
			continue
		}
		if err := e.commitFile(res.item); err != nil {
			errs = append(errs, e.fileError("commit", res.item.path, err))
			continue
		}
		committed++
	}
	if committed > 0 {
		// Expansions depend on which units exist.
		e.analyzer.Purge()
	}
	return errs
}

// prepareFile does Phase A work for a single file: hash check and file
// record. Returns (item, skip, error). skip=true means the file is unchanged
// or not indexable.
func (e *Engine) prepareFile(t target) (*workItem, bool, error) {
	if !e.wanted(t.path) {
		return nil, true, nil
	}

	content, err := os.ReadFile(t.path)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(t.path)
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}

	// A file reachable from the project stays writable even when an extra
	// root covers it too.
	readOnly := t.readOnly && (existing == nil || existing.ReadOnly)
	if existing != nil && existing.Hash == hash && existing.ReadOnly == readOnly {
		e.metrics.FilesSkipped.Inc()
		return nil, true, nil // unchanged
	}

	item := &workItem{path: t.path, content: content, hash: hash, readOnly: readOnly, file: existing}
	if existing == nil {
		// Insert with an empty hash so a failed extraction is retried.
		f := &store.File{Path: t.path, ReadOnly: readOnly, LastIndexed: time.Now()}
		if _, err := e.store.InsertFile(f); err != nil {
			return nil, false, fmt.Errorf("insert file: %w", err)
		}
		item.file = f
	}
	item.batch = store.NewBatchedStore(item.file.ID)
	return item, false, nil
}

// extractFile derives a file's named stubs and unit key into its batch.
// Stubs without a name are dropped here and never reach the index.
func (e *Engine) extractFile(item *workItem) error {
	for _, s := range stub.Extract(item.content) {
		if !s.HasName() {
			continue
		}
		rec := &store.StubRecord{
			FileID:  item.file.ID,
			NameKey: s.Key(),
			Offset:  s.Offset,
			Data:    stub.Encode(s),
		}
		if _, err := item.batch.InsertStub(rec); err != nil {
			return err
		}
		item.stubs++
	}
	return item.batch.PutUnit(unit.NameFor(item.path, item.content), item.file.ID)
}

// commitFile applies a batch and records the new hash.
func (e *Engine) commitFile(item *workItem) error {
	if err := e.store.CommitBatch(item.batch); err != nil {
		return err
	}
	f := item.file
	f.Hash = item.hash
	f.UnitKey = item.batch.UnitKey
	f.ReadOnly = item.readOnly
	f.LastIndexed = time.Now()
	if err := e.store.UpdateFile(f); err != nil {
		return err
	}

	e.analyzer.Invalidate(item.path)
	e.metrics.FilesIndexed.Inc()
	e.metrics.StubsExtracted.Add(float64(item.stubs))
	e.logger.Debug().Str("path", item.path).Int("stubs", item.stubs).Str("unit", f.UnitKey).Msg("indexed file")
	return nil
}
