package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore(7)

	id1, err := batch.InsertStub(&StubRecord{NameKey: "tfoo", Offset: 1})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertStub(&StubRecord{NameKey: "tbar", Offset: 2})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, batch.Stubs, 2)
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	batch := NewBatchedStore(1)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, _ = batch.InsertStub(&StubRecord{NameKey: "t", Offset: offset})
		}(i)
	}
	wg.Wait()
	assert.Len(t, batch.Stubs, 50)
}

func TestCommitBatch_ReplacesPreviousContributions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.pas")
	insertTestStub(t, s, f.ID, "told", 1)
	require.NoError(t, s.PutUnit("old", f.ID))

	batch := NewBatchedStore(f.ID)
	_, err := batch.InsertStub(&StubRecord{NameKey: "tnew", Offset: 4, Data: []byte{1}})
	require.NoError(t, err)
	require.NoError(t, batch.PutUnit("new", f.ID))

	require.NoError(t, s.CommitBatch(batch))

	old, err := s.FindTypes("told")
	require.NoError(t, err)
	assert.Empty(t, old)

	recs, err := s.FindTypes("tnew")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, f.ID, recs[0].FileID)
	assert.Positive(t, batch.Stubs[0].ID, "committed IDs are real")

	ok, err := s.HasUnit("old")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.HasUnit("new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommitBatch_UnitOverridesOtherFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a/Foo.pas")
	b := insertTestFile(t, s, "/b/Foo.pas")
	require.NoError(t, s.PutUnit("foo", a.ID))

	batch := NewBatchedStore(b.ID)
	require.NoError(t, batch.PutUnit("foo", b.ID))
	require.NoError(t, s.CommitBatch(batch))

	owner, err := s.UnitFile("foo")
	require.NoError(t, err)
	assert.Equal(t, b.ID, owner.ID)
}
