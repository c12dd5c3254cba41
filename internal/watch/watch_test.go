package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNilCallback(t *testing.T) {
	t.Parallel()
	w, err := New(100*time.Millisecond, nil, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)
	assert.Nil(t, w)
}

func TestNew_RejectsBadGlob(t *testing.T) {
	t.Parallel()
	_, err := New(100*time.Millisecond, []string{"[unclosed"}, func(Batch) {})
	assert.Error(t, err)
}

func waitBatch(t *testing.T, ch <-chan Batch) Batch {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for batch")
		return Batch{}
	}
}

func TestWatcher_DebouncesSourceChanges(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan Batch, 4)
	w, err := New(150*time.Millisecond, []string{"__history"}, func(b Batch) { batches <- b })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	a := filepath.Join(dir, "A.pas")
	b := filepath.Join(dir, "B.pas")
	require.NoError(t, os.WriteFile(a, []byte("unit A;"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("unit B;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	got := waitBatch(t, batches)
	assert.Equal(t, []string{a, b}, got.Changed)
	assert.Empty(t, got.Removed)
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "A.pas")
	require.NoError(t, os.WriteFile(a, []byte("unit A;"), 0o644))

	batches := make(chan Batch, 4)
	w, err := New(100*time.Millisecond, nil, func(b Batch) { batches <- b })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.Remove(a))
	got := waitBatch(t, batches)
	assert.Equal(t, []string{a}, got.Removed)
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan Batch, 4)
	w, err := New(100*time.Millisecond, nil, func(b Batch) { batches <- b })
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher time to register the new directory.
	time.Sleep(200 * time.Millisecond)
	p := filepath.Join(sub, "C.pas")
	require.NoError(t, os.WriteFile(p, []byte("unit C;"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, c := range b.Changed {
				if c == p {
					return
				}
			}
		case <-deadline:
			t.Fatalf("never saw change for %s", p)
		}
	}
}

func TestShouldExcludeDir(t *testing.T) {
	t.Parallel()
	w, err := New(time.Second, []string{"__history", "backup*"}, func(Batch) {})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.shouldExcludeDir("/p/.git"))
	assert.True(t, w.shouldExcludeDir("/p/__history"))
	assert.True(t, w.shouldExcludeDir("/p/backup2024"))
	assert.False(t, w.shouldExcludeDir("/p/src"))
}

func TestRelevant(t *testing.T) {
	t.Parallel()
	assert.True(t, relevant("/p/A.pas"))
	assert.True(t, relevant("/p/App.DPR"))
	assert.True(t, relevant("/p/inc/defs.inc"))
	assert.False(t, relevant("/p/readme.md"))
}
