package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, maxActiveSize, maxBlockSize uint64, opts ...Option) *Storage {
	t.Helper()
	s, stop, err := New(t.TempDir(), maxActiveSize, maxBlockSize, opts...)
	require.NoError(t, err)
	t.Cleanup(stop)
	return s
}

func waitForWorker() {
	// The background worker drains on a buffered notifier channel rather
	// than synchronously with Push; give it a few scheduler slices to
	// catch up before asserting on tier state.
	for i := 0; i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
}

func TestStorageEndToEnd(t *testing.T) {
	s := newTestStorage(t, 3, 10)

	for i := 0; i < 15; i++ {
		err := s.Push(fmt.Sprintf("key%d", i), []string{"tag0", fmt.Sprintf("tag%d", i%3)})
		require.NoError(t, err)
	}

	waitForWorker()

	it := s.Iter()
	var totalDocs int
	var sawTag0 bool
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		totalDocs += len(b.Keys())
		for i, tag := range b.Tags() {
			postings, err := b.ReadIndex(i)
			require.NoError(t, err)
			for _, ord := range postings {
				require.Less(t, int(ord), len(b.Keys()))
			}
			if tag == "tag0" {
				sawTag0 = true
			}
		}
	}

	require.Equal(t, 15, totalDocs)
	require.True(t, sawTag0)
	require.Zero(t, s.FlushFailures())
}

// chronologicalKeys walks it newest-first (as Iter always does) and
// un-reverses the block order, while preserving each block's own
// insertion-ordered Keys(), to recover the full push order.
func chronologicalKeys(t *testing.T, it *StorageIter) []string {
	t.Helper()

	var blocks [][]string
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		blocks = append(blocks, append([]string(nil), b.Keys()...))
	}

	var keys []string
	for i := len(blocks) - 1; i >= 0; i-- {
		keys = append(keys, blocks[i]...)
	}
	return keys
}

func TestStorageIterNewestFirstAtEveryStep(t *testing.T) {
	s := newTestStorage(t, 3, 10)

	var pushed []string
	for i := 0; i < 15; i++ {
		key := fmt.Sprintf("key%d", i)
		require.NoError(t, s.Push(key, []string{"tag0", fmt.Sprintf("tag%d", i%3)}))
		pushed = append(pushed, key)

		waitForWorker()

		got := chronologicalKeys(t, s.Iter())
		require.Equal(t, pushed, got, "iter() after push %d must reconstruct every document pushed so far, in insertion order", i)
	}
}

func TestStorageRestartRecoversBlockFiles(t *testing.T) {
	dir := t.TempDir()

	s1, stop1, err := New(dir, 2, 4)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, s1.Push(fmt.Sprintf("key%d", i), []string{"tag0"}))
	}
	waitForWorker()
	stop1()

	s2, stop2, err := New(dir, 2, 4)
	require.NoError(t, err)
	defer stop2()

	var recovered int
	it := s2.Iter()
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		recovered += len(b.Keys())
	}
	require.Greater(t, recovered, 0, "documents flushed before restart must still be visible")
}

func TestStoragePushAfterStopFails(t *testing.T) {
	s, stop, err := New(t.TempDir(), 10, 10)
	require.NoError(t, err)
	stop()

	err = s.Push("key", []string{"tag0"})
	require.Error(t, err)
}

func TestStorageConcurrentIngest(t *testing.T) {
	s := newTestStorage(t, 50, 200)

	const workers = 100
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				err := s.Push(key, []string{"tag0", fmt.Sprintf("tag%d", i%7)})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	waitForWorker()

	it := s.Iter()
	var total int
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		total += len(b.Keys())
		for i := range b.Tags() {
			postings, err := b.ReadIndex(i)
			require.NoError(t, err)
			for _, ord := range postings {
				require.Less(t, int(ord), len(b.Keys()), "posting ordinal must never exceed its own block's key count")
			}
		}
	}
	require.Equal(t, workers*perWorker, total)
}
