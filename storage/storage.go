// Package storage coordinates the three storage tiers (a single mutable
// active block, a sorted in-memory compaction queue, and a set of
// disk-resident block files) behind a Push/PushBatch/Iter/Stop API.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/leviska/tagsearch/activeblock"
	"github.com/leviska/tagsearch/compaction"
	"github.com/leviska/tagsearch/diskblock"
	"github.com/leviska/tagsearch/errs"
	"github.com/leviska/tagsearch/memblock"
	"github.com/leviska/tagsearch/searchblock"
)

// Document is one (key, tags) pair submitted to Push or PushBatch.
type Document struct {
	Key  string
	Tags []string
}

// StopFunc stops a Storage's background worker and releases its open file
// handles. Calling it more than once is a no-op.
type StopFunc func()

// Storage is the coordinator: an active block accepting writes, a sorted
// queue of in-memory blocks awaiting compaction, and the set of block
// files already flushed to disk. Every tier is guarded by its own
// sync.RWMutex, always acquired in the order active, compact, files, so
// Push and Iter never deadlock against each other.
type Storage struct {
	cfg *Config

	activeMu sync.RWMutex
	active   *activeblock.Block

	compactMu sync.RWMutex
	compact   []*memblock.Block

	filesMu sync.RWMutex
	files   []*diskblock.File

	notify  chan struct{}
	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup

	flushFailures atomic.Int64
}

// New creates a Storage rooted at dataDir, rotating the active block once
// it reaches maxActiveSize (document, tag) pairs and flushing a merged
// in-memory block to disk once it exceeds maxBlockSize.
//
// Any "*.index" files already present in dataDir are opened and their
// headers loaded (not their content, which stays lazy) so a process
// restart resumes search over blocks flushed by a previous run.
func New(dataDir string, maxActiveSize, maxBlockSize uint64, opts ...Option) (*Storage, StopFunc, error) {
	cfg, err := newConfig(dataDir, maxActiveSize, maxBlockSize, opts...)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("tagsearch: create data dir: %w", err)
	}

	files, err := loadExistingBlocks(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	var seed uint64
	if n := len(files); n > 0 {
		_, seed = files[n-1].Range()
	}

	s := &Storage{
		cfg:    cfg,
		active: activeblock.New(seed),
		files:  files,
		notify: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.concurrency; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s, s.Stop, nil
}

func loadExistingBlocks(dataDir string) ([]*diskblock.File, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "*"+diskblock.Extension))
	if err != nil {
		return nil, fmt.Errorf("tagsearch: glob existing blocks: %w", err)
	}

	files := make([]*diskblock.File, 0, len(matches))
	for _, path := range matches {
		f, err := diskblock.Open(path)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("tagsearch: open existing block %s: %w", path, err)
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		fromI, _ := files[i].Range()
		fromJ, _ := files[j].Range()
		return fromI < fromJ
	})

	return files, nil
}

// Push adds one document to the active block, blocking only long enough
// for the background worker to make room once the active block is full.
//
// A push that would make the active block full does not rotate it inline:
// rotation needs the same active lock the worker takes to seal and reset
// it, so the push that crosses the threshold notifies the worker instead,
// and any caller that finds the block already full cooperatively yields
// until the worker has rotated it. Returns errs.ErrClosed once Stop has
// been called.
func (s *Storage) Push(key string, tags []string) error {
	for {
		if s.stopped.Load() {
			return errs.ErrClosed
		}

		s.activeMu.Lock()
		if s.active.Size() < s.cfg.MaxActiveSize {
			s.active.Push(key, tags)
			full := s.active.Size() >= s.cfg.MaxActiveSize
			s.activeMu.Unlock()
			if full {
				s.notifyWorker()
			}
			return nil
		}
		s.activeMu.Unlock()

		runtime.Gosched()
	}
}

// PushBatch pushes every document in docs, in order, stopping at the
// first error.
func (s *Storage) PushBatch(docs []Document) error {
	for _, d := range docs {
		if err := s.Push(d.Key, d.Tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) notifyWorker() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Stop signals the background worker to perform one final saveActive pass
// (which rotates the active block only if it is full), waits for it to
// finish, and closes every open block file. Safe to call more than once;
// only the first call has any effect.
func (s *Storage) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	close(s.stopCh)
	s.wg.Wait()

	s.filesMu.Lock()
	for _, f := range s.files {
		_ = f.Close()
	}
	s.filesMu.Unlock()
}

// FlushFailures returns how many times a merged in-memory block failed to
// write to disk. A retry queue for failed flushes is left as a documented
// hook rather than an implemented mechanism; this counter is the interim
// observability story, a nonzero value means documents were accepted but
// their (document, tag) pairs are not yet, and may never be, durable on
// disk.
func (s *Storage) FlushFailures() int64 {
	return s.flushFailures.Load()
}

func (s *Storage) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.notify:
			s.saveActive()
		case <-s.stopCh:
			s.saveActive()
			return
		}
	}
}

// saveActive is the coordinator's core transaction: seal the active block
// if it's still full, reset it seeded from its own last timestamp, hand
// the sealed block to the compaction queue, and flush whatever the
// compaction pass decides has outgrown maxBlockSize.
//
// It's a no-op if the active block isn't (or is no longer) full, which
// happens when Stop fires the final pass on an already-drained Storage.
func (s *Storage) saveActive() {
	s.activeMu.Lock()
	if s.active.Size() < s.cfg.MaxActiveSize {
		s.activeMu.Unlock()
		return
	}
	sealed := s.active.Seal()
	s.active = activeblock.New(s.active.LastTimestamp())
	s.activeMu.Unlock()

	s.compactMu.Lock()
	s.compact = append(s.compact, memblock.New(sealed))
	list, flush := compaction.Compact(s.compact, s.cfg.MaxBlockSize)
	s.compact = list
	if flush == nil {
		s.compactMu.Unlock()
		return
	}

	// Take the files lock before releasing the compact lock, so blocks
	// handed off by successive compaction passes reach files in order.
	s.filesMu.Lock()
	s.compactMu.Unlock()
	defer s.filesMu.Unlock()
	s.flushBlock(flush)
}

// flushBlock writes b to disk and appends it to files. The caller holds
// filesMu.
func (s *Storage) flushBlock(b *memblock.Block) {
	f, err := diskblock.WriteNew(s.cfg.DataDir, b.Data(), s.cfg.compression)
	if err != nil {
		s.flushFailures.Add(1)
		from, to := b.Range()
		s.cfg.logger.Error("flush failed",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Error(err),
		)
		return
	}

	s.files = append(s.files, f)
}

// activeSearchBlock adapts a sealed snapshot of the active block to report
// searchblock.TypeActive instead of the TypeInMemory a plain memblock.Block
// would, so a StorageIter consumer can tell the tiers apart.
type activeSearchBlock struct {
	*memblock.Block
}

func (activeSearchBlock) BlockType() searchblock.Type { return searchblock.TypeActive }

// StorageIter walks every block across all three tiers newest-first: the
// active snapshot, then the compaction queue in reverse, then on-disk
// files in reverse, over a snapshot taken when Iter was called. Documents
// pushed after that point are not visible through it.
type StorageIter struct {
	blocks []searchblock.Block
	pos    int
}

// Next returns the next block in the iteration, or (nil, false) once
// every tier has been exhausted.
func (it *StorageIter) Next() (searchblock.Block, bool) {
	if it.pos >= len(it.blocks) {
		return nil, false
	}
	b := it.blocks[it.pos]
	it.pos++
	return b, true
}

// Len returns the total number of blocks the iterator will yield.
func (it *StorageIter) Len() int {
	return len(it.blocks)
}

// Iter snapshots all three tiers under their respective read locks, taken
// in the active, compact, files order (the same order Push and the
// background worker acquire them in, so Iter never participates in a
// deadlock with either).
//
// The active block is sealed into an immutable copy before it's handed
// back, so mutating the live active block afterwards (a concurrent Push)
// can't corrupt what the iterator returns. compact and files are stored
// oldest-first, so both are walked back to front to surface the active
// block's most recent tier first.
func (s *Storage) Iter() *StorageIter {
	s.activeMu.RLock()
	activeSnapshot := s.active.Clone()
	s.activeMu.RUnlock()

	s.compactMu.RLock()
	compactSnapshot := make([]*memblock.Block, len(s.compact))
	copy(compactSnapshot, s.compact)
	s.compactMu.RUnlock()

	s.filesMu.RLock()
	fileSnapshot := make([]*diskblock.File, len(s.files))
	copy(fileSnapshot, s.files)
	s.filesMu.RUnlock()

	blocks := make([]searchblock.Block, 0, 1+len(compactSnapshot)+len(fileSnapshot))
	blocks = append(blocks, activeSearchBlock{memblock.New(activeSnapshot.Seal())})
	for i := len(compactSnapshot) - 1; i >= 0; i-- {
		blocks = append(blocks, compactSnapshot[i])
	}
	for i := len(fileSnapshot) - 1; i >= 0; i-- {
		blocks = append(blocks, fileSnapshot[i])
	}

	return &StorageIter{blocks: blocks}
}
