// Package activeblock implements the single, currently-writable in-memory
// buffer that receives Push calls before it is sealed into an immutable
// block (github.com/leviska/tagsearch/block, github.com/leviska/tagsearch/memblock).
package activeblock

import (
	"sort"
	"time"

	"github.com/leviska/tagsearch/block"
)

// Block accumulates pushed documents under monotonically non-decreasing
// timestamps. It is not safe for concurrent use; callers (the storage
// coordinator) guard it with their own lock.
type Block struct {
	index      map[string][]uint64
	keys       []string
	timestamps []uint64
	size       uint64
	seed       uint64
}

// New creates an empty Block whose first pushed document will be stamped
// no earlier than seed.
//
// seed should be the last timestamp of the most recently sealed block, not
// a fixed 0: clamping a fresh block's first timestamp to its predecessor's
// last one is what keeps timestamps non-decreasing across a rotation, not
// just within a single Block's lifetime.
func New(seed uint64) *Block {
	return &Block{
		index: make(map[string][]uint64),
		seed:  seed,
	}
}

// Push appends one document. Its timestamp is max(wall-clock-now, the
// previous timestamp pushed to this block or its seed), so the
// timestamps sequence is always non-decreasing even if the wall clock
// regresses between calls.
func (b *Block) Push(key string, tags []string) {
	now := uint64(time.Now().UnixMilli()) //nolint:gosec

	last := b.seed
	if n := len(b.timestamps); n > 0 {
		last = b.timestamps[n-1]
	}
	ts := now
	if ts < last {
		ts = last
	}

	id := uint64(len(b.keys)) //nolint:gosec
	b.keys = append(b.keys, key)
	b.timestamps = append(b.timestamps, ts)

	for _, tag := range tags {
		b.index[tag] = append(b.index[tag], id)
	}
	b.size += uint64(len(tags)) //nolint:gosec
}

// Size returns the cumulative (document, tag) pair count pushed so far;
// the storage coordinator rotates the active block once this reaches its
// configured threshold.
func (b *Block) Size() uint64 {
	return b.size
}

// LastTimestamp returns the most recent timestamp pushed, or the seed if
// nothing has been pushed yet. Used to seed the next active block after a
// rotation.
func (b *Block) LastTimestamp() uint64 {
	if n := len(b.timestamps); n > 0 {
		return b.timestamps[n-1]
	}
	return b.seed
}

// Clone returns an independent deep copy of b, used by the storage
// iterator to snapshot the active block under a shared lock without
// blocking concurrent Push calls for the snapshot's lifetime.
func (b *Block) Clone() *Block {
	clone := &Block{
		index:      make(map[string][]uint64, len(b.index)),
		keys:       append([]string(nil), b.keys...),
		timestamps: append([]uint64(nil), b.timestamps...),
		size:       b.size,
		seed:       b.seed,
	}
	for tag, postings := range b.index {
		clone.index[tag] = append([]uint64(nil), postings...)
	}

	return clone
}

// Seal snapshots the accumulated tag map as two parallel, lexicographically
// tag-ordered sequences and returns the result as block.Data, ready to be
// merged into the in-memory compaction queue.
//
// Because ids are assigned monotonically as documents are pushed, every
// posting list built by Push is already sorted ascending, so Seal needs no
// further sorting of the posting lists themselves, only of the tag
// sequence they're keyed by.
func (b *Block) Seal() block.Data {
	tags := make([]string, 0, len(b.index))
	for tag := range b.index {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	index := make([][]uint64, len(tags))
	for i, tag := range tags {
		index[i] = b.index[tag]
	}

	return block.Data{
		Tags:       tags,
		Keys:       b.keys,
		Timestamps: b.timestamps,
		Index:      index,
	}
}
