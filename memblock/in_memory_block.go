// Package memblock implements the sealed, immutable in-memory block that
// sits on the storage coordinator's compaction queue: the result of
// sealing an active block, or of merging two adjacent sealed blocks.
package memblock

import (
	"github.com/leviska/tagsearch/block"
	"github.com/leviska/tagsearch/searchblock"
)

// Block is a sealed, immutable set of documents and their tag index, fully
// resident in memory. Every posting list is always materialized, so
// TryGetIndex never returns false and ReadIndex never performs I/O.
type Block struct {
	data block.Data
	size uint64
}

var _ searchblock.Block = (*Block)(nil)

// New wraps data as a sealed in-memory block, computing its size from the
// posting-list pair count.
func New(data block.Data) *Block {
	return &Block{data: data, size: data.Size()}
}

// Size returns the cumulative (document, tag) pair count, the quantity
// the compaction engine's size-ratio rule compares.
func (b *Block) Size() uint64 {
	return b.size
}

// Range returns the inclusive timestamp range this block covers.
func (b *Block) Range() (from, to uint64) {
	return b.data.Range()
}

// Data returns the underlying block.Data, e.g. for handing off to
// block.Write when this block is flushed to disk.
func (b *Block) Data() block.Data {
	return b.data
}

// Merge combines a (chronologically earlier) and b (later) into one new
// Block, leaving both operands untouched. It panics if their timestamp
// ranges overlap (block.Merge's invariant).
func Merge(a, b *Block) *Block {
	merged := block.Merge(a.data, b.data)
	return New(merged)
}

func (b *Block) Tags() []string { return b.data.Tags }
func (b *Block) Keys() []string { return b.data.Keys }

func (b *Block) TryGetIndex(i int) ([]uint64, bool) {
	if i < 0 || i >= len(b.data.Index) {
		return nil, false
	}
	return b.data.Index[i], true
}

func (b *Block) ReadIndex(i int) ([]uint64, error) {
	if i < 0 || i >= len(b.data.Index) {
		panic("memblock: posting index out of range")
	}
	return b.data.Index[i], nil
}

func (b *Block) BlockType() searchblock.Type { return searchblock.TypeInMemory }
