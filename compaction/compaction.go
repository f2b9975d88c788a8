// Package compaction implements the size-tiered merge policy applied to
// the storage coordinator's in-memory block queue.
package compaction

import "github.com/leviska/tagsearch/memblock"

// sizeRatio is the compaction trigger: two adjacent blocks merge whenever
// the earlier one is smaller than sizeRatio times the later one. This
// yields a logarithmic number of size tiers. Fixed at 4 rather than exposed
// through Config.
const sizeRatio = 4

// Compact merges adjacent blocks at the end of list under the size-ratio
// rule, then checks whether the resulting tail block has grown past
// maxBlockSize.
//
// Returns the (possibly shortened) list with merges applied, and, if the
// last block now exceeds maxBlockSize, that block separately so the
// caller can flush it to disk (Compact flushes at most one block per
// call).
func Compact(list []*memblock.Block, maxBlockSize uint64) ([]*memblock.Block, *memblock.Block) {
	for len(list) >= 2 {
		prev := list[len(list)-2]
		last := list[len(list)-1]
		if prev.Size() >= sizeRatio*last.Size() {
			break
		}

		merged := memblock.Merge(prev, last)
		list = append(list[:len(list)-2], merged)
	}

	if len(list) == 0 {
		return list, nil
	}

	tail := list[len(list)-1]
	if tail.Size() <= maxBlockSize {
		return list, nil
	}

	return list[:len(list)-1], tail
}
