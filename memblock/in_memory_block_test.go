package memblock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leviska/tagsearch/block"
	"github.com/leviska/tagsearch/searchblock"
)

func TestMergeOrderIndependence(t *testing.T) {
	a := New(block.Data{
		Tags:       []string{"tag0"},
		Keys:       []string{"key0", "key1"},
		Timestamps: []uint64{0, 1},
		Index:      [][]uint64{{0, 1}},
	})
	b := New(block.Data{
		Tags:       []string{"tag0"},
		Keys:       []string{"key2", "key3"},
		Timestamps: []uint64{2, 3},
		Index:      [][]uint64{{0, 1}},
	})

	ab := Merge(a, b)
	ba := Merge(b, a)

	require.Equal(t, ab.Keys(), ba.Keys())
	require.Equal(t, []string{"key0", "key1", "key2", "key3"}, ab.Keys())
}

func TestBlockImplementsSearchBlock(t *testing.T) {
	b := New(block.Data{
		Tags:       []string{"tag0", "tag1"},
		Keys:       []string{"key0"},
		Timestamps: []uint64{0},
		Index:      [][]uint64{{0}, nil},
	})

	var sb searchblock.Block = b
	require.Equal(t, searchblock.TypeInMemory, sb.BlockType())

	postings, ok := sb.TryGetIndex(0)
	require.True(t, ok)
	require.Equal(t, []uint64{0}, postings)

	postings, ok = sb.TryGetIndex(1)
	require.True(t, ok, "in-memory blocks never report an unloaded posting list")
	require.Empty(t, postings)

	_, err := sb.ReadIndex(0)
	require.NoError(t, err, "ReadIndex must never perform I/O for an in-memory block")
}

func TestReadIndexPanicsOutOfRange(t *testing.T) {
	b := New(block.Data{Tags: []string{"tag0"}, Index: [][]uint64{{0}}})
	require.Panics(t, func() { _, _ = b.ReadIndex(5) })
}

func TestSize(t *testing.T) {
	b := New(block.Data{
		Tags:  []string{"tag0", "tag1"},
		Index: [][]uint64{{0, 1, 2}, {0}},
	})
	require.EqualValues(t, 4, b.Size())
}
