package searchblock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leviska/tagsearch/searchblock"
)

type fakeBlock struct {
	tags    []string
	keys    []string
	index   [][]uint64
	loaded  []bool
	reads   []int
	failAt  int
	failErr error
}

func (f *fakeBlock) Tags() []string { return f.tags }
func (f *fakeBlock) Keys() []string { return f.keys }

func (f *fakeBlock) TryGetIndex(i int) ([]uint64, bool) {
	if f.loaded[i] {
		return f.index[i], true
	}
	return nil, false
}

func (f *fakeBlock) ReadIndex(i int) ([]uint64, error) {
	f.reads = append(f.reads, i)
	if i == f.failAt && f.failErr != nil {
		return nil, f.failErr
	}
	f.loaded[i] = true
	return f.index[i], nil
}

func (f *fakeBlock) BlockType() searchblock.Type { return searchblock.TypeFile }

func TestReadIndicesPrefersLoaded(t *testing.T) {
	b := &fakeBlock{
		tags:   []string{"tag0", "tag1", "tag2"},
		index:  [][]uint64{{0}, {1}, {2}},
		loaded: []bool{true, false, true},
		failAt: -1,
	}

	result, err := searchblock.ReadIndices(b, []int{0, 1, 2})
	require.NoError(t, err)
	require.Equal(t, [][]uint64{{0}, {1}, {2}}, result)
	require.Equal(t, []int{1}, b.reads, "only the unloaded ordinal should trigger ReadIndex")
}

func TestReadIndicesPropagatesError(t *testing.T) {
	wantErr := errors.New("disk error")
	b := &fakeBlock{
		tags:    []string{"tag0"},
		index:   [][]uint64{{0}},
		loaded:  []bool{false},
		failAt:  0,
		failErr: wantErr,
	}

	_, err := searchblock.ReadIndices(b, []int{0})
	require.ErrorIs(t, err, wantErr)
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "active", searchblock.TypeActive.String())
	require.Equal(t, "in-memory", searchblock.TypeInMemory.String())
	require.Equal(t, "file", searchblock.TypeFile.String())
}
