package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewByteBuffer(t *testing.T) {
	bb := NewByteBuffer(1024)

	require.NotNil(t, bb)
	assert.Equal(t, 0, len(bb.B))
	assert.Equal(t, 1024, cap(bb.B))
}

func TestByteBuffer_WriteAndReset(t *testing.T) {
	bb := NewByteBuffer(BlockBufferDefaultSize)

	n, err := bb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), bb.Bytes())
	assert.Equal(t, 5, bb.Len())

	bb.Reset()
	assert.Equal(t, 0, bb.Len())
}

func TestByteBuffer_MustWrite(t *testing.T) {
	bb := NewByteBuffer(BlockBufferDefaultSize)

	bb.MustWrite([]byte("hello"))
	bb.MustWrite([]byte(" world"))

	assert.Equal(t, []byte("hello world"), bb.Bytes())
}

func TestByteBuffer_GrowPreservesData(t *testing.T) {
	bb := NewByteBuffer(BlockBufferDefaultSize)
	data := []byte("important data")
	bb.MustWrite(data)

	bb.Grow(BlockBufferDefaultSize * 2)

	assert.Equal(t, data, bb.Bytes())
	assert.GreaterOrEqual(t, cap(bb.B), len(data)+BlockBufferDefaultSize*2)
}

func TestByteBuffer_GrowSufficientCapacityNoop(t *testing.T) {
	bb := NewByteBuffer(BlockBufferDefaultSize)
	originalCap := cap(bb.B)

	bb.Grow(100)

	assert.Equal(t, originalCap, cap(bb.B))
}

func TestByteBufferPool_ReturnsResetBuffers(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)

	bb := p.Get()
	bb.MustWrite([]byte("data"))
	p.Put(bb)

	bb2 := p.Get()
	assert.Equal(t, 0, bb2.Len(), "buffers handed back out should be empty")
}

func TestByteBufferPool_DiscardsOversizedBuffers(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)

	bb := p.Get()
	bb.Grow(10000)
	require.Greater(t, cap(bb.B), 4096)
	p.Put(bb)

	bb2 := p.Get()
	assert.LessOrEqual(t, cap(bb2.B), 4096, "a buffer grown past maxThreshold must not be retained")
}

func TestByteBufferPool_PutNilIsNoop(t *testing.T) {
	p := NewByteBufferPool(1024, 4096)
	assert.NotPanics(t, func() { p.Put(nil) })
}

func TestDefaultPool_GetPut(t *testing.T) {
	bb := GetBuffer()
	require.NotNil(t, bb)
	assert.GreaterOrEqual(t, cap(bb.B), BlockBufferDefaultSize)

	bb.MustWrite([]byte("data"))
	PutBuffer(bb)
}

func TestByteBufferPool_ConcurrentAccess(t *testing.T) {
	const goroutines = 50
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				bb := GetBuffer()
				bb.MustWrite([]byte("data"))
				PutBuffer(bb)
			}
		}()
	}
	wg.Wait()
}
