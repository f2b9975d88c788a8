// Package diskblock implements the on-disk, file-backed search tier: a
// block.Header plus lazily materialized posting lists backed by an open
// file handle.
package diskblock

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/leviska/tagsearch/block"
	"github.com/leviska/tagsearch/errs"
	"github.com/leviska/tagsearch/format"
	"github.com/leviska/tagsearch/internal/hash"
	"github.com/leviska/tagsearch/searchblock"
)

// Extension is the suffix given to every block file.
const Extension = ".index"

// File is a disk-resident block: its tags and keys are held in memory from
// the moment the file is opened or written (its timestamps only as the
// header's From/To range), but each posting list is read from disk only
// the first time it's asked for.
type File struct {
	mu     sync.RWMutex
	file   *os.File
	path   string
	header block.Header
	comp   format.CompressionType

	tags   []string
	keys   []string
	index  [][]uint64
	loaded []bool

	digest uint64
}

var _ searchblock.Block = (*File)(nil)

// WriteNew serializes data as a new block file under dir, named by a
// time-based UUID derived from the block's starting timestamp.
func WriteNew(dir string, data block.Data, compression format.CompressionType) (*File, error) {
	from, _ := data.Range()

	id, err := blockUUID(from)
	if err != nil {
		return nil, fmt.Errorf("tagsearch: generate block uuid: %w", err)
	}
	path := filepath.Join(dir, id.String()+Extension)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("tagsearch: create block file: %w", err)
	}

	header, err := block.Write(f, data, compression)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("tagsearch: write block: %w", err)
	}

	return &File{
		file:   f,
		path:   path,
		header: header,
		comp:   compression,
		tags:   data.Tags,
		keys:   data.Keys,
		index:  make([][]uint64, len(data.Tags)),
		loaded: make([]bool, len(data.Tags)),
		digest: tagDigest(data.Tags),
	}, nil
}

// Open loads an existing block file written by WriteNew, for resuming
// search over files left over from a previous process. One file per
// disk-resident block makes this a plain directory listing, no WAL
// required.
//
// Only the header and metadata sections are read eagerly; posting lists
// stay lazy exactly as they would for a freshly flushed block.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("tagsearch: open block file: %w", err)
	}

	header, err := block.ReadHeader(f, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("tagsearch: read block header: %w", err)
	}

	meta, err := block.ReadMeta(f, header)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("tagsearch: read block meta: %w", err)
	}

	return &File{
		file:   f,
		path:   path,
		header: header,
		comp:   meta.Compression,
		tags:   meta.Tags,
		keys:   meta.Keys,
		index:  make([][]uint64, len(meta.Tags)),
		loaded: make([]bool, len(meta.Tags)),
		digest: tagDigest(meta.Tags),
	}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.file.Close()
}

// Path returns the filesystem path this block was written to or opened
// from.
func (f *File) Path() string {
	return f.path
}

// Range returns the inclusive timestamp range this block covers.
func (f *File) Range() (from, to uint64) {
	return f.header.From, f.header.To
}

// Digest returns a fingerprint of the block's tag sequence, combining the
// xxHash64 of each tag in order; a cheap identity check for tests and
// logging that avoids comparing full tag slices.
func (f *File) Digest() uint64 {
	return f.digest
}

func (f *File) Tags() []string { return f.tags }
func (f *File) Keys() []string { return f.keys }

func (f *File) TryGetIndex(i int) ([]uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if i < 0 || i >= len(f.loaded) || !f.loaded[i] {
		return nil, false
	}
	return f.index[i], true
}

// ReadIndex returns the posting list for tag ordinal i, reading it from
// disk under an exclusive lock the first time it's asked for and caching
// it for every subsequent call. Takes a shared lock first and only
// upgrades to exclusive if the posting list isn't cached yet.
func (f *File) ReadIndex(i int) ([]uint64, error) {
	f.mu.RLock()
	if i >= 0 && i < len(f.loaded) && f.loaded[i] {
		postings := f.index[i]
		f.mu.RUnlock()
		return postings, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if i < 0 || i >= len(f.loaded) {
		panic(fmt.Sprintf("tagsearch: posting index %d out of range [0,%d)", i, len(f.loaded)))
	}
	if f.loaded[i] {
		return f.index[i], nil
	}

	postings, err := block.ReadIndex(f.file, f.header, f.comp, i)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCorruptSection, err)
	}

	f.index[i] = postings
	f.loaded[i] = true

	return postings, nil
}

func (f *File) BlockType() searchblock.Type { return searchblock.TypeFile }

func tagDigest(tags []string) uint64 {
	var h uint64
	for _, t := range tags {
		h ^= hash.ID(t) + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return h
}

// gregorianToUnixOffset100ns is the number of 100ns intervals between the
// UUID v1 epoch (1582-10-15) and the Unix epoch (1970-01-01), the
// standard constant used by every RFC 4122 v1 implementation.
const gregorianToUnixOffset100ns = 0x01B21DD213814000

// blockUUID derives a time-based (version 1) UUID from a block's starting
// timestamp with a zero node id. Unique across processes sharing a data
// directory only if their UUID contexts (here, the random clock sequence)
// differ.
//
// google/uuid's own NewUUID always stamps the wall clock at the time of
// the call, which would tie a block's filename to when it happened to be
// flushed rather than to the data it contains; this builds the same wire
// format directly so the time fields of the filename are derived from the
// block's starting timestamp instead. The clock sequence is random, so two
// calls with the same timestamp still yield different UUIDs.
func blockUUID(startTimestampMs uint64) (uuid.UUID, error) {
	ts100ns := startTimestampMs*10000 + gregorianToUnixOffset100ns

	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(ts100ns))
	binary.BigEndian.PutUint16(u[4:6], uint16(ts100ns>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(ts100ns>>48)&0x0fff|0x1000)

	var seq [2]byte
	if _, err := rand.Read(seq[:]); err != nil {
		return uuid.UUID{}, err
	}
	u[8] = seq[0]&0x3f | 0x80
	u[9] = seq[1]
	// Node id is left zero.

	return u, nil
}
