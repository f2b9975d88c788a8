// Package block implements the on-disk block format: a header-then-content
// binary layout for one sealed set of documents and their inverted tag
// index, plus the in-memory representation (Data) shared by the active,
// in-memory and on-disk tiers.
//
// Layout, within one contiguous region starting at absolute offset Start:
//
//  1. A reserved header region of HeaderSize(n) bytes, n = number of tags.
//  2. tags: the tag sequence.
//  3. keys: the document key sequence.
//  4. timestamps: the per-document timestamp sequence.
//  5. n delta-encoded posting lists, one per tag, in tag order.
//
// Several blocks can be concatenated in the same stream: the writer always
// leaves the stream positioned at Start+Size, so the next Write call picks
// up exactly where the previous block ended.
package block

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/leviska/tagsearch/compress"
	"github.com/leviska/tagsearch/errs"
	"github.com/leviska/tagsearch/format"
	"github.com/leviska/tagsearch/internal/pool"
)

// Data is the fully-materialized content of one block: every document key,
// its timestamp, the sorted tag sequence and, for each tag, the posting
// list of document ordinals carrying it.
//
// Invariants: len(Tags) == len(Index); every ordinal in Index[i] is <
// len(Keys); len(Keys) == len(Timestamps).
type Data struct {
	Tags       []string
	Keys       []string
	Timestamps []uint64
	Index      [][]uint64
}

// Range returns the inclusive timestamp range covered by d, or (0, 0) for
// an empty block.
func (d *Data) Range() (from, to uint64) {
	if len(d.Timestamps) == 0 {
		return 0, 0
	}
	return d.Timestamps[0], d.Timestamps[len(d.Timestamps)-1]
}

// Size returns the total number of (document, tag) pairs recorded in d,
// i.e. the sum of every posting list's length.
func (d *Data) Size() uint64 {
	var n uint64
	for _, idx := range d.Index {
		n += uint64(len(idx))
	}
	return n
}

// Merge combines two time-adjacent, non-overlapping blocks into one, with
// a's documents preceding b's.
//
// If the operands are out of order (b's range precedes a's), Merge swaps
// them before combining, so Merge is commutative for any pair of blocks
// that don't overlap. If the ranges genuinely overlap, Merge panics: that
// indicates a caller passed two blocks that were never meant to sit
// adjacently in a single tier, which is a programmer error, not a
// recoverable one.
func Merge(a, b Data) Data {
	if len(a.Keys) == 0 {
		return b
	}
	if len(b.Keys) == 0 {
		return a
	}

	aFrom, aTo := a.Range()
	bFrom, bTo := b.Range()

	if aTo > bFrom {
		if bTo > aFrom {
			panic(fmt.Errorf("%w: ranges [%d,%d] and [%d,%d] intersect", errs.ErrBlockOverlap, aFrom, aTo, bFrom, bTo))
		}
		return Merge(b, a)
	}

	shift := uint64(len(a.Keys))

	postingsByTag := make(map[string][]uint64, len(a.Tags)+len(b.Tags))
	for i, tag := range a.Tags {
		postingsByTag[tag] = append(postingsByTag[tag], a.Index[i]...)
	}
	for i, tag := range b.Tags {
		shifted := make([]uint64, len(b.Index[i]))
		for j, ord := range b.Index[i] {
			shifted[j] = ord + shift
		}
		postingsByTag[tag] = append(postingsByTag[tag], shifted...)
	}

	tags := make([]string, 0, len(postingsByTag))
	for tag := range postingsByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	index := make([][]uint64, len(tags))
	for i, tag := range tags {
		index[i] = postingsByTag[tag]
	}

	merged := Data{
		Tags:       tags,
		Keys:       append(append([]string{}, a.Keys...), b.Keys...),
		Timestamps: append(append([]uint64{}, a.Timestamps...), b.Timestamps...),
		Index:      index,
	}

	return merged
}

// Write serializes data into stream at its current position, reserving a
// HeaderSize(len(data.Tags))-byte header up front, writing the content
// sections after it, then seeking back to fill in the header once the
// final offsets and block size are known.
//
// On success, stream is left positioned at Start+Size, ready for the next
// block to be written. If the encoded header would not fit in the
// reserved region, Write panics: that's a codec bug (the HeaderSize bound
// violated), not a recoverable condition.
func Write(stream io.WriteSeeker, data Data, compression format.CompressionType) (Header, error) {
	codec, err := compress.CreateCodec(compression, "block")
	if err != nil {
		return Header{}, err
	}

	var h Header
	h.IndexOffs = make([]uint64, len(data.Index))

	start, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return Header{}, fmt.Errorf("tagsearch: seek current: %w", err)
	}
	h.Start = uint64(start) //nolint:gosec

	headerSize := HeaderSize(len(data.Index))
	pos, err := stream.Seek(int64(headerSize), io.SeekCurrent) //nolint:gosec
	if err != nil {
		return Header{}, fmt.Errorf("tagsearch: reserve header: %w", err)
	}
	h.TagsOff = uint64(pos) //nolint:gosec

	// The compression marker itself is written raw, uncompressed, so a
	// reader can learn which codec to use before it decompresses anything.
	if _, err := stream.Write([]byte{byte(compression)}); err != nil {
		return Header{}, fmt.Errorf("tagsearch: write compression marker: %w", err)
	}
	if err := writeSection(stream, codec, func(buf *pool.ByteBuffer) error {
		return writeStringSeq(buf, data.Tags)
	}); err != nil {
		return Header{}, err
	}

	if pos, err = stream.Seek(0, io.SeekCurrent); err != nil {
		return Header{}, fmt.Errorf("tagsearch: seek current: %w", err)
	}
	h.KeysOff = uint64(pos) //nolint:gosec
	if err := writeSection(stream, codec, func(buf *pool.ByteBuffer) error {
		return writeStringSeq(buf, data.Keys)
	}); err != nil {
		return Header{}, err
	}

	if pos, err = stream.Seek(0, io.SeekCurrent); err != nil {
		return Header{}, fmt.Errorf("tagsearch: seek current: %w", err)
	}
	h.TimestampsOff = uint64(pos) //nolint:gosec
	if err := writeSection(stream, codec, func(buf *pool.ByteBuffer) error {
		return writeUint64Seq(buf, data.Timestamps)
	}); err != nil {
		return Header{}, err
	}

	for i, postings := range data.Index {
		if pos, err = stream.Seek(0, io.SeekCurrent); err != nil {
			return Header{}, fmt.Errorf("tagsearch: seek current: %w", err)
		}
		h.IndexOffs[i] = uint64(pos) //nolint:gosec

		postings := postings
		if err := writeSection(stream, codec, func(buf *pool.ByteBuffer) error {
			return writePostings(buf, postings)
		}); err != nil {
			return Header{}, err
		}
	}

	end, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return Header{}, fmt.Errorf("tagsearch: seek current: %w", err)
	}
	h.Size = uint64(end) - h.Start //nolint:gosec
	h.From, h.To = data.Range()

	if _, err := stream.Seek(start, io.SeekStart); err != nil {
		return Header{}, fmt.Errorf("tagsearch: seek to header: %w", err)
	}
	encoded := h.encode()
	if uint64(len(encoded)) > headerSize { //nolint:gosec
		panic(fmt.Errorf("%w: header of %d bytes overflows reserved %d bytes", errs.ErrHeaderOverflow, len(encoded), headerSize))
	}
	if _, err := stream.Write(encoded); err != nil {
		return Header{}, fmt.Errorf("tagsearch: write header: %w", err)
	}

	if _, err := stream.Seek(int64(h.Start+h.Size), io.SeekStart); err != nil { //nolint:gosec
		return Header{}, fmt.Errorf("tagsearch: seek past block: %w", err)
	}

	return h, nil
}

// writeSection runs encode against a pooled scratch buffer, compresses the
// result with codec and writes it to w. Sections are compressed
// independently so ReadIndex can decompress exactly one posting list
// without touching its neighbours.
//
// The scratch buffer comes from internal/pool rather than a fresh
// bytes.Buffer: Write calls this once per section (tags, keys, timestamps,
// each posting list), so a block with many tags would otherwise allocate
// and discard many short-lived buffers per flush.
func writeSection(w io.Writer, codec compress.Codec, encode func(*pool.ByteBuffer) error) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := encode(buf); err != nil {
		return err
	}

	compressed, err := codec.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("tagsearch: compress section: %w", err)
	}

	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("tagsearch: write section: %w", err)
	}

	return nil
}

// Meta holds the tags/keys/timestamps decoded by ReadMeta. Posting lists
// are intentionally absent: callers materialize them on demand via
// ReadIndex, keyed by tag ordinal.
type Meta struct {
	Tags        []string
	Keys        []string
	Timestamps  []uint64
	Compression format.CompressionType
}

// ReadMeta seeks to and decodes the tags, keys and timestamps sections
// named by h. It does not touch any posting list.
func ReadMeta(stream io.ReadSeeker, h Header) (Meta, error) {
	if _, err := stream.Seek(int64(h.TagsOff), io.SeekStart); err != nil { //nolint:gosec
		return Meta{}, fmt.Errorf("tagsearch: seek to tags: %w", err)
	}
	var tagByte [1]byte
	if _, err := io.ReadFull(stream, tagByte[:]); err != nil {
		return Meta{}, fmt.Errorf("%w: reading compression marker: %v", errs.ErrShortRead, err)
	}
	compression := format.CompressionType(tagByte[0])

	codec, err := compress.CreateCodec(compression, "block")
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", errs.ErrUnsupportedCompression, err)
	}

	tags, err := readSection(stream, codec, h.KeysOff-(h.TagsOff+1), readStringSeq)
	if err != nil {
		return Meta{}, fmt.Errorf("tagsearch: read tags: %w", err)
	}

	if _, err := stream.Seek(int64(h.KeysOff), io.SeekStart); err != nil { //nolint:gosec
		return Meta{}, fmt.Errorf("tagsearch: seek to keys: %w", err)
	}
	keys, err := readSection(stream, codec, h.TimestampsOff-h.KeysOff, readStringSeq)
	if err != nil {
		return Meta{}, fmt.Errorf("tagsearch: read keys: %w", err)
	}

	tsEnd := h.Start + h.Size
	if len(h.IndexOffs) > 0 {
		tsEnd = h.IndexOffs[0]
	}
	if _, err := stream.Seek(int64(h.TimestampsOff), io.SeekStart); err != nil { //nolint:gosec
		return Meta{}, fmt.Errorf("tagsearch: seek to timestamps: %w", err)
	}
	timestamps, err := readSection(stream, codec, tsEnd-h.TimestampsOff, readUint64Seq)
	if err != nil {
		return Meta{}, fmt.Errorf("tagsearch: read timestamps: %w", err)
	}

	return Meta{Tags: tags, Keys: keys, Timestamps: timestamps, Compression: compression}, nil
}

// readSection reads the sectionLen compressed bytes at the stream's
// current position, decompresses with codec, and decodes the result with
// decode.
func readSection[T any](stream io.Reader, codec compress.Codec, sectionLen uint64, decode func(io.Reader) (T, error)) (T, error) {
	var zero T

	raw := make([]byte, sectionLen)
	if _, err := io.ReadFull(stream, raw); err != nil {
		return zero, fmt.Errorf("%w: %v", errs.ErrShortRead, err)
	}

	data, err := codec.Decompress(raw)
	if err != nil {
		return zero, fmt.Errorf("decompress: %w", err)
	}

	return decode(bytes.NewReader(data))
}

// ReadIndex materializes the posting list for tag ordinal i, seeking to
// its recorded offset and reversing the delta encoding.
//
// sectionLen bounds how many on-disk bytes to read for this list: the gap
// to the next list's offset, or to the end of the block for the last one.
// Passing an index past the block's own posting-list count is a
// programmer error and panics rather than returning an error, since it
// cannot happen through any documented code path.
func ReadIndex(stream io.ReadSeeker, h Header, compression format.CompressionType, i int) ([]uint64, error) {
	if i < 0 || i >= len(h.IndexOffs) {
		panic(fmt.Sprintf("tagsearch: posting index %d out of range [0,%d)", i, len(h.IndexOffs)))
	}

	codec, err := compress.CreateCodec(compression, "block")
	if err != nil {
		return nil, err
	}

	end := h.Start + h.Size
	if i+1 < len(h.IndexOffs) {
		end = h.IndexOffs[i+1]
	}

	if _, err := stream.Seek(int64(h.IndexOffs[i]), io.SeekStart); err != nil { //nolint:gosec
		return nil, fmt.Errorf("tagsearch: seek to posting list %d: %w", i, err)
	}

	postings, err := readSection(stream, codec, end-h.IndexOffs[i], readPostings)
	if err != nil {
		return nil, fmt.Errorf("tagsearch: read posting list %d: %w", i, err)
	}

	return postings, nil
}

// UpdateIndex overwrites the on-disk posting list for tag ordinal i in
// place. This is safe only when the new encoding occupies exactly the
// same number of bytes as the one it replaces, so it is not called
// anywhere in the current write/compaction paths; reserved for future
// merge-in-place use.
func UpdateIndex(stream io.WriteSeeker, h Header, compression format.CompressionType, i int, postings []uint64) error {
	if i < 0 || i >= len(h.IndexOffs) {
		panic(fmt.Sprintf("tagsearch: posting index %d out of range [0,%d)", i, len(h.IndexOffs)))
	}

	codec, err := compress.CreateCodec(compression, "block")
	if err != nil {
		return err
	}

	if _, err := stream.Seek(int64(h.IndexOffs[i]), io.SeekStart); err != nil { //nolint:gosec
		return fmt.Errorf("tagsearch: seek to posting list %d: %w", i, err)
	}

	return writeSection(stream, codec, func(buf *pool.ByteBuffer) error {
		return writePostings(buf, postings)
	})
}
