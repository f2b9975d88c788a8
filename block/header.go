package block

import (
	"fmt"
	"io"

	"github.com/leviska/tagsearch/errs"
)

// Header is the fixed-layout preamble written at the start of every block
// region. It records where each content section lives so a reader can seek
// straight to what it needs without decoding sections it doesn't want yet.
type Header struct {
	// Start is the absolute offset this block begins at; Write reserves
	// HeaderSize(len(IndexOffs)) bytes there before anything else.
	Start uint64
	// TagsOff, KeysOff, TimestampsOff are absolute offsets of their
	// respective content sections.
	TagsOff       uint64
	KeysOff       uint64
	TimestampsOff uint64
	// IndexOffs holds the absolute offset of each tag's posting list, in
	// the same order as the tags section.
	IndexOffs []uint64
	// From, To are the inclusive timestamp range covered by this block;
	// both are 0 for an empty block.
	From uint64
	To   uint64
	// Size is the total byte length of the block region, header included.
	Size uint64
}

// HeaderSize returns the number of bytes Write reserves for a header
// covering n posting lists.
//
// The bound is: 1 struct-level tag byte, 4 tagged uint64 fields (Start,
// TagsOff, KeysOff, TimestampsOff) at 9 bytes each, a 5-byte array header
// for IndexOffs, n tagged uint64 elements in IndexOffs at 9 bytes each, 2
// more tagged uint64 fields (From, To), and 1 more tagged uint64 field
// (Size). Because every tagged uint64 here is always written at its full
// fixed width (see encoding.go), this bound is exact, not just an upper
// bound: Write's encoded header is always precisely HeaderSize(n) bytes.
func HeaderSize(n int) uint64 {
	return 1 + 4*9 + 5 + uint64(n)*9 + 2*9 + 9 //nolint:gosec
}

// headerArity is the number of top-level fields in the encoded header:
// start, tags, keys, timestamps, index, from, to, size.
const headerArity = 8

func (h Header) encode() []byte {
	buf := make([]byte, 0, HeaderSize(len(h.IndexOffs)))
	buf = append(buf, 0x90|headerArity) // MessagePack fixarray tag for 8 elements.
	buf = putUint64(buf, h.Start)
	buf = putUint64(buf, h.TagsOff)
	buf = putUint64(buf, h.KeysOff)
	buf = putUint64(buf, h.TimestampsOff)
	buf = putArrayHeader(buf, uint64(len(h.IndexOffs)))
	for _, off := range h.IndexOffs {
		buf = putUint64(buf, off)
	}
	buf = putUint64(buf, h.From)
	buf = putUint64(buf, h.To)
	buf = putUint64(buf, h.Size)

	return buf
}

func decodeHeader(r io.Reader) (Header, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Header{}, fmt.Errorf("%w: reading header tag: %v", errs.ErrShortRead, err)
	}
	if tag[0] != 0x90|headerArity {
		return Header{}, fmt.Errorf("%w: expected header fixarray tag 0x%x, got 0x%x", errs.ErrCorruptHeader, 0x90|headerArity, tag[0])
	}

	var h Header
	var err error
	if h.Start, err = readUint64(r); err != nil {
		return Header{}, err
	}
	if h.TagsOff, err = readUint64(r); err != nil {
		return Header{}, err
	}
	if h.KeysOff, err = readUint64(r); err != nil {
		return Header{}, err
	}
	if h.TimestampsOff, err = readUint64(r); err != nil {
		return Header{}, err
	}

	n, err := readArrayHeader(r)
	if err != nil {
		return Header{}, err
	}
	h.IndexOffs = make([]uint64, n)
	for i := range h.IndexOffs {
		if h.IndexOffs[i], err = readUint64(r); err != nil {
			return Header{}, err
		}
	}

	if h.From, err = readUint64(r); err != nil {
		return Header{}, err
	}
	if h.To, err = readUint64(r); err != nil {
		return Header{}, err
	}
	if h.Size, err = readUint64(r); err != nil {
		return Header{}, err
	}

	return h, nil
}

// ReadHeader seeks to start and decodes the header located there,
// verifying that the header's own recorded Start matches the requested
// offset.
func ReadHeader(r io.ReadSeeker, start uint64) (Header, error) {
	if _, err := r.Seek(int64(start), io.SeekStart); err != nil { //nolint:gosec
		return Header{}, fmt.Errorf("tagsearch: seek to header at %d: %w", start, err)
	}

	h, err := decodeHeader(r)
	if err != nil {
		return Header{}, err
	}
	if h.Start != start {
		return Header{}, fmt.Errorf("%w: header claims start %d, expected %d", errs.ErrCorruptHeader, h.Start, start)
	}

	return h, nil
}
