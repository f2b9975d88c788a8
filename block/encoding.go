package block

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/leviska/tagsearch/errs"
)

// Self-describing wire primitives used by both the block header and its
// content sections.
//
// The scheme is a trimmed-down, fixed-width subset of MessagePack: every
// u64 is always written as its widest form (a 1-byte type tag plus 8
// big-endian bytes),
// never the compact variable-width forms MessagePack also defines. That
// makes a header's encoded size a constant function of its field count
// instead of a function of the field values, which is what lets
// HeaderSize(n) be an exact bound rather than a loose estimate.
const (
	tagUint64 byte = 0xcf // MessagePack's fixed-width uint64 marker.
	tagArray  byte = 0xdd // MessagePack's array32 marker (4-byte BE count).
)

// putUint64 appends the tagged, fixed-width encoding of v to buf.
func putUint64(buf []byte, v uint64) []byte {
	buf = append(buf, tagUint64)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// putArrayHeader appends the tagged array-count marker for n elements.
func putArrayHeader(buf []byte, n uint64) []byte {
	buf = append(buf, tagArray)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(n)) //nolint:gosec
	return append(buf, tmp[:]...)
}

// readUint64 reads one tagged, fixed-width uint64 from r.
func readUint64(r io.Reader) (uint64, error) {
	var tmp [9]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("%w: reading tagged uint64: %v", errs.ErrShortRead, err)
	}
	if tmp[0] != tagUint64 {
		return 0, fmt.Errorf("%w: expected uint64 tag 0x%x, got 0x%x", errs.ErrCorruptSection, tagUint64, tmp[0])
	}

	return binary.BigEndian.Uint64(tmp[1:]), nil
}

// readArrayHeader reads one tagged array-count marker from r.
func readArrayHeader(r io.Reader) (uint64, error) {
	var tmp [5]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("%w: reading array header: %v", errs.ErrShortRead, err)
	}
	if tmp[0] != tagArray {
		return 0, fmt.Errorf("%w: expected array tag 0x%x, got 0x%x", errs.ErrCorruptSection, tagArray, tmp[0])
	}

	return uint64(binary.BigEndian.Uint32(tmp[1:])), nil
}

// writeUint64Seq writes a self-describing sequence of plain (non
// delta-encoded) uint64s: an array header followed by one tagged uint64
// per element. Used for the timestamps section, stored as a plain
// sequence rather than delta-encoded.
func writeUint64Seq(w io.Writer, values []uint64) error {
	buf := make([]byte, 0, 5+9*len(values))
	buf = putArrayHeader(buf, uint64(len(values)))
	for _, v := range values {
		buf = putUint64(buf, v)
	}
	_, err := w.Write(buf)
	return err
}

// readUint64Seq reads a sequence written by writeUint64Seq.
func readUint64Seq(r io.Reader) ([]uint64, error) {
	n, err := readArrayHeader(r)
	if err != nil {
		return nil, err
	}

	values := make([]uint64, n)
	for i := range values {
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return values, nil
}

// writeStringSeq writes a self-describing sequence of strings: an array
// header followed by, for each string, a tagged byte-length and the raw
// UTF-8 bytes. Uses a uint64 length prefix rather than a one-byte length,
// since tags and document keys are not bounded to 255 bytes.
func writeStringSeq(w io.Writer, values []string) error {
	size := 5
	for _, s := range values {
		size += 9 + len(s)
	}

	buf := make([]byte, 0, size)
	buf = putArrayHeader(buf, uint64(len(values)))
	for _, s := range values {
		buf = putUint64(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	_, err := w.Write(buf)
	return err
}

// readStringSeq reads a sequence written by writeStringSeq.
func readStringSeq(r io.Reader) ([]string, error) {
	n, err := readArrayHeader(r)
	if err != nil {
		return nil, err
	}

	values := make([]string, n)
	for i := range values {
		length, err := readUint64(r)
		if err != nil {
			return nil, err
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: reading string %d: %v", errs.ErrShortRead, i, err)
		}
		values[i] = string(data)
	}

	return values, nil
}

// writePostings writes one posting list using delta encoding: a tagged
// count, then the first ordinal as a plain uvarint followed by each gap
// to the next ordinal as a uvarint. Plain delta rather than delta-of-delta,
// and plain uvarint rather than zigzag, since postings only ever increase
// so every gap is non-negative.
func writePostings(w io.Writer, postings []uint64) error {
	buf := make([]byte, 0, 9+binary.MaxVarintLen64*len(postings))
	buf = putUint64(buf, uint64(len(postings)))

	var prev uint64
	var tmp [binary.MaxVarintLen64]byte
	for i, p := range postings {
		var gap uint64
		if i == 0 {
			gap = p
		} else {
			gap = p - prev
		}
		n := binary.PutUvarint(tmp[:], gap)
		buf = append(buf, tmp[:n]...)
		prev = p
	}

	_, err := w.Write(buf)
	return err
}

// readPostings reads a posting list written by writePostings, reversing
// the delta encoding by a running prefix sum.
func readPostings(r io.Reader) ([]uint64, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufByteReader{r}
	}

	postings := make([]uint64, n)
	var acc uint64
	for i := range postings {
		gap, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: reading posting %d: %v", errs.ErrCorruptSection, i, err)
		}
		if i == 0 {
			acc = gap
		} else {
			acc += gap
		}
		postings[i] = acc
	}

	return postings, nil
}

// bufByteReader adapts an io.Reader lacking ReadByte (as required by
// binary.ReadUvarint) into one that has it, one byte at a time. The block
// codec always hands readPostings a *bytes.Reader (see readSection), which
// already has ReadByte, but readPostings must not assume that.
type bufByteReader struct {
	io.Reader
}

func (b bufByteReader) ReadByte() (byte, error) {
	var tmp [1]byte
	if _, err := io.ReadFull(b.Reader, tmp[:]); err != nil {
		return 0, err
	}
	return tmp[0], nil
}
