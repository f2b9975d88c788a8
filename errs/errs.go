// Package errs defines the sentinel error values shared across the storage
// core packages.
package errs

import "errors"

var (
	// ErrShortRead is returned when a stream yields fewer bytes than a
	// section header claims it should.
	ErrShortRead = errors.New("tagsearch: short read")

	// ErrCorruptHeader is returned when a block header fails to decode or
	// its recorded start offset does not match the requested offset.
	ErrCorruptHeader = errors.New("tagsearch: corrupt block header")

	// ErrCorruptSection is returned when a tags/keys/timestamps/posting
	// section fails to decode.
	ErrCorruptSection = errors.New("tagsearch: corrupt block section")

	// ErrUnsupportedCompression is returned when a header names a
	// compression type the running binary has no codec for.
	ErrUnsupportedCompression = errors.New("tagsearch: unsupported compression type")

	// ErrIndexNotLoaded names a posting-list slot that was never populated.
	// No tier returns it: the active snapshot and in-memory blocks keep
	// every posting list resident, and their ReadIndex panics on an
	// out-of-range ordinal instead of returning an error.
	ErrIndexNotLoaded = errors.New("tagsearch: posting list not loaded")

	// ErrClosed is returned by Push/PushBatch once Stop has been called.
	ErrClosed = errors.New("tagsearch: storage is closed")

	// ErrHeaderOverflow is the panic value used when an encoded header
	// would not fit in its HeaderSize(n)-byte reserved region. That bound
	// is computed from the codec's fixed-width encoding, so exceeding it
	// means the codec itself is inconsistent, not a recoverable input error.
	ErrHeaderOverflow = errors.New("tagsearch: encoded header overflows its reserved size")

	// ErrBlockOverlap is the panic value used when Merge is asked to
	// combine two blocks whose timestamp ranges intersect. Adjacent tiers
	// never produce overlapping ranges, so seeing this means a caller
	// passed blocks that were never meant to sit next to each other.
	ErrBlockOverlap = errors.New("tagsearch: merge operands have overlapping timestamp ranges")
)
