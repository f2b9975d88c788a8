// Package format holds the small set of wire-level enums shared between the
// block codec and the compression codecs, kept separate so compress does not
// need to import the block package to know what it's compressing for.
package format

// CompressionType identifies the payload compressor applied to a block's
// tags/keys/timestamps/posting sections before they hit disk.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1 // CompressionNone applies no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd applies Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 applies S2 (Snappy-compatible) compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 applies LZ4 compression.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
