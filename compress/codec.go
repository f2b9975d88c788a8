// Package compress provides the payload compressors applied to a block's
// tags, keys, timestamps and posting-list sections before they are written
// to disk.
//
// Compression is optional and orthogonal to the block codec: it runs after
// a section has already been encoded, so it never changes the
// section's logical content, only its on-disk byte length.
package compress

import (
	"fmt"

	"github.com/leviska/tagsearch/format"
)

// Compressor compresses a section's encoded bytes before they are written.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor for a matching algorithm.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions; every built-in compressor implements it.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec builds a Codec for the given compression type, naming target
// in the returned error for context (e.g. "timestamps", "posting list 3").
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in, stateless Codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}
