package compress

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leviska/tagsearch/format"
)

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte("tag0\x00tag1\x00tag2 some repeated repeated repeated data")

	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CreateCodec(ct, "test section")
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, decompressed)
		})
	}
}

func TestCodecRoundTripEmptyPayload(t *testing.T) {
	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		codec, err := CreateCodec(ct, "test section")
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)

		decompressed, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Empty(t, decompressed)
	}
}

func TestLZ4RoundTripIncompressibleBlock(t *testing.T) {
	// Random bytes rarely shrink under LZ4; pierrec/lz4 signals that by
	// returning n == 0, err == nil from CompressBlock rather than an error.
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i*37 + 11)
	}

	codec := NewLZ4Compressor()
	compressed, err := codec.Compress(payload)
	require.NoError(t, err)

	decompressed, err := codec.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, payload, decompressed)
}

func TestCreateCodecUnsupportedType(t *testing.T) {
	_, err := CreateCodec(format.CompressionType(0xff), "tags")
	require.Error(t, err)
}

func TestGetCodecBuiltins(t *testing.T) {
	for _, ct := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		codec, err := GetCodec(ct)
		require.NoError(t, err)
		require.NotNil(t, codec)
	}
}

func TestGetCodecUnsupportedType(t *testing.T) {
	_, err := GetCodec(format.CompressionType(0xff))
	require.Error(t, err)
}
