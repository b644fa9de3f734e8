package fragment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the block compression applied to column data.
type Compression uint8

const (
	// CompressionNone stores column blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored uncompressed.
const blockHeaderSize = 8

// maxDecodedBlockSize bounds the decoded size of a single column block.
const maxDecodedBlockSize = 1 << 31

var errBlockTooSmall = errors.New("block too small")

// compressBlock frames data, compressing it when that saves at least 10%.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var (
		compressed []byte
		err        error
	)

	switch c {
	case CompressionNone:
	case CompressionLZ4:
		compressed, err = compressBlockLZ4(data)
	case CompressionZSTD:
		compressed = compressBlockZSTD(data)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
	if err != nil {
		return nil, err
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0)
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

func compressBlockLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return compressed[:n], nil
}

func compressBlockZSTD(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil)
}

// decompressBlock decodes a framed block written with codec c.
func decompressBlock(data []byte, c Compression) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, errBlockTooSmall
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	body := data[blockHeaderSize:]

	if compressedSize == 0 {
		if uint32(len(body)) != uncompressedSize {
			return nil, fmt.Errorf("raw block holds %d bytes, header says %d", len(body), uncompressedSize)
		}
		return body, nil
	}
	if uint32(len(body)) != compressedSize {
		return nil, fmt.Errorf("compressed block holds %d bytes, header says %d", len(body), compressedSize)
	}
	if uint64(uncompressedSize) > maxDecodedBlockSize {
		return nil, fmt.Errorf("block size %d exceeds limit", uncompressedSize)
	}

	switch c {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, err
		}
		if n != int(uncompressedSize) {
			return nil, fmt.Errorf("lz4 block decoded to %d bytes, want %d", n, uncompressedSize)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		out, err := dec.DecodeAll(body, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, err
		}
		if len(out) != int(uncompressedSize) {
			return nil, fmt.Errorf("zstd block decoded to %d bytes, want %d", len(out), uncompressedSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compressed block with codec %s", c)
	}
}
