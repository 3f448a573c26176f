package compressors

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/INLOpen/nexuslog/core"
	lz4 "github.com/pierrec/lz4/v4"
)

const (
	lz4BlockRaw        byte = 0
	lz4BlockCompressed byte = 1

	// flag byte + uint32 little-endian uncompressed size
	lz4HeaderSize = 5
	// maxLZ4BlockSize bounds the size a header may claim.
	maxLZ4BlockSize = 1 << 30
)

// LZ4Compressor implements the Compressor interface using the LZ4 block
// format. The block format does not record the original size, so every
// payload is prefixed with it; input LZ4 cannot shrink is stored raw.
type LZ4Compressor struct{}

var _ core.Compressor = (*LZ4Compressor)(nil)

func NewLz4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	dst := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(dst[1:lz4HeaderSize], uint32(len(data)))

	n, err := lz4.CompressBlock(data, dst[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress error: %w", err)
	}
	if n == 0 || n >= len(data) {
		// incompressible
		dst[0] = lz4BlockRaw
		n = copy(dst[lz4HeaderSize:], data)
	} else {
		dst[0] = lz4BlockCompressed
	}
	return dst[:lz4HeaderSize+n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize {
		return nil, errors.New("lz4 decompress error: payload shorter than header")
	}
	size := binary.LittleEndian.Uint32(data[1:lz4HeaderSize])
	if size > maxLZ4BlockSize {
		return nil, fmt.Errorf("lz4 decompress error: declared size %d exceeds limit", size)
	}
	body := data[lz4HeaderSize:]

	switch data[0] {
	case lz4BlockRaw:
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("lz4 decompress error: raw block has %d bytes, header says %d", len(body), size)
		}
		out := make([]byte, size)
		copy(out, body)
		return out, nil
	case lz4BlockCompressed:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress error: %w", err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("lz4 decompress error: got %d bytes, header says %d", n, size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("lz4 decompress error: unknown block flag %d", data[0])
	}
}

func (c *LZ4Compressor) Type() core.CompressionType {
	return core.CompressionLZ4
}
