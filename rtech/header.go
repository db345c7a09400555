package rtech

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// FrameHeader describes the bit-packed header at the start of a compressed
// stream.
type FrameHeader struct {
	// Size is the decompressed size including the uncompressed header
	// that precedes the stream.
	Size uint64
	// ChunkBits gives the size 1<<ChunkBits of an input chunk. The value
	// 64 marks an unconstrained input.
	ChunkBits int
	// BlockBits gives the size 1<<BlockBits of an output block. The value
	// 64 marks an output consisting of a single block.
	BlockBits int
	// FieldLen is the number of bytes of a block length field. It is zero
	// for unconstrained input.
	FieldLen int
	// FirstBlock is the value of the first block length field. For an
	// unconstrained input it is zero.
	FirstBlock uint64
	// Len is the number of stream bytes occupied by the header including
	// the first block length field.
	Len int
}

// maxSizeBits limits the exponent of the decompressed size.
const maxSizeBits = 57

// ChunkMask returns the input chunk mask of the header.
func (h *FrameHeader) ChunkMask() uint64 { return lowMask(h.ChunkBits) }

// BlockMask returns the output block mask of the header.
func (h *FrameHeader) BlockMask() uint64 { return lowMask(h.BlockBits) }

// Constrained reports whether the input is divided into chunks.
func (h *FrameHeader) Constrained() bool { return h.ChunkBits < 64 }

// String returns a short description of the header.
func (h FrameHeader) String() string {
	return fmt.Sprintf("size %d chunk 2^%d block 2^%d field %d first %d",
		h.Size, h.ChunkBits, h.BlockBits, h.FieldLen, h.FirstBlock)
}

// lowMask returns a mask with the lower n bits set.
func lowMask(n int) uint64 {
	return math.MaxUint64 >> (64 - uint(n))
}

// windowBits converts a 6-bit window code into the number of bits. The code
// 0 represents 64.
func windowBits(code uint64) int {
	return int((code-1)&63) + 1
}

// parseHeader reads the frame header from the bit reader. The reader must
// be positioned at the start of the header. On return the reader is
// positioned after the bit header; the first block length field is read but
// not consumed.
func parseHeader(br *bitReader) (h FrameHeader, err error) {
	start := br.pos
	br.refill()
	k := br.take(6)
	if k > maxSizeBits {
		return h, errors.Wrapf(ErrCorrupt, "size exponent %d", k)
	}
	h.Size = 1<<k | br.take(uint(k))
	br.refill()
	h.ChunkBits = windowBits(br.take(6))
	h.BlockBits = windowBits(br.take(6))
	br.take(1)
	br.refill()
	// The pulled bytes include look-ahead. A valid stream never ends
	// before the bytes the header pulls, because every pulled position
	// carries stream data.
	if h.Constrained() {
		h.FieldLen = h.ChunkBits>>3 + 1
		v, ok := br.field(br.pos, h.FieldLen)
		if !ok {
			return h, ErrHeaderTruncated
		}
		h.FirstBlock = v
	}
	if br.pos+uint64(h.FieldLen) > br.avail {
		return h, ErrHeaderTruncated
	}
	h.Len = int(br.pos-start) + h.FieldLen
	return h, nil
}

// ReadFrameHeader parses the frame header at the start of p.
func ReadFrameHeader(p []byte) (h FrameHeader, err error) {
	br := bitReader{
		buf:   p,
		mask:  math.MaxUint64,
		avail: uint64(len(p)),
	}
	return parseHeader(&br)
}

// sizeExponent returns the exponent k and the remaining bits of size as
// written into a frame header.
func sizeExponent(size uint64) (k int, low uint64) {
	k = bits.Len64(size) - 1
	return k, size &^ (1 << uint(k))
}
