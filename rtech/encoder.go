package rtech

import (
	"math/bits"

	"github.com/pkg/errors"
	"github.com/ulikunitz/lz"

	"github.com/rpaktools/rpak/xlog"
)

// EncoderConfig provides the parameters for compressing a stream.
type EncoderConfig struct {
	// HeaderSize is the number of bytes at the start of the input that
	// are copied uncompressed in front of the stream.
	HeaderSize int
	// ChunkBits divides the input into chunks of 1<<ChunkBits bytes. The
	// value 64 produces an unconstrained input. The zero value selects
	// 64.
	ChunkBits int
	// BlockBits divides the output into blocks of 1<<BlockBits bytes. The
	// value 64 produces a single block. The zero value selects 64.
	BlockBits int
	// WindowSize is the maximum match distance.
	WindowSize int

	// LZ configures the match finder.
	LZ lz.SeqConfig

	// Logger receives debug output if set.
	Logger xlog.Logger
}

const (
	defaultWindowSize = 4 << 20
	minWindowBits     = 8
)

// fixBufConfig computes the sequence buffer configuration. The shrink size
// must cover the window.
func fixBufConfig(cfg lz.SeqConfig, windowSize int) {
	bc := cfg.BufConfig()
	bc.WindowSize = windowSize
	bc.ShrinkSize = bc.WindowSize
	bc.BufferSize = 2 * bc.WindowSize

	const minBufferSize = 256 << 10
	if bc.BufferSize < minBufferSize {
		bc.BufferSize = minBufferSize
	}
	cfg.SetBufConfig(bc)
}

// SetDefaults replaces zero values with default values.
func (cfg *EncoderConfig) SetDefaults() {
	if cfg.ChunkBits == 0 {
		cfg.ChunkBits = 64
	}
	if cfg.BlockBits == 0 {
		cfg.BlockBits = 64
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.LZ == nil {
		cfg.LZ = &lz.DHSConfig{WindowSize: cfg.WindowSize}
	} else {
		bc := cfg.LZ.BufConfig()
		bc.WindowSize = cfg.WindowSize
		cfg.LZ.SetBufConfig(bc)
	}
	cfg.LZ.SetDefaults()
	fixBufConfig(cfg.LZ, cfg.WindowSize)
}

// Verify checks the configuration. Usually SetDefaults is called before
// this method.
func (cfg *EncoderConfig) Verify() error {
	if cfg == nil {
		return errors.New("rtech: EncoderConfig pointer must not be nil")
	}
	if cfg.HeaderSize < 0 {
		return errors.New("rtech: HeaderSize must not be negative")
	}
	if !(minWindowBits <= cfg.ChunkBits && cfg.ChunkBits <= 64) {
		return errors.Errorf("rtech: ChunkBits %d out of range [%d,64]",
			cfg.ChunkBits, minWindowBits)
	}
	if !(minWindowBits <= cfg.BlockBits && cfg.BlockBits <= 64) {
		return errors.Errorf("rtech: BlockBits %d out of range [%d,64]",
			cfg.BlockBits, minWindowBits)
	}
	if cfg.ChunkBits == 64 && cfg.BlockBits != 64 {
		return errors.New(
			"rtech: output blocks require input chunks")
	}
	if cfg.ChunkBits < 64 {
		// block length fields must be able to hold a block
		max := 8*(cfg.ChunkBits>>3+1) - 2
		if cfg.BlockBits > max {
			return errors.Errorf(
				"rtech: BlockBits %d exceed %d for ChunkBits %d",
				cfg.BlockBits, max, cfg.ChunkBits)
		}
	}
	if !(0 < cfg.WindowSize && cfg.WindowSize <= MaxDistance) {
		return errors.Errorf("rtech: WindowSize %d out of range [1,%d]",
			cfg.WindowSize, MaxDistance)
	}
	if cfg.LZ == nil {
		return errors.New("rtech: EncoderConfig field LZ is nil")
	}
	return cfg.LZ.Verify()
}

// op is a literal run if dist is zero and a match otherwise.
type op struct {
	dist uint64
	n    uint64
}

// appendOps converts the sequences of blk into operations. Matches the
// format cannot express become literals.
func appendOps(ops []op, blk *lz.Block) []op {
	lit := func(n uint64) {
		if n == 0 {
			return
		}
		if k := len(ops) - 1; k >= 0 && ops[k].dist == 0 {
			ops[k].n += n
			return
		}
		ops = append(ops, op{n: n})
	}
	litLen := 0
	for _, s := range blk.Sequences {
		lit(uint64(s.LitLen))
		litLen += int(s.LitLen)
		if s.MatchLen == 0 {
			continue
		}
		if s.MatchLen < minMatchLen || s.Offset == 0 ||
			s.Offset > MaxDistance {
			lit(uint64(s.MatchLen))
			continue
		}
		ops = append(ops, op{dist: uint64(s.Offset), n: uint64(s.MatchLen)})
	}
	lit(uint64(len(blk.Literals) - litLen))
	return ops
}

// sequence runs the match finder over data.
func sequence(data []byte, cfg lz.SeqConfig) (ops []op, err error) {
	seq, err := cfg.NewSequencer()
	if err != nil {
		return nil, err
	}
	if err = seq.Reset(nil); err != nil {
		return nil, err
	}
	window := seq.WindowPtr()
	var blk lz.Block
	for {
		k, err := window.Write(data)
		data = data[k:]
		if err != nil && err != lz.ErrFullBuffer {
			return nil, err
		}
		for {
			blk.Sequences = blk.Sequences[:0]
			blk.Literals = blk.Literals[:0]
			_, err = seq.Sequence(&blk, 0)
			if err == lz.ErrEmptyBuffer {
				break
			}
			if err != nil {
				return nil, err
			}
			ops = appendOps(ops, &blk)
		}
		if len(data) == 0 {
			return ops, nil
		}
	}
}

// ErrFieldOverflow indicates that the compressed size of a block doesn't fit
// into a block length field.
var ErrFieldOverflow = errors.New("rtech: block length field overflow")

// Compress compresses data. The first HeaderSize bytes of data are copied
// unchanged in front of the compressed stream; they count toward the
// decompressed size recorded in the stream.
func Compress(data []byte, cfg EncoderConfig) ([]byte, error) {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if cfg.HeaderSize > len(data) {
		return nil, errors.Errorf("rtech: HeaderSize %d exceeds data length %d",
			cfg.HeaderSize, len(data))
	}
	if len(data) == 0 {
		return nil, errors.New("rtech: no data")
	}
	ops, err := sequence(data[cfg.HeaderSize:], cfg.LZ)
	if err != nil {
		return nil, errors.Wrap(err, "rtech: match finder")
	}
	xlog.Printf(cfg.Logger, "rtech: %d operations for %d bytes",
		len(ops), len(data)-cfg.HeaderSize)
	return encode(data, ops, &cfg)
}

// encoder writes the operations as a stream. Its fields mirror the
// decoder state.
type encoder struct {
	w          streamWriter
	data       []byte
	size       uint64
	chunkMask  uint64
	blockMask  uint64
	fieldLen   int
	chunkLimit uint64
	outEnd     uint64
	outPos     uint64
	context    int

	// fieldPos holds the positions of the block length fields
	fieldPos []int
	// fields holds the values of the block length fields
	fields []uint64
}

// encode produces the compressed stream for data using the given
// operations. The operations must cover data after the header.
func encode(data []byte, ops []op, cfg *EncoderConfig) ([]byte, error) {
	h := uint64(cfg.HeaderSize)
	e := &encoder{
		data:      data,
		size:      uint64(len(data)),
		chunkMask: lowMask(cfg.ChunkBits),
		blockMask: lowMask(cfg.BlockBits),
		outPos:    h,
	}
	e.w.buf = make([]byte, 0, len(data)+len(data)/64+64)
	e.w.appendRaw(data[:h])
	if e.chunkMask == flat && e.size-1 > e.blockMask {
		return nil, errors.New(
			"rtech: output blocks require input chunks")
	}
	e.writeHeader(cfg.ChunkBits, cfg.BlockBits)

	var pending uint64
	i := 0
	for e.outPos < e.size {
		if pending == 0 && i >= len(ops) {
			return nil, errors.New("rtech: operations don't cover data")
		}
		e.w.refill()
		var lit uint64
		switch {
		case pending > 0:
			lit = pending
		case ops[i].dist == 0:
			lit = ops[i].n
		default:
			n, ok, err := e.match(ops[i].dist, ops[i].n)
			if err != nil {
				return nil, err
			}
			if ok {
				ops[i].n -= n
				if ops[i].n == 0 {
					i++
				}
				break
			}
			// the first n bytes of the match become literals
			pending = n
			ops[i].n -= n
			if ops[i].n == 0 {
				i++
			}
			lit = pending
		}
		if lit > 0 {
			n, err := e.literalRun(lit)
			if err != nil {
				return nil, err
			}
			if pending > 0 {
				pending -= n
			} else if ops[i].n -= n; ops[i].n == 0 {
				i++
			}
		}
		if e.outPos != e.outEnd {
			e.skipChunk()
			continue
		}
		if e.outPos == e.size {
			break
		}
		e.nextBlock()
	}
	return e.finish()
}

// writeHeader writes the frame header and reserves the first block length
// field.
func (e *encoder) writeHeader(chunkBits, blockBits int) {
	w := &e.w
	k, low := sizeExponent(e.size)
	w.refill()
	w.put(uint64(k), 6)
	w.put(low, uint(k))
	w.refill()
	w.put(uint64(chunkBits&63), 6)
	w.put(uint64(blockBits&63), 6)
	w.put(0, 1)
	w.refill()
	if e.chunkMask == flat {
		e.chunkLimit = flat
	} else {
		e.fieldLen = chunkBits>>3 + 1
		e.chunkLimit = e.chunkMask - 6
		e.fieldPos = append(e.fieldPos, w.reserve(e.fieldLen))
		e.fields = append(e.fields, 0)
	}
	e.outEnd = e.size
	if e.size-1 > e.blockMask {
		e.outEnd = e.blockMask + 1
	}
}

// nearEdge mirrors Decoder.nearEdge.
func (e *encoder) nearEdge() bool {
	return ^e.w.pos()&e.chunkMask < edgeDistance ||
		e.blockMask&^e.outPos < edgeDistance ||
		e.size-e.outPos <= edgeDistance
}

// putDistance writes the distance of a match.
func (e *encoder) putDistance(dist uint64) {
	w := &e.w
	q := dist >> 4
	nb := uint(bits.Len64(q+1) - 1)
	if nb < 15 {
		w.put(uint64(nb), 4)
	} else {
		w.put(15, 4)
		w.put(uint64(nb-15), 2)
	}
	w.putCode(distLowCodes[dist&15])
	w.put(q+1-1<<nb, nb)
}

// putRun writes a run extension. The long flag selects the behavior of
// readExtendedRun.
func (e *encoder) putRun(v uint64, long bool) error {
	if v > maxRunExtension {
		return errors.Wrapf(errNoCode, "run extension %d", v)
	}
	c, err := encodeRun(uint32(v))
	if err != nil {
		return err
	}
	w := &e.w
	w.put(uint64(c.short), 3)
	if c.short == 0 {
		w.put(uint64(c.long), 4)
		if long && uint64(c.extraBits) >= w.valid() {
			w.pull()
			if uint64(c.extraBits) > w.valid() {
				return errors.Wrapf(errNoCode,
					"run extension %d after accumulator end", v)
			}
		}
	}
	w.put(uint64(c.extra), uint(c.extraBits))
	return nil
}

// match writes a match of up to n bytes. If the match cannot be written at
// this point it returns false and the number of bytes to write as literals.
func (e *encoder) match(dist, n uint64) (written uint64, ok bool, err error) {
	c := n
	if r := e.outEnd - e.outPos; r < c {
		c = r
	}
	var extended bool
	switch {
	case dist < shortDistance:
		if c < minMatchLen {
			return c, false, nil
		}
		extended = true
	case c > maxDirectLen:
		extended = true
	case c >= minMatchLen && !e.nearEdge():
	default:
		return c, false, nil
	}
	w := &e.w
	length := int(c)
	if extended {
		length = extendedLength
	}
	code, err := symbolCode(e.context, length)
	if err != nil {
		return 0, false, err
	}
	w.putCode(code)
	e.putDistance(dist)
	if extended {
		base := uint64(extendedLength)
		if dist < shortDistance {
			base -= shortDistanceBias
		}
		// the selectors take 7 of the valid bits
		if m := maxExtendedRun(w.valid() - 7); c > base+m {
			c = base + m
		}
		if err = e.putRun(c-base, true); err != nil {
			return 0, false, err
		}
	}
	e.context = 0
	e.outPos += c
	return c, true, nil
}

// literalRun writes a literal run of up to n bytes and returns the number
// of bytes written. A run doesn't cross a chunk or block end.
func (e *encoder) literalRun(n uint64) (uint64, error) {
	c := n
	if r := e.outEnd - e.outPos; r < c {
		c = r
	}
	pos := e.w.pos()
	if e.chunkMask != flat {
		if r := e.chunkMask + 1 - pos&e.chunkMask; r < c {
			c = r
		}
	}
	w := &e.w
	near := e.nearEdge()
	if e.context == 0 && !near && c <= maxDirectLen {
		code, err := symbolCode(0, -int(c))
		if err != nil {
			return 0, err
		}
		w.putCode(code)
	} else {
		base := uint64(1)
		if e.context == 0 && !near {
			base = uint64(runSentinel[0])
		}
		if c > base+maxRunExtension {
			c = base + maxRunExtension
		}
		code, err := symbolCode(e.context, -int(runSentinel[e.context]))
		if err != nil {
			return 0, err
		}
		w.putCode(code)
		if err = e.putRun(c-base, false); err != nil {
			return 0, err
		}
	}
	w.appendRaw(e.data[e.outPos : e.outPos+c])
	e.outPos += c
	e.context = 1
	return c, nil
}

// skipChunk mirrors Decoder.skipChunk by padding the stream.
func (e *encoder) skipChunk() {
	pos := e.w.pos()
	if pos < e.chunkLimit {
		return
	}
	e.w.pad((pos+chunkSlack)&^e.chunkMask - pos)
	e.chunkLimit += e.chunkMask + 1
}

// nextBlock mirrors Decoder.nextBlock. The value of the previous block
// length field is now known.
func (e *encoder) nextBlock() {
	w := &e.w
	w.put(0, 1)
	if rem := e.chunkMask & -w.pos(); uint64(e.fieldLen) > rem {
		w.pad(rem)
		if w.pos() > e.chunkLimit {
			e.chunkLimit += e.chunkMask + 1
		}
	}
	p := w.pos()
	k := len(e.fields) - 1
	if k == 0 {
		e.fields[0] = p + uint64(e.fieldLen)
	} else {
		e.fields[k] = p - uint64(e.fieldPos[k])
	}
	e.fieldPos = append(e.fieldPos, w.reserve(e.fieldLen))
	e.fields = append(e.fields, 0)
	if e.size-e.outPos-1 <= e.blockMask {
		e.outEnd = e.size
	} else {
		e.outEnd = e.outPos + e.blockMask + 1
	}
	e.skipChunk()
}

// finish completes the last block length field and the bit stream.
func (e *encoder) finish() ([]byte, error) {
	end := e.w.pos()
	if k := len(e.fields) - 1; k >= 0 {
		if k == 0 {
			e.fields[0] = end
		} else {
			e.fields[k] = end - uint64(e.fieldPos[k]) -
				uint64(e.fieldLen)
		}
	}
	limit := uint64(1) << (8 * uint(e.fieldLen) % 64)
	for k, f := range e.fields {
		if e.fieldLen < 8 && f >= limit {
			return nil, errors.Wrapf(ErrFieldOverflow,
				"block %d length %d", k, f)
		}
		e.w.putField(e.fieldPos[k], e.fieldLen, f)
	}
	return e.w.flush(), nil
}
