package rtech

import (
	"math"

	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/xlog"
)

var (
	// ErrHeaderTruncated indicates that the frame header doesn't fit
	// into the supplied input.
	ErrHeaderTruncated = errors.New("rtech: frame header truncated")
	// ErrCorrupt indicates a stream that violates the declared bounds.
	ErrCorrupt = errors.New("rtech: corrupt stream")
	// ErrWindow indicates that a ring buffer is too small for the stream.
	ErrWindow = errors.New("rtech: buffer window too small")
)

// Status reports the outcome of a Decode call.
type Status int

const (
	// Failed is returned together with an error.
	Failed Status = iota
	// Done reports that the whole output has been produced.
	Done
	// NeedMoreInput asks the caller to provide more input and call
	// Decode again.
	NeedMoreInput
	// NeedMoreOutput asks the caller to provide more output space and
	// call Decode again.
	NeedMoreOutput
)

func (s Status) String() string {
	switch s {
	case Failed:
		return "failed"
	case Done:
		return "done"
	case NeedMoreInput:
		return "need more input"
	case NeedMoreOutput:
		return "need more output"
	}
	return "unknown status"
}

// flat is the mask of a buffer that is not used as a ring.
const flat = math.MaxUint64

// DecoderConfig provides the parameters for a decoder. Positions in the
// input and output buffers are absolute stream positions masked with the
// buffer masks.
type DecoderConfig struct {
	// InputMask makes the input buffer a ring of InputMask+1 bytes. The
	// zero value selects a flat buffer.
	InputMask uint64
	// OutputMask makes the output buffer a ring of OutputMask+1 bytes.
	// The zero value selects a flat buffer.
	OutputMask uint64
	// DataSize is the size of the compressed data. It determines the
	// required input for unconstrained streams. The zero value selects
	// the available input length given to NewDecoderConfig.
	DataSize uint64
	// DataOffset is the input position of the uncompressed header.
	DataOffset uint64
	// HeaderSize is the size of the uncompressed header preceding the
	// stream. The header is part of the decompressed size, but the
	// decoder doesn't write it.
	HeaderSize uint64

	// Instrument receives decoding events if set.
	Instrument func(e Event, v uint64)
	// Logger receives debug output if set.
	Logger xlog.Logger
}

// SetDefaults replaces zero masks with flat buffer masks.
func (cfg *DecoderConfig) SetDefaults() {
	if cfg.InputMask == 0 {
		cfg.InputMask = flat
	}
	if cfg.OutputMask == 0 {
		cfg.OutputMask = flat
	}
}

// isMask reports whether m+1 is a power of two.
func isMask(m uint64) bool {
	return m&(m+1) == 0
}

// Verify checks the configuration. Call SetDefaults before this method.
func (cfg *DecoderConfig) Verify() error {
	if cfg == nil {
		return errors.New("rtech: DecoderConfig pointer must not be nil")
	}
	if !isMask(cfg.InputMask) {
		return errors.Errorf("rtech: InputMask %#x is not a mask",
			cfg.InputMask)
	}
	if !isMask(cfg.OutputMask) {
		return errors.Errorf("rtech: OutputMask %#x is not a mask",
			cfg.OutputMask)
	}
	if cfg.DataOffset+cfg.HeaderSize < cfg.DataOffset {
		return errors.New("rtech: DataOffset+HeaderSize overflows")
	}
	return nil
}

// Decoder holds the state of a decompression session. It is created from
// the frame header and mutated by every Decode call. A Decoder must not be
// used by more than one goroutine at a time.
type Decoder struct {
	br      bitReader
	out     []byte
	outMask uint64
	outPos  uint64

	header FrameHeader
	size   uint64
	// need is the input length required for the current block
	need      uint64
	chunkMask uint64
	blockMask uint64
	// chunkLimit is the input position at which the next chunk skip is
	// checked
	chunkLimit uint64
	// inEnd is the input position of the next block length field
	inEnd uint64
	// outEnd is the output position at which the current block ends
	outEnd   uint64
	fieldLen uint64
	// context is 1 after a literal run and 0 otherwise
	context int

	instrument func(e Event, v uint64)
	logger     xlog.Logger
	err        error
}

// NewDecoderConfig parses the frame header and creates a decoder. The
// parameter inLen gives the number of input bytes available from position
// zero; the stream starts at DataOffset+HeaderSize.
func NewDecoderConfig(in []byte, inLen uint64, out []byte,
	cfg DecoderConfig) (d *Decoder, err error) {

	cfg.SetDefaults()
	if err = cfg.Verify(); err != nil {
		return nil, err
	}
	if cfg.InputMask != flat && uint64(len(in)) <= cfg.InputMask {
		return nil, errors.Wrap(ErrWindow, "input buffer shorter than ring")
	}
	if cfg.OutputMask != flat && uint64(len(out)) <= cfg.OutputMask {
		return nil, errors.Wrap(ErrWindow, "output buffer shorter than ring")
	}
	if cfg.InputMask == flat && inLen > uint64(len(in)) {
		inLen = uint64(len(in))
	}
	start := cfg.DataOffset + cfg.HeaderSize
	if start >= inLen {
		return nil, ErrHeaderTruncated
	}
	if cfg.DataSize == 0 {
		cfg.DataSize = inLen
	}

	d = &Decoder{
		br: bitReader{
			buf:   in,
			mask:  cfg.InputMask,
			pos:   start,
			avail: inLen,
		},
		out:        out,
		outMask:    cfg.OutputMask,
		outPos:     cfg.HeaderSize,
		instrument: cfg.Instrument,
		logger:     cfg.Logger,
	}
	h, err := parseHeader(&d.br)
	if err != nil {
		return nil, err
	}
	if h.Size < cfg.HeaderSize {
		return nil, errors.Wrapf(ErrCorrupt,
			"size %d smaller than header %d", h.Size, cfg.HeaderSize)
	}
	d.header = h
	d.size = h.Size
	d.chunkMask = h.ChunkMask()
	d.blockMask = h.BlockMask()
	if h.Constrained() {
		d.fieldLen = uint64(h.FieldLen)
		d.need = h.FirstBlock
		d.br.pos += d.fieldLen
		d.chunkLimit = d.chunkMask + cfg.DataOffset - 6
	} else {
		d.need = cfg.DataSize
		d.chunkLimit = flat
	}
	d.need += cfg.DataOffset
	d.inEnd = d.need
	d.outEnd = d.size
	if d.size-1 > d.blockMask {
		d.inEnd = d.need - d.fieldLen
		d.outEnd = d.blockMask + 1
	}
	if d.outPos > d.outEnd {
		return nil, errors.Wrapf(ErrCorrupt,
			"header of %d bytes exceeds first block", cfg.HeaderSize)
	}
	if d.outMask != flat && d.outMask < d.blockMask && d.outMask < d.size-1 {
		return nil, errors.Wrapf(ErrWindow,
			"output ring %#x smaller than block %#x", d.outMask+1,
			d.blockMask+1)
	}
	xlog.Printf(d.logger, "rtech: %v need %d", h, d.need)
	return d, nil
}

// NewDecoder creates a decoder for flat buffers. The input must hold the
// complete compressed data including the uncompressed header of headerSize
// bytes. The output buffer must hold the decompressed size.
func NewDecoder(in, out []byte, headerSize int) (*Decoder, error) {
	return NewDecoderConfig(in, uint64(len(in)), out,
		DecoderConfig{HeaderSize: uint64(headerSize)})
}

// Header returns the frame header of the stream.
func (d *Decoder) Header() FrameHeader { return d.header }

// DecompressedSize returns the decompressed size including the uncompressed
// header.
func (d *Decoder) DecompressedSize() uint64 { return d.size }

// RequiredInput returns the input length required before Decode can make
// progress.
func (d *Decoder) RequiredInput() uint64 { return d.need }

// RequiredOutput returns the output length required before Decode can make
// progress.
func (d *Decoder) RequiredOutput() uint64 { return d.outEnd }

// InputPos returns the input position of the next byte the decoder reads.
// Input bytes before this position are no longer accessed.
func (d *Decoder) InputPos() uint64 { return d.br.pos }

// OutputPos returns the number of output bytes produced so far, including
// the uncompressed header.
func (d *Decoder) OutputPos() uint64 { return d.outPos }

func (d *Decoder) record(e Event, v uint64) {
	if d.instrument != nil {
		d.instrument(e, v)
	}
}

// Decode continues decompression. The parameter inLen is the number of
// input bytes available from stream position zero and outLen the output
// position up to which the decoder may write. Decode returns NeedMoreInput
// or NeedMoreOutput if these lengths don't cover the current block. The
// call may then be repeated with larger values. Errors are persistent.
func (d *Decoder) Decode(inLen, outLen uint64) (Status, error) {
	if d.err != nil {
		return Failed, d.err
	}
	if d.outPos == d.size {
		return Done, nil
	}
	if d.br.mask == flat && inLen > uint64(len(d.br.buf)) {
		inLen = uint64(len(d.br.buf))
	}
	if d.outMask == flat && outLen > uint64(len(d.out)) {
		outLen = uint64(len(d.out))
	}
	if inLen < d.need {
		return NeedMoreInput, nil
	}
	if outLen < d.outEnd {
		return NeedMoreOutput, nil
	}
	d.br.avail = inLen
	for {
		if err := d.step(); err != nil {
			d.err = err
			return Failed, err
		}
		if d.br.pos < d.chunkLimit && d.br.pos < d.inEnd {
			continue
		}
		if d.outPos != d.outEnd {
			if err := d.skipChunk(); err != nil {
				d.err = err
				return Failed, err
			}
			continue
		}
		if d.outPos == d.size {
			return Done, nil
		}
		if err := d.nextBlock(); err != nil {
			d.err = err
			return Failed, err
		}
		if inLen < d.need {
			return NeedMoreInput, nil
		}
		if outLen < d.outEnd {
			return NeedMoreOutput, nil
		}
	}
}

// maxExpansion bounds the ratio between decompressed and compressed size.
// The densest symbol sequence, an extended match in literal context, needs 39
// bits for about 2.2 MB of output.
const maxExpansion = 1 << 19

// Decompress decompresses the stream following the uncompressed header of
// headerSize bytes at the start of in. The header is copied unchanged to the
// start of the output.
func Decompress(in []byte, headerSize int) (out []byte, err error) {
	if headerSize < 0 || headerSize > len(in) {
		return nil, ErrHeaderTruncated
	}
	h, err := ReadFrameHeader(in[headerSize:])
	if err != nil {
		return nil, err
	}
	if h.Size < uint64(headerSize) || h.Size > math.MaxInt ||
		h.Size-uint64(headerSize) > uint64(len(in))*maxExpansion {
		return nil, errors.Wrapf(ErrCorrupt, "size %d", h.Size)
	}
	out = make([]byte, h.Size)
	d, err := NewDecoder(in, out, headerSize)
	if err != nil {
		return nil, err
	}
	copy(out, in[:headerSize])
	s, err := d.Decode(uint64(len(in)), uint64(len(out)))
	if err != nil {
		return nil, err
	}
	if s != Done {
		return nil, errors.Wrapf(ErrCorrupt, "stream truncated (%v)", s)
	}
	return out, nil
}
