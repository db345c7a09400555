package rpak

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/rtech"
	"github.com/rpaktools/rpak/xlog"
)

const (
	defaultInputSize  = 4 << 20
	defaultOutputSize = 8 << 20
	minRingSize       = 1 << 12
)

// ReaderConfig defines the parameters for a pak reader.
type ReaderConfig struct {
	// InputSize is the size of the input ring buffer. The reader rounds
	// it up to a power of two and enlarges it if the stream requires
	// more.
	InputSize int
	// OutputSize is the size of the output ring buffer. It limits the
	// match distances supported and is enlarged to hold a complete
	// output block.
	OutputSize int

	// Instrument receives the events of the RTech decoder.
	Instrument func(e rtech.Event, v uint64)
	// Logger receives debug output.
	Logger xlog.Logger
}

// SetDefaults sets the default ring buffer sizes for zero values.
func (c *ReaderConfig) SetDefaults() {
	if c.InputSize == 0 {
		c.InputSize = defaultInputSize
	}
	if c.OutputSize == 0 {
		c.OutputSize = defaultOutputSize
	}
}

// Verify checks the reader configuration.
func (c *ReaderConfig) Verify() error {
	if c == nil {
		return errors.New("rpak: reader configuration is nil")
	}
	if c.InputSize < minRingSize {
		return errors.Errorf("rpak: InputSize must be at least %d",
			minRingSize)
	}
	if c.OutputSize < minRingSize {
		return errors.Errorf("rpak: OutputSize must be at least %d",
			minRingSize)
	}
	return nil
}

// Reader produces the decompressed pak from a stream of a pak file. The
// memory used is bounded by the ring buffers and doesn't depend on the
// pak size.
type Reader struct {
	r   io.Reader
	h   Header
	hdr []byte
	err error

	// payload of uncompressed and zstd paks
	src io.Reader
	zr  *zstd.Decoder
	n   uint64

	dec     *rtech.Decoder
	in      []byte
	inMask  uint64
	inLen   uint64
	out     []byte
	outMask uint64
	drained uint64
}

// NewReader creates a reader with the default configuration.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderConfig(r, ReaderConfig{})
}

// NewReaderConfig reads the header of the pak and creates a reader for the
// decompressed pak.
func NewReaderConfig(r io.Reader, cfg ReaderConfig) (*Reader, error) {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("rpak: reader must be not nil")
	}
	raw := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, truncated(err, "header")
	}
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	pr := &Reader{r: r, h: *h}
	switch h.Mode() {
	case ModeNone:
		pr.hdr = raw
		pr.src = io.LimitReader(r, int64(h.DecompressedSize-HeaderLen))
	case ModeZStd:
		pr.hdr = decompressedHeader(h)
		pr.zr, err = zstd.NewReader(
			io.LimitReader(r, int64(h.CompressedSize-HeaderLen)),
			zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		pr.src = pr.zr
	case ModeRTech:
		pr.hdr = decompressedHeader(h)
		if err = pr.initRTech(raw, &cfg); err != nil {
			return nil, err
		}
	}
	xlog.Printf(cfg.Logger, "rpak: reader for %v pak of %d bytes",
		h.Mode(), h.DecompressedSize)
	return pr, nil
}

// truncated converts the end of file errors of io.ReadFull.
func truncated(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrTruncated, what)
	}
	return err
}

// initRTech allocates the ring buffers and creates the decoder. The ring
// sizes are derived from the frame header.
func (r *Reader) initRTech(raw []byte, cfg *ReaderConfig) error {
	total := r.h.CompressedSize
	r.in = make([]byte, ringSize(uint64(cfg.InputSize)))
	r.inMask = uint64(len(r.in)) - 1
	copy(r.in, raw)
	r.inLen = HeaderLen
	if err := r.fill(0); err != nil {
		return err
	}
	fh, err := rtech.ReadFrameHeader(r.in[HeaderLen:r.inLen])
	if err != nil {
		return err
	}
	if fh.Size != r.h.DecompressedSize {
		return errors.Wrapf(ErrSize, "frame header size %d; header %d",
			fh.Size, r.h.DecompressedSize)
	}

	inSize := uint64(len(r.in))
	if fh.Constrained() && fh.BlockBits < 62 {
		inSize = max(inSize, ringSize(2<<uint(fh.BlockBits)),
			ringSize(fh.FirstBlock))
	} else {
		inSize = ringSize(total)
	}
	inSize = min(inSize, ringSize(total))
	if inSize > uint64(len(r.in)) {
		// no wrap has happened yet
		in := make([]byte, inSize)
		copy(in, r.in[:r.inLen])
		r.in, r.inMask = in, inSize-1
	}

	outSize := ringSize(uint64(cfg.OutputSize))
	if fh.BlockBits < 62 {
		outSize = max(outSize, uint64(1)<<uint(fh.BlockBits))
	} else {
		outSize = ringSize(r.h.DecompressedSize)
	}
	outSize = min(outSize, ringSize(r.h.DecompressedSize))
	r.out = make([]byte, outSize)
	r.outMask = outSize - 1
	// matches may reach into the header
	copy(r.out, raw)
	r.drained = HeaderLen

	r.dec, err = rtech.NewDecoderConfig(r.in, r.inLen, r.out,
		rtech.DecoderConfig{
			InputMask:  r.inMask,
			OutputMask: r.outMask,
			DataSize:   total,
			HeaderSize: HeaderLen,
			Instrument: cfg.Instrument,
			Logger:     cfg.Logger,
		})
	if err != nil {
		return err
	}
	xlog.Printf(cfg.Logger, "rpak: %v input ring %d output ring %d",
		fh, len(r.in), len(r.out))
	return nil
}

// fill reads input into the ring without overwriting the bytes from
// stream position keep on.
func (r *Reader) fill(keep uint64) error {
	end := min(keep+r.inMask+1, r.h.CompressedSize)
	for r.inLen < end {
		i, n := frame(r.inMask, r.inLen, end)
		k, err := io.ReadFull(r.r, r.in[i:i+n])
		r.inLen += uint64(k)
		if err != nil {
			return truncated(err, "rtech stream")
		}
	}
	return nil
}

// Header returns the header of the pak as read from the stream.
func (r *Reader) Header() Header { return r.h }

// Read reads the decompressed pak.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	for n < len(p) && len(r.hdr) > 0 {
		k := copy(p[n:], r.hdr)
		r.hdr = r.hdr[k:]
		n += k
	}
	var k int
	if r.dec != nil {
		k, err = r.readRTech(p[n:])
	} else {
		k, err = r.readPayload(p[n:])
	}
	n += k
	r.err = err
	return n, err
}

// readPayload reads from the payload reader and checks its length.
func (r *Reader) readPayload(p []byte) (n int, err error) {
	want := r.h.DecompressedSize - HeaderLen
	n, err = r.src.Read(p)
	r.n += uint64(n)
	if r.n > want {
		return n, errors.Wrapf(ErrSize, "payload exceeds %d bytes",
			want)
	}
	if err == io.EOF && r.n < want {
		return n, errors.Wrapf(ErrTruncated, "payload of %d bytes; want %d",
			r.n, want)
	}
	return n, err
}

// readRTech drains the output ring and runs the decoder whenever the ring
// is empty.
func (r *Reader) readRTech(p []byte) (n int, err error) {
	for n < len(p) {
		pos := r.dec.OutputPos()
		if r.drained < pos {
			i, k := frame(r.outMask, r.drained, pos)
			k = uint64(copy(p[n:], r.out[i:i+k]))
			r.drained += k
			n += int(k)
			continue
		}
		if pos == r.dec.DecompressedSize() {
			return n, io.EOF
		}
		s, err := r.dec.Decode(r.inLen, r.drained+r.outMask+1)
		switch s {
		case rtech.Failed:
			return n, err
		case rtech.NeedMoreInput:
			if r.inLen >= r.h.CompressedSize {
				return n, errors.Wrapf(ErrTruncated,
					"block needs %d bytes of %d",
					r.dec.RequiredInput(), r.inLen)
			}
			keep := r.dec.InputPos()
			if r.dec.RequiredInput()-keep > r.inMask+1 {
				return n, errors.Wrapf(rtech.ErrWindow,
					"block needs %d input bytes",
					r.dec.RequiredInput()-keep)
			}
			if err = r.fill(keep); err != nil {
				return n, err
			}
		case rtech.NeedMoreOutput:
			if r.dec.OutputPos() == pos {
				return n, errors.Wrap(rtech.ErrWindow,
					"output ring smaller than block")
			}
		}
	}
	return n, nil
}

// Close releases the resources of the reader. It doesn't close the
// underlying reader.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
	if r.err == nil || r.err == io.EOF {
		r.err = errors.New("rpak: reader closed")
	}
	return nil
}
