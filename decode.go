package rpak

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/rtech"
	"github.com/rpaktools/rpak/xlog"
)

// ErrNotCompressed indicates that a pak is already decompressed.
var ErrNotCompressed = errors.New("rpak: pak is not compressed")

// maxRatio limits the decompressed size relative to the file size. No valid
// RTech or zstd stream expands more.
const maxRatio = 1 << 19

// DefaultMaxSize is the default limit for the decompressed size of a pak
// decompressed in memory.
const DefaultMaxSize = 4 << 30

// DecodeConfig provides optional parameters for Decompress.
type DecodeConfig struct {
	// MaxSize limits the decompressed size of the pak. The zero value
	// selects DefaultMaxSize.
	MaxSize uint64
	// Instrument receives the events of the RTech decoder.
	Instrument func(e rtech.Event, v uint64)
	// Logger receives debug output.
	Logger xlog.Logger
}

// Decompress decompresses a complete pak file. The returned pak carries
// the same header without compression flags and with the compressed size
// set to the decompressed size.
func Decompress(file []byte) ([]byte, error) {
	return DecompressConfig(file, DecodeConfig{})
}

// DecompressConfig decompresses a complete pak file using the given
// configuration.
func DecompressConfig(file []byte, cfg DecodeConfig) ([]byte, error) {
	h, err := ParseHeader(file)
	if err != nil {
		return nil, err
	}
	mode := h.Mode()
	if mode == ModeNone {
		return nil, ErrNotCompressed
	}
	if h.CompressedSize != uint64(len(file)) {
		return nil, errors.Wrapf(ErrSize,
			"compressed size %d; file size %d", h.CompressedSize,
			len(file))
	}
	if h.DecompressedSize/maxRatio > uint64(len(file)) {
		return nil, errors.Wrapf(ErrSize, "decompressed size %d",
			h.DecompressedSize)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if h.DecompressedSize > cfg.MaxSize {
		return nil, errors.Wrapf(ErrSize,
			"decompressed size %d exceeds limit %d",
			h.DecompressedSize, cfg.MaxSize)
	}
	xlog.Printf(cfg.Logger, "rpak: %v %d -> %d bytes", mode,
		h.CompressedSize, h.DecompressedSize)

	var out []byte
	switch mode {
	case ModeRTech:
		out, err = decodeRTech(file, h, &cfg)
	case ModeZStd:
		out, err = decodeZStd(file, h, &cfg)
	}
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != h.DecompressedSize {
		return nil, errors.Wrapf(ErrSize,
			"decompressed %d bytes; header %d", len(out),
			h.DecompressedSize)
	}
	hdr := decompressedHeader(h)
	copy(out, hdr)
	return out, nil
}

// decompressedHeader returns the header of the decompressed pak.
func decompressedHeader(h *Header) []byte {
	d := *h
	d.setMode(ModeNone)
	d.CompressedSize = d.DecompressedSize
	p, err := d.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return p
}

func decodeRTech(file []byte, h *Header, cfg *DecodeConfig) ([]byte, error) {
	fh, err := rtech.ReadFrameHeader(file[HeaderLen:])
	if err != nil {
		return nil, err
	}
	if fh.Size != h.DecompressedSize {
		return nil, errors.Wrapf(ErrSize,
			"frame header size %d; header %d", fh.Size,
			h.DecompressedSize)
	}
	out := make([]byte, h.DecompressedSize)
	d, err := rtech.NewDecoderConfig(file, uint64(len(file)), out,
		rtech.DecoderConfig{
			HeaderSize: HeaderLen,
			Instrument: cfg.Instrument,
			Logger:     cfg.Logger,
		})
	if err != nil {
		return nil, err
	}
	s, err := d.Decode(uint64(len(file)), uint64(len(out)))
	if err != nil {
		return nil, err
	}
	if s != rtech.Done {
		return nil, errors.Wrapf(ErrTruncated, "rtech stream %v", s)
	}
	return out, nil
}

func decodeZStd(file []byte, h *Header, cfg *DecodeConfig) ([]byte, error) {
	var zh zstd.Header
	if err := zh.Decode(file[HeaderLen:]); err != nil {
		return nil, errors.Wrap(err, "rpak: zstd frame header")
	}
	if zh.HasFCS && zh.FrameContentSize+HeaderLen != h.DecompressedSize {
		return nil, errors.Wrapf(ErrSize,
			"zstd content size %d; header %d", zh.FrameContentSize,
			h.DecompressedSize-HeaderLen)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(cfg.MaxSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out := make([]byte, HeaderLen, h.DecompressedSize)
	out, err = dec.DecodeAll(file[HeaderLen:], out)
	if err != nil {
		return nil, errors.Wrap(err, "rpak: zstd")
	}
	return out, nil
}
