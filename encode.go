package rpak

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/rtech"
	"github.com/rpaktools/rpak/xlog"
)

// WriterConfig describes the parameters for compressing a pak.
type WriterConfig struct {
	// Mode selects the compression; the zero value selects ModeRTech.
	Mode Mode
	// RTech configures the RTech encoder. The header size is always
	// HeaderLen.
	RTech rtech.EncoderConfig
	// ZStdLevel is the level of the zstd encoder (default:
	// SpeedBestCompression).
	ZStdLevel zstd.EncoderLevel

	// Logger receives debug output.
	Logger xlog.Logger
}

// SetDefaults applies the defaults to the writer configuration.
func (c *WriterConfig) SetDefaults() {
	if c.Mode == ModeNone {
		c.Mode = ModeRTech
	}
	c.RTech.HeaderSize = HeaderLen
	if c.RTech.Logger == nil {
		c.RTech.Logger = c.Logger
	}
	if c.Mode == ModeRTech {
		c.RTech.SetDefaults()
	}
	if c.ZStdLevel == 0 {
		c.ZStdLevel = zstd.SpeedBestCompression
	}
}

// Verify checks the configuration for errors.
func (c *WriterConfig) Verify() error {
	if c == nil {
		return errors.New("rpak: writer configuration is nil")
	}
	switch c.Mode {
	case ModeRTech:
		if c.RTech.HeaderSize != HeaderLen {
			return errors.Errorf("rpak: RTech header size must be %d",
				HeaderLen)
		}
		return c.RTech.Verify()
	case ModeZStd:
		if !(zstd.SpeedFastest <= c.ZStdLevel &&
			c.ZStdLevel <= zstd.SpeedBestCompression) {
			return errors.Errorf("rpak: zstd level %d out of range",
				c.ZStdLevel)
		}
		return nil
	}
	return errors.Errorf("rpak: mode %v not supported for compression",
		c.Mode)
}

// Compress compresses a decompressed pak file. The header of the result
// carries the flags of the mode and the compressed size.
func Compress(file []byte, cfg WriterConfig) ([]byte, error) {
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	h, err := ParseHeader(file)
	if err != nil {
		return nil, err
	}
	if h.IsCompressed() {
		return nil, ErrCompressed
	}
	if h.DecompressedSize != uint64(len(file)) {
		return nil, errors.Wrapf(ErrSize,
			"decompressed size %d; file size %d", h.DecompressedSize,
			len(file))
	}

	var p []byte
	switch cfg.Mode {
	case ModeRTech:
		p, err = rtech.Compress(file, cfg.RTech)
	case ModeZStd:
		p, err = encodeZStd(file, cfg.ZStdLevel)
	}
	if err != nil {
		return nil, err
	}

	c := *h
	c.setMode(cfg.Mode)
	c.CompressedSize = uint64(len(p))
	hdr, err := c.MarshalBinary()
	if err != nil {
		return nil, err
	}
	copy(p, hdr)
	xlog.Printf(cfg.Logger, "rpak: %v compressed %d bytes to %d (%.2f%%)",
		cfg.Mode, len(file), len(p), c.Ratio())
	return p, nil
}

func encodeZStd(file []byte, level zstd.EncoderLevel) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	p := make([]byte, HeaderLen, HeaderLen+len(file)/2)
	copy(p, file)
	return enc.EncodeAll(file[HeaderLen:], p), nil
}
