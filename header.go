package rpak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// HeaderLen is the length of the file header of a pak.
const HeaderLen = 0x80

// Magic is the first word of a pak file; the bytes are 'RPak'.
const Magic uint32 = 'R' | 'P'<<8 | 'a'<<16 | 'k'<<24

// Version is the only supported format version. Version 7 paks use a
// shorter header and are rejected.
const Version = 8

// Flags of the header.
const (
	FlagCompressed uint16 = 0x0100
	FlagZStd       uint16 = 0x0200
)

var (
	// ErrMagic indicates that the file doesn't start with the pak magic.
	ErrMagic = errors.New("rpak: invalid magic")
	// ErrVersion indicates an unsupported format version.
	ErrVersion = errors.New("rpak: unsupported version")
	// ErrTruncated indicates that the file is shorter than its header
	// requires.
	ErrTruncated = errors.New("rpak: file truncated")
	// ErrSize indicates that a size doesn't match the header.
	ErrSize = errors.New("rpak: size mismatch")
)

// Mode describes how the payload of a pak is stored.
type Mode int

// Payload modes
const (
	ModeNone Mode = iota
	ModeRTech
	ModeZStd
)

// String returns the name of the mode as used by the command line.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRTech:
		return "rtech"
	case ModeZStd:
		return "zstd"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a name returned by Mode.String into the mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeNone, ModeRTech, ModeZStd} {
		if s == m.String() {
			return m, nil
		}
	}
	return 0, errors.Errorf("rpak: unknown mode %q", s)
}

// Header is the file header of a pak. All values are stored little-endian.
// The unknown regions are preserved.
type Header struct {
	Magic   uint32
	Version uint16
	Flags   uint16
	// FileTime is a Windows FILETIME.
	FileTime uint64
	Checksum uint64

	CompressedSize        uint64
	EmbeddedStarpakOffset uint64
	Unknown0              [8]byte
	DecompressedSize      uint64
	EmbeddedStarpakSize   uint64
	Unknown1              [8]byte

	StarpakReferenceSize    uint16
	StarpakOptReferenceSize uint16
	VirtualSegmentCount     uint16
	MemPageCount            uint16

	PatchIndex uint32

	DescriptorCount     uint32
	AssetCount          uint32
	GUIDDescriptorCount uint32
	RelationCount       uint32

	Unknown2      [0x10]byte
	MemPageOffset uint32
	Unknown3      [8]byte
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() (data []byte, err error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLen))
	if err = binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the header from the first HeaderLen bytes of
// data. It doesn't validate the header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderLen {
		return errors.Wrapf(ErrTruncated, "%d bytes for header",
			len(data))
	}
	return binary.Read(bytes.NewReader(data[:HeaderLen]),
		binary.LittleEndian, h)
}

// Validate checks magic and version of the header and the sizes that the
// decoders depend on.
func (h *Header) Validate() error {
	if h.Magic != Magic {
		return errors.Wrapf(ErrMagic, "magic %#08x", h.Magic)
	}
	if h.Version != Version {
		return errors.Wrapf(ErrVersion, "version %d", h.Version)
	}
	if h.CompressedSize < HeaderLen {
		return errors.Wrapf(ErrSize, "compressed size %d",
			h.CompressedSize)
	}
	if h.DecompressedSize < HeaderLen {
		return errors.Wrapf(ErrSize, "decompressed size %d",
			h.DecompressedSize)
	}
	return nil
}

// ParseHeader decodes and validates the header at the start of p.
func ParseHeader(p []byte) (h *Header, err error) {
	h = new(Header)
	if err = h.UnmarshalBinary(p); err != nil {
		return nil, err
	}
	if err = h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Mode returns the payload mode given by the flags.
func (h *Header) Mode() Mode {
	switch {
	case h.Flags&FlagCompressed == 0:
		return ModeNone
	case h.Flags&FlagZStd != 0:
		return ModeZStd
	}
	return ModeRTech
}

// IsCompressed reports whether the payload is compressed.
func (h *Header) IsCompressed() bool { return h.Mode() != ModeNone }

// setMode sets the compression flags for the mode.
func (h *Header) setMode(m Mode) {
	h.Flags &^= FlagCompressed | FlagZStd
	switch m {
	case ModeRTech:
		h.Flags |= FlagCompressed
	case ModeZStd:
		h.Flags |= FlagCompressed | FlagZStd
	}
}

// fileTimeEpoch is the Unix epoch in FILETIME intervals of 100 ns, which
// count from 1601-01-01.
const fileTimeEpoch = 116444736000000000

// Time converts the FILETIME of the header.
func (h *Header) Time() time.Time {
	d := int64(h.FileTime - fileTimeEpoch)
	return time.Unix(d/1e7, (d%1e7)*100).UTC()
}

// SetTime stores t as FILETIME.
func (h *Header) SetTime(t time.Time) {
	h.FileTime = uint64(t.Unix()*1e7+int64(t.Nanosecond()/100)) +
		fileTimeEpoch
}

// Ratio returns the compressed size in percent of the decompressed size.
func (h *Header) Ratio() float64 {
	if h.DecompressedSize == 0 {
		return 0
	}
	return float64(h.CompressedSize) * 100 / float64(h.DecompressedSize)
}
