package rtech

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log"
	"math/rand"
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/internal/randtxt"
	"github.com/rpaktools/rpak/xlog"
)

func TestEncodeFixtures(t *testing.T) {
	for _, f := range readFixtures(t) {
		ops := append([]op(nil), f.ops...)
		p, err := encode(f.data, ops, f.encoderConfig())
		if err != nil {
			t.Fatalf("%s: encode error %s", f.name, err)
		}
		if !bytes.Equal(p, f.stream) {
			for i := range p {
				if i >= len(f.stream) || p[i] != f.stream[i] {
					t.Fatalf("%s: stream differs at %d "+
						"(len %d; want %d)", f.name, i,
						len(p), len(f.stream))
				}
			}
			t.Fatalf("%s: stream length %d; want %d", f.name,
				len(p), len(f.stream))
		}
	}
}

func TestCompress(t *testing.T) {
	tests := []EncoderConfig{
		{HeaderSize: 0x80},
		{ChunkBits: 12, BlockBits: 12},
		{HeaderSize: 0x80, ChunkBits: 10, BlockBits: 11},
		{HeaderSize: 0x80, ChunkBits: 16, BlockBits: 12},
		{HeaderSize: 0x80, ChunkBits: 8, BlockBits: 10},
		{HeaderSize: 0x80, ChunkBits: 20, BlockBits: 16,
			WindowSize: 1 << 12},
	}
	sizes := []int{1, 15, 16, 17, 200, 4096, 70000}
	rnd := rand.New(rand.NewSource(3))
	for i, cfg := range tests {
		for _, n := range sizes {
			cfg := cfg
			data := randtxt.Payload(int64(i*1000+n), cfg.HeaderSize+n)
			t.Run(fmt.Sprintf("%d-%d", i, n), func(t *testing.T) {
				p, err := Compress(data, cfg)
				if err != nil {
					t.Fatalf("Compress error %s", err)
				}
				t.Logf("compressed %d bytes to %d", len(data), len(p))
				q, err := Decompress(p, cfg.HeaderSize)
				if err != nil {
					t.Fatalf("Decompress error %s", err)
				}
				if !bytes.Equal(q, data) {
					t.Fatalf("Decompress returned different data")
				}
				q = decodeChunked(t, p, cfg.HeaderSize, len(data), rnd)
				if !bytes.Equal(q, data) {
					t.Fatalf("chunked decoding returned different data")
				}
			})
		}
	}
}

func TestCompressRuns(t *testing.T) {
	// long runs exercise the long run extensions
	var data []byte
	data = append(data, bytes.Repeat([]byte{'x'}, 3<<20)...)
	data = append(data, randtxt.Payload(1, 300000)...)
	data = append(data, bytes.Repeat([]byte("0123456789abcdef"), 200000)...)
	hsum := sha256.Sum256(data)

	var logger xlog.Logger
	if testing.Verbose() {
		logger = log.New(os.Stderr, "", 0)
	}
	cfg := EncoderConfig{
		HeaderSize: 0x80,
		ChunkBits:  20,
		BlockBits:  18,
		Logger:     logger,
	}
	p, err := Compress(data, cfg)
	if err != nil {
		t.Fatalf("Compress error %s", err)
	}
	t.Logf("compressed %d bytes to %d", len(data), len(p))
	var c Counters
	out := make([]byte, len(data))
	copy(out, data[:0x80])
	d, err := NewDecoderConfig(p, uint64(len(p)), out, DecoderConfig{
		HeaderSize: 0x80,
		Instrument: c.Record,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewDecoderConfig error %s", err)
	}
	s, err := d.Decode(uint64(len(p)), uint64(len(out)))
	if err != nil || s != Done {
		t.Fatalf("Decode returned %v, %v; want %v", s, err, Done)
	}
	if sha256.Sum256(out) != hsum {
		t.Fatalf("decompressed data differs")
	}
	if c.ExtendedRuns == 0 || c.Blocks == 0 {
		t.Fatalf("counters %+v; want extended runs and blocks", c)
	}
	t.Logf("%+v", c)
}

func TestEncoderConfigVerify(t *testing.T) {
	tests := []EncoderConfig{
		{HeaderSize: -1},
		{ChunkBits: 7},
		{ChunkBits: 65},
		{ChunkBits: 12, BlockBits: 5},
		{BlockBits: 12},
		{ChunkBits: 12, BlockBits: 15},
		{WindowSize: MaxDistance + 1},
	}
	for i, cfg := range tests {
		cfg.SetDefaults()
		if err := cfg.Verify(); err == nil {
			t.Errorf("%d: Verify returned no error for %+v", i, cfg)
		}
	}
	var cfg EncoderConfig
	cfg.SetDefaults()
	if err := cfg.Verify(); err != nil {
		t.Fatalf("Verify error %s for defaults", err)
	}
}

func TestExtendedRun(t *testing.T) {
	// The filler leaves 13 valid bits after the selectors, one pull
	// covers the 21 extra bits of the longest run extension.
	const filler = 44
	var e encoder
	e.w.refill()
	e.w.put(0, filler)
	v := uint64(maxRunExtension)
	if err := e.putRun(v, true); err != nil {
		t.Fatalf("putRun error %s", err)
	}
	pulled := len(e.w.pulled)
	p := e.w.flush()
	if pulled != 9 {
		t.Fatalf("writer pulled %d bytes; want %d", pulled, 9)
	}

	br := bitReader{buf: p, mask: flat, avail: uint64(len(p))}
	br.refill()
	br.take(filler)
	g, ok := readExtendedRun(&br)
	if !ok || g != v {
		t.Fatalf("readExtendedRun returned %d, %t; want %d, true",
			g, ok, v)
	}
	if br.pos != 9 {
		t.Fatalf("reader position %d; want %d", br.pos, 9)
	}

	for _, v := range []uint64{0, 1, 2, 7, 42, 73, 74, 1449, 140714} {
		var e encoder
		e.w.refill()
		if err := e.putRun(v, false); err != nil {
			t.Fatalf("putRun(%d) error %s", v, err)
		}
		p := e.w.flush()
		br := bitReader{buf: p, mask: flat, avail: uint64(len(p))}
		br.refill()
		if g := readRunLength(&br); g != v {
			t.Fatalf("readRunLength returned %d; want %d", g, v)
		}
	}
}

func TestExtendedRunAccumulatorEnd(t *testing.T) {
	// 12 valid bits after the selectors; a single pull leaves the 21
	// extra bits uncovered
	const filler = 45
	var e encoder
	e.w.refill()
	e.w.put(0, filler)
	err := e.putRun(maxRunExtension, true)
	if !errors.Is(err, errNoCode) {
		t.Fatalf("putRun error %v; want %v", err, errNoCode)
	}

	// selector 0 and long selector 15 followed by too few bits
	br := bitReader{acc: 0xf << 3, n: 7 + 12}
	if _, ok := readExtendedRun(&br); ok {
		t.Fatalf("readExtendedRun reported success")
	}

	if m := maxExtendedRun(13); m != maxRunExtension {
		t.Fatalf("maxExtendedRun(13) = %d; want %d", m,
			maxRunExtension)
	}
	if m := maxExtendedRun(12); m != 140713 {
		t.Fatalf("maxExtendedRun(12) = %d; want %d", m, 140713)
	}
}

func TestCompressLiteralContextRuns(t *testing.T) {
	// An 18-byte literal run needs the run extension 1 in the match
	// context. The trailing literals follow a match and use the literal
	// context.
	data := []byte("ABCDEFGHIJKLMNOPQR")
	for i := 0; i < 40; i++ {
		data = append(data, data[len(data)-18])
	}
	data = append(data, "0123456789abcdefghijklmnopqrstuv"...)
	tests := []EncoderConfig{
		{},
		{ChunkBits: 12, BlockBits: 12},
	}
	for _, cfg := range tests {
		p, err := Compress(data, cfg)
		if err != nil {
			t.Fatalf("Compress error %s", err)
		}
		q, err := Decompress(p, 0)
		if err != nil {
			t.Fatalf("Decompress error %s", err)
		}
		if !bytes.Equal(q, data) {
			t.Fatalf("Decompress returned different data")
		}
	}
	for v := uint64(0); v < 80; v++ {
		ops := []op{{n: 18}, {dist: 18, n: 40}}
		cfg := &EncoderConfig{}
		cfg.SetDefaults()
		ops[0].n += v
		d := append([]byte(nil), data[:18]...)
		d = append(d, bytes.Repeat([]byte{'z'}, int(v))...)
		for i := 0; i < 40; i++ {
			d = append(d, d[len(d)-18])
		}
		p, err := encode(d, ops, cfg)
		if err != nil {
			t.Fatalf("encode with literal run %d error %s", 18+v, err)
		}
		q, err := Decompress(p, 0)
		if err != nil {
			t.Fatalf("Decompress literal run %d error %s", 18+v, err)
		}
		if !bytes.Equal(q, d) {
			t.Fatalf("literal run %d: different data", 18+v)
		}
	}
}

func TestFieldOverflow(t *testing.T) {
	data := randtxt.Payload(5, 70000)
	cfg := &EncoderConfig{ChunkBits: 8, BlockBits: 8}
	_, err := encode(data, []op{{n: uint64(len(data))}}, cfg)
	if err != nil {
		t.Fatalf("encode error %s", err)
	}
	cfg = &EncoderConfig{ChunkBits: 8, BlockBits: 64}
	_, err = encode(data, []op{{n: uint64(len(data))}}, cfg)
	if !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("encode error %v; want %v", err, ErrFieldOverflow)
	}
}
