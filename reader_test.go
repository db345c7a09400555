package rpak

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpaktools/rpak/internal/randtxt"
	"github.com/rpaktools/rpak/rtech"
)

// smallRings forces the ring buffers to wrap around many times.
var smallRings = ReaderConfig{InputSize: minRingSize, OutputSize: minRingSize}

func readAll(t *testing.T, p []byte, cfg ReaderConfig) []byte {
	t.Helper()
	r, err := NewReaderConfig(iotest.HalfReader(bytes.NewReader(p)), cfg)
	require.NoError(t, err)
	defer r.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, iotest.OneByteReader(io.LimitReader(r, 300)))
	require.NoError(t, err)
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReader(t *testing.T) {
	file := testPak(randtxt.Payload(7, 200000), 0)
	for i, wcfg := range writerConfigs {
		wcfg := wcfg
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			p, err := Compress(file, wcfg)
			require.NoError(t, err)

			g := readAll(t, p, ReaderConfig{})
			require.True(t, bytes.Equal(file, g), "default rings")

			if wcfg.RTech.WindowSize == 0 && wcfg.Mode != ModeZStd {
				return
			}
			g = readAll(t, p, smallRings)
			require.True(t, bytes.Equal(file, g), "small rings")
		})
	}
}

func TestReaderUncompressed(t *testing.T) {
	file := testPak(randtxt.Payload(8, 5000), 0)
	g := readAll(t, file, ReaderConfig{})
	require.Equal(t, file, g)
}

func TestReaderRings(t *testing.T) {
	file := testPak(randtxt.Payload(9, 100000), 0)
	p, err := Compress(file, WriterConfig{
		RTech: rtech.EncoderConfig{
			ChunkBits:  12,
			BlockBits:  14,
			WindowSize: 2048,
		},
	})
	require.NoError(t, err)

	var c rtech.Counters
	cfg := smallRings
	cfg.Instrument = c.Record
	r, err := NewReaderConfig(bytes.NewReader(p), cfg)
	require.NoError(t, err)
	// the output ring holds a complete block
	assert.Equal(t, 1<<14, len(r.out))
	assert.Equal(t, 2<<14, len(r.in))
	g, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, file, g)
	assert.NotZero(t, c.ChunkSkips)
	h := r.Header()
	assert.Equal(t, ModeRTech, h.Mode())

	// matches reaching beyond the output ring are rejected
	noise := make([]byte, 8000)
	rand.New(rand.NewSource(1)).Read(noise)
	file = testPak(append(noise, noise...), 0)
	p, err = Compress(file, WriterConfig{
		RTech: rtech.EncoderConfig{ChunkBits: 12, BlockBits: 12},
	})
	require.NoError(t, err)
	r, err = NewReaderConfig(bytes.NewReader(p), smallRings)
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.True(t, errors.Is(err, rtech.ErrCorrupt), "error %v", err)
	q, err := Decompress(p)
	require.NoError(t, err)
	require.Equal(t, file, q)
}

func TestReaderTruncated(t *testing.T) {
	file := testPak(randtxt.Payload(10, 50000), 0)
	for i, wcfg := range writerConfigs {
		p, err := Compress(file, wcfg)
		require.NoError(t, err)
		p = p[:len(p)-len(p)/3]
		r, err := NewReaderConfig(bytes.NewReader(p), smallRings)
		if err != nil {
			assert.True(t, errors.Is(err, ErrTruncated),
				"%d: NewReaderConfig error %v", i, err)
			continue
		}
		_, err = io.ReadAll(r)
		assert.Error(t, err, "config %d", i)
		r.Close()
	}

	_, err := NewReader(bytes.NewReader(file[:20]))
	assert.True(t, errors.Is(err, ErrTruncated), "error %v", err)
}

func TestReaderConfigVerify(t *testing.T) {
	cfg := ReaderConfig{InputSize: 100}
	cfg.SetDefaults()
	assert.Error(t, cfg.Verify())
	cfg = ReaderConfig{}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Verify())
	assert.Equal(t, defaultOutputSize, cfg.OutputSize)
}
