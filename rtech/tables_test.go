package rtech

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestPrefixCodesComplete(t *testing.T) {
	tests := []struct {
		name  string
		codes []prefixCode
	}{
		{"match context", matchContextCodes},
		{"literal context", literalContextCodes},
		{"distance", distLowCodes},
	}
	for _, tc := range tests {
		var sum uint64
		for _, c := range tc.codes {
			sum += 1 << (64 - c.bits - 8)
		}
		if sum != 1<<56 {
			t.Errorf("%s: Kraft sum %#x; want %#x", tc.name, sum,
				uint64(1)<<56)
		}
	}
}

func TestSymbolTables(t *testing.T) {
	wantValues := []int8{4, -2, -4, 8, 4, -17, 17, -7, 4, -3, -4, 7, 4, 5,
		-1, -12}
	wantBits := []uint8{2, 4, 3, 5, 2, 4, 4, 6, 2, 4, 3, 6, 2, 5, 4, 6}
	for i := range wantValues {
		if symbolValue[i] != wantValues[i] || symbolBits[i] != wantBits[i] {
			t.Fatalf("symbol %d: got %d/%d; want %d/%d", i,
				symbolValue[i], symbolBits[i], wantValues[i],
				wantBits[i])
		}
	}
	if v := symbolValue[255]; v != -16 {
		t.Fatalf("symbolValue[255] = %d; want -16", v)
	}
	if v, n := symbolValue[256+15], symbolBits[256+15]; v != 17 || n != 6 {
		t.Fatalf("symbol 256+15 = %d/%d; want 17/6", v, n)
	}
	if v := symbolValue[511]; v != -1 {
		t.Fatalf("symbolValue[511] = %d; want -1", v)
	}
	wantLow := []uint8{0, 8, 0, 4, 0, 8, 0, 6, 0, 8, 0, 1, 0, 8, 0, 11}
	for i, w := range wantLow {
		if distLow[i] != w {
			t.Fatalf("distLow[%d] = %d; want %d", i, distLow[i], w)
		}
	}
	if distLow[63] != 15 || distBits[63] != 6 {
		t.Fatalf("distance code 63 = %d/%d; want 15/6", distLow[63],
			distBits[63])
	}
}

func TestEncodeRun(t *testing.T) {
	values := []uint32{0, 1, 2, 9, 10, 41, 42, 73, 74, 425, 426, 937,
		938, 1449, 1450, 9641, 9642, 140713, 140714, maxRunExtension}
	for _, v := range values {
		c, err := encodeRun(v)
		if err != nil {
			t.Fatalf("encodeRun(%d) error %s", v, err)
		}
		var e codeEntry
		if c.short != 0 {
			e = shortRuns[c.short]
		} else {
			e = longRuns[c.long]
		}
		if e.extraBits != c.extraBits {
			t.Fatalf("encodeRun(%d): extra bits %d; want %d", v,
				c.extraBits, e.extraBits)
		}
		if g := e.base + c.extra; g != v {
			t.Fatalf("encodeRun(%d) decodes to %d", v, g)
		}
		if c.extra >= 1<<c.extraBits {
			t.Fatalf("encodeRun(%d): extra %d exceeds %d bits", v,
				c.extra, c.extraBits)
		}
	}
	// every value up to the long runs has a short code
	for v := uint32(0); v < longRuns[0].base; v++ {
		c, err := encodeRun(v)
		if err != nil || c.short == 0 {
			t.Fatalf("encodeRun(%d) = %+v, %v; want short code",
				v, c, err)
		}
	}
	if _, err := encodeRun(maxRunExtension + 1); !errors.Is(err, errNoCode) {
		t.Fatalf("encodeRun(%d) error %v; want %v", maxRunExtension+1,
			err, errNoCode)
	}
	if _, err := symbolCode(1, -2); !errors.Is(err, errNoCode) {
		t.Fatalf("symbolCode(1, -2) error %v; want %v", err, errNoCode)
	}
}

// readLUT reads the reference decoder table from testdata/lut.txt.
func readLUT(t *testing.T) []byte {
	t.Helper()
	const file = "testdata/lut.txt"
	f, err := os.Open(file)
	if err != nil {
		t.Fatalf("os.Open(%q) error %s", file, err)
	}
	defer f.Close()
	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		sb.WriteString(line)
	}
	if err = scanner.Err(); err != nil {
		t.Fatalf("scanner error %s", err)
	}
	p, err := hex.DecodeString(sb.String())
	if err != nil {
		t.Fatalf("hex.DecodeString error %s", err)
	}
	if len(p) != 1824 {
		t.Fatalf("table has %d bytes; want %d", len(p), 1824)
	}
	return p
}

func TestTablesMatchLUT(t *testing.T) {
	lut := readLUT(t)
	for i := range symbolValue {
		if g, w := symbolValue[i], int8(lut[i]); g != w {
			t.Errorf("symbolValue[%d] = %d; want %d", i, g, w)
		}
		if g, w := symbolBits[i], lut[512+i]; g != w {
			t.Errorf("symbolBits[%d] = %d; want %d", i, g, w)
		}
	}
	for i := range distLow {
		if g, w := distLow[i], lut[1024+i]; g != w {
			t.Errorf("distLow[%d] = %d; want %d", i, g, w)
		}
		if g, w := distBits[i], lut[1088+i]; g != w {
			t.Errorf("distBits[%d] = %d; want %d", i, g, w)
		}
	}
	for i, c := range longRuns {
		w := codeEntry{
			extraBits: lut[1216+i],
			base:      binary.LittleEndian.Uint32(lut[1152+4*i:]),
		}
		if c != w {
			t.Errorf("longRuns[%d] = %+v; want %+v", i, c, w)
		}
	}
	for i, c := range shortRuns {
		w := codeEntry{extraBits: lut[1240+i], base: uint32(lut[1232+i])}
		if c != w {
			t.Errorf("shortRuns[%d] = %+v; want %+v", i, c, w)
		}
	}
	for i, s := range runSentinel {
		if w := uint32(lut[1248+i]); s != w {
			t.Errorf("runSentinel[%d] = %d; want %d", i, s, w)
		}
	}
}

func TestMaxDistance(t *testing.T) {
	var e encoder
	e.w.refill()
	e.putDistance(MaxDistance)
	e.w.refill()
	p := e.w.flush()
	br := bitReader{buf: p, mask: flat, avail: uint64(len(p))}
	br.refill()
	if d := readDistance(&br); d != MaxDistance {
		t.Fatalf("readDistance returned %d; want %d", d, MaxDistance)
	}
}
