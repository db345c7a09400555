package rtech

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

// fixture is a stream from testdata/fixtures.txt together with the
// operations it has been encoded from.
type fixture struct {
	name       string
	headerSize int
	chunkBits  int
	blockBits  int
	ops        []op
	stream     []byte
	data       []byte
}

func parseOps(fields []string) (ops []op, err error) {
	for _, f := range fields {
		switch f[0] {
		case 'L':
			n, err := strconv.ParseUint(f[1:], 10, 64)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op{n: n})
		case 'M':
			var o op
			if _, err := fmt.Sscanf(f[1:], "%d,%d", &o.dist, &o.n); err != nil {
				return nil, err
			}
			ops = append(ops, o)
		default:
			return nil, fmt.Errorf("unexpected op %q", f)
		}
	}
	return ops, nil
}

// fixturePayload recreates the payload the fixtures have been generated
// from.
func fixturePayload(n int) []byte {
	var p []byte
	for i := 0; len(p) < n; i++ {
		p = append(p, fmt.Sprintf("item %d: value=%d;", i%37, (i*7919)%101)...)
		if i%11 == 0 {
			for j := 0; j < 40; j++ {
				p = append(p, byte(i))
			}
		}
		if i%13 == 0 {
			for j := 0; j < 23; j++ {
				p = append(p, byte(i*31+j*17))
			}
		}
	}
	return p[:n]
}

// fixtureNoise produces bytes from a linear congruential generator.
func fixtureNoise(n int) []byte {
	p := make([]byte, n)
	x := uint64(1)
	for i := range p {
		x = x*6364136223846793005 + 1442695040888963407
		p[i] = byte(x >> 56)
	}
	return p
}

func fixtureData(name string, headerSize, n int) []byte {
	data := make([]byte, headerSize, headerSize+n)
	for i := range data {
		data[i] = byte(i)
	}
	switch name {
	case "scenario":
		data = append(data, "ABCDEFGHIJKL"...)
		for i := 0; i < 20; i++ {
			data = append(data, data[len(data)-8])
		}
	case "literals":
		data = append(data, "ABCDEFGHIJKLMNOPQR"...)
		for i := 0; i < 40; i++ {
			data = append(data, data[len(data)-18])
		}
	case "noise":
		data = append(data, fixtureNoise(n/2)...)
		data = append(data, fixturePayload(n-n/2)...)
	default:
		data = append(data, fixturePayload(n)...)
	}
	return data
}

func readFixtures(t *testing.T) []*fixture {
	t.Helper()
	const file = "testdata/fixtures.txt"
	f, err := os.Open(file)
	if err != nil {
		t.Fatalf("os.Open(%q) error %s", file, err)
	}
	defer f.Close()

	var (
		fixtures []*fixture
		cur      *fixture
		sb       strings.Builder
	)
	finish := func() {
		if cur == nil {
			return
		}
		s, err := hex.DecodeString(sb.String())
		if err != nil {
			t.Fatalf("%s: hex.DecodeString error %s", cur.name, err)
		}
		cur.stream = s
		sb.Reset()
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "fixture":
			finish()
			cur = &fixture{name: fields[1]}
			var n int
			_, err = fmt.Sscan(strings.Join(fields[2:], " "),
				&cur.headerSize, &cur.chunkBits, &cur.blockBits, &n)
			if err != nil {
				t.Fatalf("%s: parse fixture line error %s", line, err)
			}
			cur.data = fixtureData(cur.name, cur.headerSize, n)
			fixtures = append(fixtures, cur)
		case "ops":
			if cur.ops, err = parseOps(fields[1:]); err != nil {
				t.Fatalf("%s: parseOps error %s", cur.name, err)
			}
		case "stream":
			sb.WriteString(fields[1])
		}
	}
	if err = scanner.Err(); err != nil {
		t.Fatalf("scanner error %s", err)
	}
	finish()
	return fixtures
}

func (f *fixture) encoderConfig() *EncoderConfig {
	return &EncoderConfig{
		HeaderSize: f.headerSize,
		ChunkBits:  f.chunkBits,
		BlockBits:  f.blockBits,
	}
}
