package rtech

import "github.com/pkg/errors"

// prefixCode describes a single code word of a prefix code. The code word
// is stored in the order the bits are read from the stream, so the first bit
// read is bit 0 of code.
type prefixCode struct {
	value int8
	code  uint8
	bits  uint8
}

// Symbol codes used directly after a match or at the start of the stream.
// Negative values are literal runs of length -value; non-negative values are
// match lengths. The value 17 selects an extended match length and -17 an
// extended literal run.
var matchContextCodes = []prefixCode{
	{4, 0, 2}, {-2, 1, 4}, {-4, 2, 3}, {8, 3, 5},
	{-17, 5, 4}, {17, 6, 4}, {-7, 7, 6}, {-3, 9, 4},
	{7, 11, 6}, {5, 13, 5}, {-1, 14, 4}, {-12, 15, 6},
	{16, 19, 5}, {-10, 23, 6}, {-5, 27, 6}, {6, 29, 5},
	{11, 31, 8}, {-8, 39, 6}, {12, 43, 6}, {-9, 47, 7},
	{-11, 55, 6}, {-6, 59, 6}, {-13, 63, 8}, {14, 95, 8},
	{9, 111, 8}, {-15, 127, 8}, {13, 159, 8}, {-14, 191, 8},
	{15, 223, 8}, {10, 239, 8}, {-16, 255, 8},
}

// Symbol codes used directly after a literal run. A literal run cannot follow
// a literal run without an extension, so the only literal symbol is the
// extended run -1.
var literalContextCodes = []prefixCode{
	{4, 0, 1}, {5, 1, 2}, {6, 3, 3}, {7, 7, 5},
	{17, 15, 6}, {8, 23, 5}, {12, 31, 7}, {9, 47, 7},
	{14, 63, 8}, {11, 95, 8}, {10, 111, 7}, {16, 127, 8},
	{15, 191, 8}, {13, 223, 8}, {-1, 255, 8},
}

// Codes for the low four bits of a match distance.
var distLowCodes = []prefixCode{
	{0, 0, 1}, {1, 11, 6}, {2, 43, 6}, {3, 27, 6},
	{4, 3, 5}, {5, 59, 6}, {6, 7, 6}, {7, 39, 6},
	{8, 1, 2}, {9, 23, 6}, {10, 55, 6}, {11, 15, 6},
	{12, 19, 5}, {13, 47, 6}, {14, 31, 6}, {15, 63, 6},
}

const (
	// symbolPeek is the number of bits peeked to classify a symbol.
	symbolPeek = 8
	// distPeek is the number of bits peeked to decode the low distance
	// nibble.
	distPeek = 6

	// extendedLength is the symbol value that selects an extended match
	// length.
	extendedLength = 17
	// minMatchLen is the shortest match length the format can express.
	minMatchLen = 4
	// maxDirectLen is the longest match or literal run length that has a
	// symbol of its own.
	maxDirectLen = 16
	// shortDistance is the distance below which extended matches are
	// shortened by shortDistanceBias.
	shortDistance     = 8
	shortDistanceBias = 13

	// maxDistBits is the largest number of extra distance bits.
	maxDistBits = 18
	// MaxDistance is the largest match distance the format can express.
	MaxDistance = 16*((1<<(maxDistBits+1))-2) + 15
)

// codeEntry is an entry of the run extension tables. A run extension
// consists of a selector followed by extraBits bits that are added to base.
type codeEntry struct {
	extraBits uint8
	base      uint32
}

// shortRuns is indexed by the 3-bit selector of a run extension. Selector 0
// is an escape into longRuns.
var shortRuns = [8]codeEntry{
	{0, 0}, {1, 0}, {1, 2}, {1, 4}, {1, 6}, {1, 8}, {5, 10}, {5, 42},
}

// longRuns is indexed by the 4-bit selector following the short selector 0.
var longRuns = [16]codeEntry{
	{5, 74}, {5, 106}, {5, 138}, {5, 170},
	{5, 202}, {5, 234}, {5, 266}, {5, 298},
	{5, 330}, {5, 362}, {5, 394}, {9, 426},
	{9, 938}, {13, 1450}, {17, 9642}, {21, 140714},
}

// maxRunExtension is the largest value a run extension can encode.
const maxRunExtension = 140714 + 1<<21 - 1

// runSentinel gives the literal length that announces an extended literal
// run, indexed by the literal context.
var runSentinel = [2]uint32{17, 1}

// Lookup tables derived from the prefix codes. The symbol tables are
// indexed by context*256 + next 8 bits, the distance tables by the next 6
// bits.
var (
	symbolValue [2 << symbolPeek]int8
	symbolBits  [2 << symbolPeek]uint8
	distLow     [1 << distPeek]uint8
	distBits    [1 << distPeek]uint8
)

// fillTable spreads the code words over all table indexes that share the
// code word as prefix.
func fillTable(values []int8, bits []uint8, codes []prefixCode) {
	for _, c := range codes {
		step := 1 << c.bits
		for i := int(c.code); i < len(values); i += step {
			values[i] = c.value
			bits[i] = c.bits
		}
	}
}

func init() {
	const n = 1 << symbolPeek
	fillTable(symbolValue[:n], symbolBits[:n], matchContextCodes)
	fillTable(symbolValue[n:], symbolBits[n:], literalContextCodes)
	var low [1 << distPeek]int8
	fillTable(low[:], distBits[:], distLowCodes)
	for i, v := range low {
		distLow[i] = uint8(v)
	}
}

// errNoCode indicates that the encoder requested a symbol or run extension
// the format has no code for.
var errNoCode = errors.New("rtech: no code")

// symbolCode returns the code word for the symbol value in the given
// context. The function is used by the encoder.
func symbolCode(context int, value int) (prefixCode, error) {
	codes := matchContextCodes
	if context != 0 {
		codes = literalContextCodes
	}
	for _, c := range codes {
		if int(c.value) == value {
			return c, nil
		}
	}
	return prefixCode{}, errors.Wrapf(errNoCode,
		"symbol %d in context %d", value, context)
}

// runCode describes how a run extension value is encoded.
type runCode struct {
	short     uint32
	long      uint32
	extra     uint32
	extraBits uint8
}

// encodeRun returns the run extension code for e. Values above
// maxRunExtension have no code.
func encodeRun(e uint32) (runCode, error) {
	for t := 1; t < len(shortRuns); t++ {
		c := shortRuns[t]
		if c.base <= e && e < c.base+1<<c.extraBits {
			return runCode{short: uint32(t), extra: e - c.base,
				extraBits: c.extraBits}, nil
		}
	}
	for u, c := range longRuns {
		if c.base <= e && e < c.base+1<<c.extraBits {
			return runCode{long: uint32(u), extra: e - c.base,
				extraBits: c.extraBits}, nil
		}
	}
	return runCode{}, errors.Wrapf(errNoCode, "run extension %d", e)
}
