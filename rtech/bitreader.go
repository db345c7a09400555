package rtech

// bitReader reads the bit stream least significant bit first. Bytes are
// addressed by their absolute stream position masked with mask, so the
// buffer may be used as a ring. The reader pulls whole bytes only; raw
// literal bytes and length fields are read at pos directly, interleaved with
// the bit stream.
type bitReader struct {
	buf  []byte
	mask uint64
	// pos is the position of the next byte to pull
	pos uint64
	// avail is the number of stream bytes available to the reader
	avail uint64
	acc   uint64
	// n is the number of valid bits in acc
	n uint
}

// minValidBits is the number of bits available after a refill.
const minValidBits = 57

// byteAt returns the byte at the absolute stream position p. Positions
// outside the available input read as zero.
func (br *bitReader) byteAt(p uint64) byte {
	if p >= br.avail {
		return 0
	}
	i := p & br.mask
	if i >= uint64(len(br.buf)) {
		return 0
	}
	return br.buf[i]
}

// pull appends the next stream byte to the accumulator.
func (br *bitReader) pull() {
	br.acc |= uint64(br.byteAt(br.pos)) << br.n
	br.n += 8
	br.pos++
}

// refill pulls bytes until at least minValidBits are available.
func (br *bitReader) refill() {
	for br.n < minValidBits {
		br.pull()
	}
}

// peek returns the next n bits without consuming them.
func (br *bitReader) peek(n uint) uint64 {
	return br.acc & (1<<n - 1)
}

// take consumes the next n bits.
func (br *bitReader) take(n uint) uint64 {
	v := br.acc & (1<<n - 1)
	br.acc >>= n
	br.n -= n
	return v
}

// field reads a little-endian value of n bytes at position p. It reports
// false if the value extends beyond the available input.
func (br *bitReader) field(p uint64, n int) (v uint64, ok bool) {
	if n == 0 {
		return 0, true
	}
	if p+uint64(n) > br.avail || p+uint64(n) < p {
		return 0, false
	}
	for i := 0; i < n; i++ {
		v |= uint64(br.byteAt(p+uint64(i))) << (8 * i)
	}
	return v, true
}
