package rtech

// streamWriter builds a compressed stream. It mirrors the byte pulls of the
// bitReader: whenever the decoder would pull a byte, the writer reserves the
// byte at the current stream position and fills it once the bits for it
// have been written. Raw bytes, length fields and chunk padding are appended
// at the current position in between.
type streamWriter struct {
	buf []byte
	// pulled holds the positions of the reserved bit stream bytes
	pulled []int
	// next indexes the next reserved byte to fill
	next int
	acc  uint64
	// n is the number of bits in acc
	n uint
	// written is the total number of bits written
	written uint64
}

// pos returns the current stream position.
func (w *streamWriter) pos() uint64 { return uint64(len(w.buf)) }

// valid returns the number of bits the decoder holds in its accumulator at
// this point of the stream.
func (w *streamWriter) valid() uint64 {
	return 8*uint64(len(w.pulled)) - w.written
}

// pull reserves a bit stream byte at the current position.
func (w *streamWriter) pull() {
	w.pulled = append(w.pulled, len(w.buf))
	w.buf = append(w.buf, 0)
}

// refill mirrors bitReader.refill.
func (w *streamWriter) refill() {
	for w.valid() < minValidBits {
		w.pull()
	}
}

// put writes the lower n bits of v into the bit stream.
func (w *streamWriter) put(v uint64, n uint) {
	w.acc |= v << w.n
	w.n += n
	w.written += uint64(n)
	for w.n >= 8 {
		w.buf[w.pulled[w.next]] = byte(w.acc)
		w.next++
		w.acc >>= 8
		w.n -= 8
	}
}

// putCode writes a prefix code word.
func (w *streamWriter) putCode(c prefixCode) {
	w.put(uint64(c.code), uint(c.bits))
}

// appendRaw appends raw bytes at the current position.
func (w *streamWriter) appendRaw(p []byte) {
	w.buf = append(w.buf, p...)
}

// pad appends n zero bytes.
func (w *streamWriter) pad(n uint64) {
	for ; n > 0; n-- {
		w.buf = append(w.buf, 0)
	}
}

// reserve appends n zero bytes and returns their position.
func (w *streamWriter) reserve(n int) int {
	p := len(w.buf)
	w.pad(uint64(n))
	return p
}

// putField stores v as little-endian value of n bytes at position p.
func (w *streamWriter) putField(p int, n int, v uint64) {
	for i := 0; i < n; i++ {
		w.buf[p+i] = byte(v >> (8 * i))
	}
}

// flush writes the remaining bits and returns the stream.
func (w *streamWriter) flush() []byte {
	if w.n > 0 {
		w.buf[w.pulled[w.next]] = byte(w.acc)
		w.acc, w.n = 0, 0
	}
	return w.buf
}
