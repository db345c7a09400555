package rpak

// frame returns the buffer index i and the length n of the contiguous part
// of a ring buffer that starts at the stream position pos. The part ends at
// the end of the ring or at the stream position end, whatever comes first.
// A mask of all ones describes a flat buffer.
func frame(mask, pos, end uint64) (i, n uint64) {
	i = pos & mask
	n = mask - i + 1
	if rem := end - pos; n == 0 || rem < n {
		n = rem
	}
	return i, n
}

// ringSize returns the smallest power of two that is at least n.
func ringSize(n uint64) uint64 {
	s := uint64(1)
	for s < n {
		s <<= 1
	}
	return s
}
