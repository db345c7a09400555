package rtech

// readRunLength reads the extension of a literal run. A 3-bit selector picks
// an entry of shortRuns; the selector 0 is followed by a 4-bit selector for
// longRuns. The extra bits of the selected entry are added to its base.
func readRunLength(br *bitReader) uint64 {
	if t := br.take(3); t != 0 {
		c := shortRuns[t]
		return uint64(c.base) + br.take(uint(c.extraBits))
	}
	c := longRuns[br.take(4)]
	return uint64(c.base) + br.take(uint(c.extraBits))
}

// readExtendedRun reads the extended length of a match. It differs from
// readRunLength in one respect: after the distance the accumulator may hold
// fewer bits than a long selector announces. In that case a single input
// byte is pulled before the extra bits are taken. The function reports false
// if the extra bits are still not covered.
func readExtendedRun(br *bitReader) (v uint64, ok bool) {
	if t := br.take(3); t != 0 {
		c := shortRuns[t]
		return uint64(c.base) + br.take(uint(c.extraBits)), true
	}
	c := longRuns[br.take(4)]
	n := uint(c.extraBits)
	if n >= br.n {
		br.pull()
		if n > br.n {
			return 0, false
		}
	}
	return uint64(c.base) + br.take(n), true
}

// maxExtendedRun returns the largest extension readExtendedRun can read if
// avail bits remain in the accumulator after the selectors.
func maxExtendedRun(avail uint64) uint64 {
	for u := len(longRuns) - 1; u > 0; u-- {
		c := longRuns[u]
		if uint64(c.extraBits) <= avail+8 {
			return uint64(c.base) + 1<<c.extraBits - 1
		}
	}
	c := longRuns[0]
	return uint64(c.base) + 1<<c.extraBits - 1
}
