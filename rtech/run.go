package rtech

import "github.com/pkg/errors"

// edgeDistance is the distance to a chunk or block end below which extended
// literal runs start at length 1.
const edgeDistance = 15

// step decodes a single symbol and executes it.
func (d *Decoder) step() error {
	br := &d.br
	br.refill()
	i := d.context<<symbolPeek | int(br.peek(symbolPeek))
	br.take(uint(symbolBits[i]))
	v := int(symbolValue[i])
	if v < 0 {
		return d.literalRun(uint64(-v))
	}
	return d.match(uint64(v))
}

// nearEdge reports whether the input position is close to the end of the
// current input chunk or the output position close to the end of the output
// block or the output.
func (d *Decoder) nearEdge() bool {
	return ^d.br.pos&d.chunkMask < edgeDistance ||
		d.blockMask&^d.outPos < edgeDistance ||
		d.size-d.outPos <= edgeDistance
}

// literalRun copies n raw bytes from the input to the output. The length
// is extended if n is the run sentinel of the current context.
func (d *Decoder) literalRun(n uint64) error {
	context := d.context
	d.context = 1
	if n == uint64(runSentinel[context]) {
		if d.nearEdge() {
			n = 1
		}
		n += readRunLength(&d.br)
	}
	if n > d.outEnd-d.outPos {
		return errors.Wrapf(ErrCorrupt,
			"literal run of %d bytes exceeds block end %d at %d",
			n, d.outEnd, d.outPos)
	}
	br := &d.br
	if br.pos+n > br.avail || br.pos+n < br.pos {
		return errors.Wrapf(ErrCorrupt,
			"literal run of %d bytes exceeds input length %d at %d",
			n, br.avail, br.pos)
	}
	for k := n; k > 0; {
		i, o := br.pos&br.mask, d.outPos&d.outMask
		m := span(br.mask, i, k)
		m = span(d.outMask, o, m)
		copy(d.out[o:o+m], br.buf[i:i+m])
		br.pos += m
		d.outPos += m
		k -= m
	}
	d.record(EventLiteral, n)
	return nil
}

// span returns the number of bytes up to n that can be accessed at index i
// without wrapping around the ring given by mask.
func span(mask, i, n uint64) uint64 {
	if mask == flat {
		return n
	}
	if r := mask - i + 1; r < n {
		return r
	}
	return n
}

// readDistance reads the distance of a match.
func readDistance(br *bitReader) uint64 {
	nb := uint(br.take(4))
	if nb == 15 {
		nb += uint(br.take(2))
	}
	i := br.peek(distPeek)
	br.take(uint(distBits[i]))
	return 16*(1<<nb-1+br.take(nb)) + uint64(distLow[i])
}

// match copies n bytes from the output history. A length of extendedLength
// is replaced by the extended run that follows the distance.
func (d *Decoder) match(n uint64) error {
	d.context = 0
	dist := readDistance(&d.br)
	if n == extendedLength {
		ext, ok := readExtendedRun(&d.br)
		if !ok {
			return errors.Wrapf(ErrCorrupt,
				"extended run exceeds accumulator at %d", d.outPos)
		}
		n = ext + extendedLength
		if dist < shortDistance {
			n -= shortDistanceBias
		}
		d.record(EventExtendedRun, n)
	}
	if dist == 0 || dist > d.outPos || (d.outMask != flat && dist > d.outMask) {
		return errors.Wrapf(ErrCorrupt, "distance %d at %d", dist,
			d.outPos)
	}
	if n > d.outEnd-d.outPos {
		return errors.Wrapf(ErrCorrupt,
			"match of %d bytes exceeds block end %d at %d",
			n, d.outEnd, d.outPos)
	}
	p, m := d.outPos, d.outMask
	for j := p; j < p+n; j++ {
		d.out[j&m] = d.out[(j-dist)&m]
	}
	d.outPos += n
	d.record(EventMatch, n)
	return nil
}
