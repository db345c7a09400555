package rtech

import (
	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/xlog"
)

// chunkSlack is the number of bytes at the end of an input chunk that are
// skipped.
const chunkSlack = 7

// skipChunk moves the input position to the start of the next chunk if it
// has reached the chunk limit.
func (d *Decoder) skipChunk() error {
	br := &d.br
	if br.pos < d.chunkLimit {
		return nil
	}
	p := (br.pos + chunkSlack) &^ d.chunkMask
	if p < br.pos {
		return errors.Wrapf(ErrCorrupt, "chunk skip from %d to %d",
			br.pos, p)
	}
	d.record(EventChunkSkip, p-br.pos)
	br.pos = p
	d.chunkLimit += d.chunkMask + 1
	return nil
}

// nextBlock reads the length field of the next block and computes the
// block limits. A field that doesn't fit into the current chunk is stored
// at the start of the next chunk.
func (d *Decoder) nextBlock() error {
	br := &d.br
	br.take(1)
	rem := d.chunkMask & -br.pos
	if d.fieldLen > rem {
		br.pos += rem
		if br.pos > d.chunkLimit {
			d.chunkLimit += d.chunkMask + 1
		}
	}
	f, ok := br.field(br.pos, int(d.fieldLen))
	if !ok {
		return errors.Wrapf(ErrCorrupt,
			"block length field at %d beyond input length %d",
			br.pos, br.avail)
	}
	br.pos += d.fieldLen
	d.need += f
	d.inEnd += f
	if d.size-d.outPos-1 <= d.blockMask {
		d.outEnd = d.size
		d.inEnd += d.fieldLen
	} else {
		d.outEnd = d.outPos + d.blockMask + 1
	}
	xlog.Printf(d.logger, "rtech: block at %d ends at %d need %d",
		d.outPos, d.outEnd, d.need)
	d.record(EventBlock, d.outPos)
	return d.skipChunk()
}
