package rtech

import "fmt"

// Event identifies a decoding event reported to an instrumentation
// callback.
type Event int

// Decoding events. The value passed with the event is given in parentheses.
const (
	// EventLiteral reports a literal run (length).
	EventLiteral Event = iota
	// EventMatch reports a match (length).
	EventMatch
	// EventExtendedRun reports an extended match length (length).
	EventExtendedRun
	// EventChunkSkip reports a skip to the next input chunk (skipped
	// bytes).
	EventChunkSkip
	// EventBlock reports the start of an output block (output position).
	EventBlock
)

var eventNames = [...]string{
	EventLiteral:     "literal",
	EventMatch:       "match",
	EventExtendedRun: "extended run",
	EventChunkSkip:   "chunk skip",
	EventBlock:       "block",
}

func (e Event) String() string {
	if 0 <= e && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Counters accumulates decoding statistics. Its Record method can be used
// as DecoderConfig.Instrument.
type Counters struct {
	Literals     uint64
	LiteralBytes uint64
	Matches      uint64
	MatchBytes   uint64
	ExtendedRuns uint64
	ChunkSkips   uint64
	SkippedBytes uint64
	Blocks       uint64
}

// Record adds the event to the counters.
func (c *Counters) Record(e Event, v uint64) {
	switch e {
	case EventLiteral:
		c.Literals++
		c.LiteralBytes += v
	case EventMatch:
		c.Matches++
		c.MatchBytes += v
	case EventExtendedRun:
		c.ExtendedRuns++
	case EventChunkSkip:
		c.ChunkSkips++
		c.SkippedBytes += v
	case EventBlock:
		c.Blocks++
	}
}
