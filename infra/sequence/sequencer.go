package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing stamps. Books use one for
// order priority, the event dispatcher one for envelope numbering.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first stamp is start+1. Callers resuming
// from several stores start at 0 and Advance past each store's mark.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next stamp.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued stamp.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Advance moves the sequencer forward to at least v. It never moves back.
func (s *Sequencer) Advance(v uint64) {
	for {
		cur := s.last.Load()
		if cur >= v || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
