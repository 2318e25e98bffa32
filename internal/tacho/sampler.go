package tacho

// EdgeKind identifies a level transition.
type EdgeKind int

const (
	NoEdge EdgeKind = iota
	RisingEdge
	FallingEdge
)

// Edge describes the transition seen by one Poll.
//
// Period is the time since the previous edge of the same direction.
// Held is how long the level that just ended lasted, measured from the
// previous edge of the opposite direction.
type Edge struct {
	Kind   EdgeKind
	Period uint32
	Held   uint32
}

// Sampler detects transitions on a polled binary line. Timestamps are in
// whatever unit the caller supplies; differences use unsigned wraparound.
type Sampler struct {
	level    bool
	lastRise uint32
	lastFall uint32
}

// Reset sets both edge timestamps to now, so the first transition after a
// reset reports the time elapsed since the reset. The line is assumed low.
func (s *Sampler) Reset(now uint32) {
	s.ResetTo(false, now)
}

// ResetTo is Reset with a known starting level.
func (s *Sampler) ResetTo(level bool, now uint32) {
	s.level = level
	s.lastRise = now
	s.lastFall = now
}

// Poll feeds the current level observed at time now.
func (s *Sampler) Poll(level bool, now uint32) Edge {
	prev := s.level
	s.level = level

	switch {
	case !prev && level:
		e := Edge{Kind: RisingEdge, Period: now - s.lastRise, Held: now - s.lastFall}
		s.lastRise = now
		return e
	case prev && !level:
		e := Edge{Kind: FallingEdge, Period: now - s.lastFall, Held: now - s.lastRise}
		s.lastFall = now
		return e
	}
	return Edge{}
}

// Level returns the last polled level.
func (s *Sampler) Level() bool {
	return s.level
}

// LastRise returns the timestamp of the most recent rising edge.
func (s *Sampler) LastRise() uint32 { return s.lastRise }

// LastFall returns the timestamp of the most recent falling edge.
func (s *Sampler) LastFall() uint32 { return s.lastFall }
