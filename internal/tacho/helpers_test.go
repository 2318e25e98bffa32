package tacho

import "time"

// fakeClock advances only when told to, or when Sleep is called.
type fakeClock struct {
	us uint64
}

func (c *fakeClock) NowMillis() uint32       { return uint32(c.us / 1000) }
func (c *fakeClock) NowMicros() uint32       { return uint32(c.us) }
func (c *fakeClock) Sleep(d time.Duration)   { c.us += uint64(d / time.Microsecond) }
func (c *fakeClock) advance(d time.Duration) { c.Sleep(d) }

// scriptSensor replays levels in a loop.
type scriptSensor struct {
	levels []bool
	reads  int
}

func (s *scriptSensor) ReadLevel() bool {
	v := s.levels[s.reads%len(s.levels)]
	s.reads++
	return v
}

func bits(vs ...int) []bool {
	out := make([]bool, len(vs))
	for i, v := range vs {
		out[i] = v != 0
	}
	return out
}
