package sensors

import "time"

// TimeBase is a non-wrapping microsecond counter used by simulated sources.
type TimeBase interface {
	ElapsedMicros() uint64
}

// SystemClock counts from its creation, like a microcontroller counts from boot.
// The 32-bit views wrap after about 49.7 days (ms) and 71.6 minutes (us).
type SystemClock struct {
	start uint64
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: monotonicMicros()}
}

func (c *SystemClock) ElapsedMicros() uint64 { return monotonicMicros() - c.start }
func (c *SystemClock) NowMicros() uint32     { return uint32(c.ElapsedMicros()) }
func (c *SystemClock) NowMillis() uint32     { return uint32(c.ElapsedMicros() / 1000) }
func (c *SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SimClock only moves when told to. Sleep advances it instead of blocking.
type SimClock struct {
	us uint64
}

// NewSimClock starts at startMicros, which lets tests begin close to a wrap.
func NewSimClock(startMicros uint64) *SimClock {
	return &SimClock{us: startMicros}
}

func (c *SimClock) ElapsedMicros() uint64 { return c.us }
func (c *SimClock) NowMicros() uint32     { return uint32(c.us) }
func (c *SimClock) NowMillis() uint32     { return uint32(c.us / 1000) }
func (c *SimClock) Sleep(d time.Duration) { c.Advance(d) }

// Advance moves the clock forward by d, truncated to whole microseconds.
func (c *SimClock) Advance(d time.Duration) {
	c.us += uint64(d / time.Microsecond)
}
