package tacho

import "time"

type rampPhase int

const (
	rampIdle rampPhase = iota
	rampPriming
	rampStepping
	rampDone
)

// Ramp raises the RPM the window is derived from in tenths of the target.
// It first lets RampSteps cycles run at the current setting, then issues up
// to RampSteps increasing values, one per step interval, stopping early once
// the estimate reaches RampSettleRatio of the target. Advance never blocks.
type Ramp struct {
	phase    rampPhase
	primed   int
	step     int
	target   uint16
	interval uint32
	lastStep uint32

	issued  [RampSteps]uint16
	nIssued int
}

// NewRamp returns an idle ramp that waits stepInterval between steps.
func NewRamp(stepInterval time.Duration) *Ramp {
	return &Ramp{interval: uint32(stepInterval / time.Millisecond)}
}

// Start arms the ramp towards target.
func (r *Ramp) Start(target uint16) {
	*r = Ramp{phase: rampPriming, target: target, interval: r.interval}
}

// Cancel stops the ramp where it is.
func (r *Ramp) Cancel() {
	if r.phase != rampIdle {
		r.phase = rampDone
	}
}

// Active reports whether Advance may still issue a value.
func (r *Ramp) Active() bool {
	return r.phase == rampPriming || r.phase == rampStepping
}

// Advance is called once per measurement cycle with the current estimate.
// When ok is true, next is the new ramp RPM.
func (r *Ramp) Advance(now uint32, rpm float64) (next uint16, ok bool) {
	switch r.phase {
	case rampPriming:
		r.primed++
		if r.primed < RampSteps {
			return 0, false
		}
		r.phase = rampStepping
		return r.issue(now), true

	case rampStepping:
		if now-r.lastStep < r.interval {
			return 0, false
		}
		if rpm >= RampSettleRatio*float64(r.target) || r.step+1 >= RampSteps {
			r.phase = rampDone
			return 0, false
		}
		r.step++
		return r.issue(now), true
	}
	return 0, false
}

func (r *Ramp) issue(now uint32) uint16 {
	v := uint16(uint32(r.target) * uint32(r.step+1) / RampSteps)
	r.issued[r.nIssued] = v
	r.nIssued++
	r.lastStep = now
	return v
}

// Steps returns the values issued since Start, in order.
func (r *Ramp) Steps() []uint16 {
	return r.issued[:r.nIssued]
}

// Done reports whether the ramp ran to completion or was cancelled.
func (r *Ramp) Done() bool { return r.phase == rampDone }
