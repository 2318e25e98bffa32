package tacho

import (
	"log/slog"
	"math"
)

type pulseState int

const (
	waitingForPulse pulseState = iota
	pulseActive
)

// RPMHistory is a fixed ring of the last RPMHistoryLength raw values.
// It starts zero-filled and its mean always divides by the full length.
type RPMHistory struct {
	vals [RPMHistoryLength]float64
	idx  int
}

// Push stores v over the oldest value and returns the new mean.
func (h *RPMHistory) Push(v float64) float64 {
	h.vals[h.idx] = v
	h.idx = (h.idx + 1) % len(h.vals)
	return h.Mean()
}

func (h *RPMHistory) Mean() float64 {
	return Mean(h.vals[:])
}

func (h *RPMHistory) Reset() {
	*h = RPMHistory{}
}

// Estimate is what one Update call reports.
type Estimate struct {
	RPM    float64      `json:"rpm"`
	RawRPM float64      `json:"raw_rpm"`
	Angle  float64      `json:"angle"`
	Motion MotionReport `json:"motion"`
	// WindowClosed is true when this call ended a window and recomputed RPM.
	WindowClosed bool `json:"window_closed"`
	// Confirmed is true when motion was detected in the cycle that produced RPM.
	Confirmed bool   `json:"confirmed"`
	Pulses    uint32 `json:"pulses"`
}

// Estimator counts pulses per window and integrates angular position.
// The pulse state persists across calls.
type Estimator struct {
	state       pulseState
	pulses      uint32
	windowStart uint32

	history   RPMHistory
	rpm       float64
	rawRPM    float64
	angle     float64
	rotations uint64
	confirmed bool

	movement *MovementDetector
	log      *slog.Logger
}

// NewEstimator observes every level it is fed through movement.
func NewEstimator(movement *MovementDetector, log *slog.Logger) *Estimator {
	if log == nil {
		log = slog.Default()
	}
	return &Estimator{movement: movement, log: log}
}

// StartWindow opens a new counting window at now. Angle, history and the
// rotation counter are kept.
func (e *Estimator) StartWindow(now uint32) {
	e.state = waitingForPulse
	e.pulses = 0
	e.windowStart = now
}

// Reset clears everything, angle included.
func (e *Estimator) Reset(now uint32) {
	e.StartWindow(now)
	e.history.Reset()
	e.rpm = 0
	e.rawRPM = 0
	e.angle = 0
	e.rotations = 0
	e.confirmed = false
}

// SetMovement swaps the movement detector, used when its window is resized.
func (e *Estimator) SetMovement(m *MovementDetector) { e.movement = m }

// Update advances the pulse state machine with level and, once at least
// window ms have passed since the window opened, recomputes RPM and angle.
// Between window boundaries the cached RPM is returned.
//
// Raw RPM is pulses*60/stripes for the window and is not scaled by the
// window length, so it reads low for windows shorter than a minute.
func (e *Estimator) Update(level bool, now, window uint32, stripes, threshold uint8) Estimate {
	switch e.state {
	case waitingForPulse:
		if level {
			e.pulses++
			e.state = pulseActive
		}
	case pulseActive:
		if !level {
			e.state = waitingForPulse
		}
	}

	motion := e.movement.Observe(level)

	elapsed := now - e.windowStart
	if elapsed < window {
		return e.estimate(motion, false)
	}

	count := e.pulses
	var raw float64
	if stripes > 0 {
		raw = float64(count) * 60 / float64(stripes)
	}
	if count >= uint32(threshold) {
		e.rotations++
	}
	e.pulses = 0
	e.windowStart = now

	filtered := e.history.Push(raw)
	angularVelocity := filtered * 2 * math.Pi / 60
	e.angle = math.Mod(e.angle+angularVelocity*float64(elapsed)/1000, 360)

	e.rawRPM = raw
	e.rpm = filtered
	e.confirmed = motion.MotionDetected
	if e.confirmed {
		e.log.Info("rpm", "rpm", filtered, "angle", e.angle)
	} else {
		e.log.Debug("rpm without motion", "rpm", filtered, "activity", motion.FilteredActivity)
	}

	est := e.estimate(motion, true)
	est.Pulses = count
	return est
}

func (e *Estimator) estimate(motion MotionReport, closed bool) Estimate {
	return Estimate{
		RPM:          e.rpm,
		RawRPM:       e.rawRPM,
		Angle:        e.angle,
		Motion:       motion,
		WindowClosed: closed,
		Confirmed:    e.confirmed,
		Pulses:       e.pulses,
	}
}

func (e *Estimator) RPM() float64      { return e.rpm }
func (e *Estimator) Angle() float64    { return e.angle }
func (e *Estimator) Rotations() uint64 { return e.rotations }
func (e *Estimator) Confirmed() bool   { return e.confirmed }
