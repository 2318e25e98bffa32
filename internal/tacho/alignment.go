package tacho

import (
	"fmt"
	"log/slog"
	"math"
)

// Advice is the direction an operator should move the sensor.
type Advice int

const (
	AdviceNone Advice = iota
	// AdviceNoSignal means no transition was seen for a whole timeout window.
	AdviceNoSignal
	AdviceMoveCloser
	AdviceMoveAway
	AdviceAcceptable
)

func (a Advice) String() string {
	switch a {
	case AdviceNoSignal:
		return "no_signal"
	case AdviceMoveCloser:
		return "move_closer"
	case AdviceMoveAway:
		return "move_away"
	case AdviceAcceptable:
		return "acceptable"
	default:
		return "none"
	}
}

// Severity grades how far off the duty cycle is.
type Severity int

const (
	SeverityNone Severity = iota
	SeveritySlight
	SeverityStrong
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeveritySlight:
		return "slight"
	case SeverityStrong:
		return "strong"
	case SeveritySevere:
		return "severe"
	default:
		return "none"
	}
}

// Asymmetry bands in percent of (high-low)/(high+low).
const (
	AcceptableAsymmetry = 10.0
	StrongAsymmetry     = 30.0
	SevereAsymmetry     = 60.0
)

// Recommendation is emitted once per full sample set or timeout.
type Recommendation struct {
	Advice         Advice
	Severity       Severity
	MeanHighMicros float64
	MeanLowMicros  float64
	// AsymmetryPct is positive when the line stays high longer than low.
	AsymmetryPct float64
	Transitions  int
}

// Message is the operator-facing text.
func (r Recommendation) Message() string {
	switch r.Advice {
	case AdviceNoSignal:
		return "no transitions for 1s, sensor severely far: move it closer"
	case AdviceAcceptable:
		return fmt.Sprintf("alignment acceptable (asymmetry %.1f%%)", r.AsymmetryPct)
	case AdviceMoveCloser:
		return fmt.Sprintf("%s: low time dominates (%.1f%%), move sensor closer", r.Severity, r.AsymmetryPct)
	case AdviceMoveAway:
		return fmt.Sprintf("%s: high time dominates (%.1f%%), move sensor away", r.Severity, r.AsymmetryPct)
	}
	return ""
}

// Classify grades mean high and low durations.
func Classify(meanHigh, meanLow float64) Recommendation {
	r := Recommendation{MeanHighMicros: meanHigh, MeanLowMicros: meanLow}
	total := meanHigh + meanLow
	if total <= 0 {
		r.Advice = AdviceNoSignal
		r.Severity = SeveritySevere
		return r
	}
	r.AsymmetryPct = (meanHigh - meanLow) / total * 100

	abs := math.Abs(r.AsymmetryPct)
	switch {
	case abs < AcceptableAsymmetry:
		r.Advice = AdviceAcceptable
		return r
	case abs < StrongAsymmetry:
		r.Severity = SeveritySlight
	case abs < SevereAsymmetry:
		r.Severity = SeverityStrong
	default:
		r.Severity = SeveritySevere
	}
	if r.AsymmetryPct > 0 {
		r.Advice = AdviceMoveAway
	} else {
		r.Advice = AdviceMoveCloser
	}
	return r
}

// Aligner accumulates high and low durations in microseconds.
type Aligner struct {
	sampler        Sampler
	seeded         bool
	edges          int
	lastTransition uint32

	highSum, lowSum uint64
	highN, lowN     int

	log *slog.Logger
}

func NewAligner(log *slog.Logger) *Aligner {
	if log == nil {
		log = slog.Default()
	}
	return &Aligner{log: log}
}

// Reset drops all accumulated durations. The next Update seeds the line level.
func (a *Aligner) Reset() {
	a.seeded = false
	a.edges = 0
	a.clear()
}

func (a *Aligner) clear() {
	a.highSum, a.lowSum = 0, 0
	a.highN, a.lowN = 0, 0
}

// Update polls level at now (microseconds). ok is true when a
// recommendation was produced by this call.
func (a *Aligner) Update(level bool, now uint32) (rec Recommendation, ok bool) {
	if !a.seeded {
		a.sampler.ResetTo(level, now)
		a.lastTransition = now
		a.seeded = true
		return Recommendation{}, false
	}

	e := a.sampler.Poll(level, now)
	if e.Kind != NoEdge {
		a.lastTransition = now
		a.edges++
		// The first interval started before seeding and is partial.
		if a.edges > 1 {
			if e.Kind == FallingEdge {
				a.highSum += uint64(e.Held)
				a.highN++
			} else {
				a.lowSum += uint64(e.Held)
				a.lowN++
			}
		}
	}

	if now-a.lastTransition >= AlignmentTimeoutMicros {
		rec = Recommendation{Advice: AdviceNoSignal, Severity: SeveritySevere}
		a.clear()
		// The interval that spans the stall is partial, like the first one.
		a.edges = 0
		a.lastTransition = now
		a.log.Info("alignment", "advice", rec.Advice.String(), "msg", rec.Message())
		return rec, true
	}

	if n := a.highN + a.lowN; n >= AlignmentSamples {
		var meanHigh, meanLow float64
		if a.highN > 0 {
			meanHigh = float64(a.highSum) / float64(a.highN)
		}
		if a.lowN > 0 {
			meanLow = float64(a.lowSum) / float64(a.lowN)
		}
		rec = Classify(meanHigh, meanLow)
		rec.Transitions = n
		a.clear()
		a.log.Info("alignment", "advice", rec.Advice.String(), "severity", rec.Severity.String(),
			"high_us", meanHigh, "low_us", meanLow, "msg", rec.Message())
		return rec, true
	}
	return Recommendation{}, false
}
