// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tacho

import (
	"fmt"
	"log/slog"
	"time"
)

// Options tune the acquisition side of the engine. Zero values are usable.
type Options struct {
	Logger *slog.Logger
	// Settings applied by Initialize. Nil means DefaultSettings.
	Settings *Settings
	Strategy Strategy
	// SampleDelay is the pause between calibration samples.
	SampleDelay time.Duration
	// RampStepInterval is the wait between ramp steps.
	RampStepInterval time.Duration
}

// Report is the outcome of one Tick.
type Report struct {
	Mode     Mode
	Estimate Estimate
	Ramping  bool
	RampRPM  uint16
	// Alignment is set when HasAlignment is true.
	Alignment    Recommendation
	HasAlignment bool
	// Calibrated is true when this tick ran the blocking calibration.
	Calibrated bool
}

// Engine ties the configuration store, calibrator, estimator, ramp and
// aligner to one sensor and one clock.
type Engine struct {
	sensor Sensor
	clock  Clock
	log    *slog.Logger
	opts   Options

	store    *Store
	calib    *Calibrator
	movement *MovementDetector
	est      *Estimator
	ramp     *Ramp
	align    *Aligner
	pulses   Sampler

	mode        Mode
	initialized bool
}

// New builds an engine. Initialize must be called before Tick.
func New(sensor Sensor, clock Clock, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		sensor: sensor,
		clock:  clock,
		log:    opts.Logger,
		opts:   opts,
	}
	e.build(e.initialSettings())
	return e
}

func (e *Engine) initialSettings() Settings {
	if e.opts.Settings != nil {
		if err := e.opts.Settings.Validate(); err != nil {
			e.log.Warn("initial settings rejected, using defaults", "err", err)
		} else {
			return *e.opts.Settings
		}
	}
	return DefaultSettings()
}

func (e *Engine) build(s Settings) {
	e.store = NewStore(s, e.log)
	e.calib = NewCalibrator(e.opts.Strategy, e.opts.SampleDelay, int(s.CalibrationSamples))
	e.movement = NewMovementDetector(int(s.MovementSamples))
	e.est = NewEstimator(e.movement, e.log)
	e.ramp = NewRamp(e.opts.RampStepInterval)
	e.align = NewAligner(e.log)
}

// Initialize applies the initial settings and clears all measurement state,
// angle included. The engine is left idle.
func (e *Engine) Initialize() {
	s := e.initialSettings()
	e.build(s)
	now := e.clock.NowMillis()
	e.est.Reset(now)
	e.pulses.Reset(now)
	e.mode = ModeIdle
	e.initialized = true
	e.log.Info("engine initialized",
		"stripes", s.StripeCount, "target_rpm", s.TargetRPM, "factor", s.ThresholdFactor,
		"calibration_samples", s.CalibrationSamples, "movement_samples", s.MovementSamples,
		"strategy", e.calib.Strategy().String(), "min_interval_ms", e.store.MinInterval())
}

// Connected reports whether the engine has a sensor and has been initialized.
func (e *Engine) Connected() bool {
	return e.initialized && e.sensor != nil
}

// Configure sets stripe count and target RPM together. Neither changes
// unless both are valid.
func (e *Engine) Configure(stripes, rpm int) error {
	if stripes <= 0 || stripes > 255 {
		return e.store.reject(fmt.Errorf("%w: stripe count %d must be 1..255", ErrInvalidConfig, stripes))
	}
	if rpm < 0 || rpm > 65535 {
		return e.store.reject(fmt.Errorf("%w: target rpm %d must be 0..65535", ErrInvalidConfig, rpm))
	}
	if err := e.store.SetStripeCount(stripes); err != nil {
		return err
	}
	return e.SetTargetRPM(rpm)
}

// SetTargetRPM changes the target, drops the cached calibration and cancels
// a running ramp.
func (e *Engine) SetTargetRPM(v int) error {
	if err := e.store.SetTargetRPM(v); err != nil {
		return err
	}
	e.calib.Invalidate()
	if e.ramp.Active() {
		e.ramp.Cancel()
		e.log.Info("ramp cancelled by target change", "target_rpm", v)
	}
	return nil
}

func (e *Engine) SetStripeCount(v int) error {
	return e.store.SetStripeCount(v)
}

func (e *Engine) SetThresholdFactor(f float64) error {
	return e.store.SetThresholdFactor(f)
}

// SetCalibrationSamples resizes the calibration buffers.
func (e *Engine) SetCalibrationSamples(v int) error {
	if err := e.store.SetCalibrationSamples(v); err != nil {
		return err
	}
	e.calib.Resize(v)
	return nil
}

// SetMovementSamples replaces the movement window, which starts empty.
func (e *Engine) SetMovementSamples(v int) error {
	if err := e.store.SetMovementSamples(v); err != nil {
		return err
	}
	e.movement = NewMovementDetector(v)
	e.est.SetMovement(e.movement)
	return nil
}

// BeginAlignment switches to alignment mode, leaving RPM reading if active.
func (e *Engine) BeginAlignment() error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.mode == ModeReadingRPM {
		e.StopReading()
	}
	e.align.Reset()
	e.mode = ModeAligning
	e.log.Info("alignment started")
	return nil
}

func (e *Engine) StopAlignment() {
	if e.mode == ModeAligning {
		e.mode = ModeIdle
		e.log.Info("alignment stopped")
	}
}

// BeginReading switches to RPM reading and arms the ramp towards the target.
func (e *Engine) BeginReading() error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.mode == ModeAligning {
		e.StopAlignment()
	}
	now := e.clock.NowMillis()
	e.est.StartWindow(now)
	e.pulses.Reset(now)
	e.ramp.Start(e.store.TargetRPM())
	e.mode = ModeReadingRPM
	e.log.Info("rpm reading started", "target_rpm", e.store.TargetRPM())
	return nil
}

func (e *Engine) StopReading() {
	if e.mode == ModeReadingRPM {
		e.ramp.Cancel()
		e.mode = ModeIdle
		e.log.Info("rpm reading stopped", "rpm", e.est.RPM(), "rotations", e.est.Rotations())
	}
}

// Calibrate runs the blocking calibration now and caches the result.
func (e *Engine) Calibrate() Calibration {
	start := e.clock.NowMillis()
	c := e.calib.Run(e.sensor, e.clock, e.store.ThresholdFactor())
	e.log.Info("calibrated",
		"samples", c.Samples, "mean", c.Mean, "stddev", c.StdDev, "threshold", c.Threshold,
		"strategy", e.calib.Strategy().String(), "took_ms", e.clock.NowMillis()-start)
	return c
}

// ensureCalibrated calibrates if needed and reports whether it did.
func (e *Engine) ensureCalibrated() bool {
	if e.calib.Calibrated() {
		return false
	}
	e.Calibrate()
	return true
}

// Tick runs one cycle of the current mode.
func (e *Engine) Tick() Report {
	if !e.initialized || e.mode == ModeIdle {
		return Report{Mode: ModeIdle, Estimate: e.cached()}
	}

	rep := Report{Mode: e.mode}
	rep.Calibrated = e.ensureCalibrated()

	switch e.mode {
	case ModeAligning:
		level := e.sensor.ReadLevel()
		rep.Alignment, rep.HasAlignment = e.align.Update(level, e.clock.NowMicros())

	case ModeReadingRPM:
		if rep.Calibrated {
			// The window must not span the calibration run.
			now := e.clock.NowMillis()
			e.est.StartWindow(now)
			e.pulses.Reset(now)
		}
		level := e.sensor.ReadLevel()
		now := e.clock.NowMillis()
		e.pulses.Poll(level, now)
		rep.Estimate = e.est.Update(level, now, e.store.MinInterval(), e.store.StripeCount(), e.calib.Threshold())

		if e.ramp.Active() {
			if v, ok := e.ramp.Advance(now, rep.Estimate.RPM); ok {
				e.store.SetRampRPM(v)
				e.log.Debug("ramp step", "ramp_rpm", v, "min_interval_ms", e.store.MinInterval())
			}
		}
		rep.Ramping = e.ramp.Active()
		rep.RampRPM = e.store.RampRPM()
	}
	return rep
}

func (e *Engine) cached() Estimate {
	return Estimate{
		RPM:       e.est.RPM(),
		Angle:     e.est.Angle(),
		Motion:    e.movement.Report(),
		Confirmed: e.est.Confirmed(),
	}
}

func (e *Engine) Mode() Mode           { return e.mode }
func (e *Engine) RPM() float64         { return e.est.RPM() }
func (e *Engine) Angle() float64       { return e.est.Angle() }
func (e *Engine) Rotations() uint64    { return e.est.Rotations() }
func (e *Engine) StripeCount() uint8   { return e.store.StripeCount() }
func (e *Engine) TargetRPM() uint16    { return e.store.TargetRPM() }
func (e *Engine) Settings() Settings   { return e.store.Settings() }
func (e *Engine) Timing() PulseTiming  { return e.store.Timing() }
func (e *Engine) Motion() MotionReport { return e.movement.Report() }
func (e *Engine) Ramp() []uint16       { return e.ramp.Steps() }
func (e *Engine) Strategy() Strategy   { return e.calib.Strategy() }

// Calibration returns the cached calibration and whether it is current.
func (e *Engine) Calibration() (Calibration, bool) {
	return e.calib.Result(), e.calib.Calibrated()
}

// LastEdges returns the last rising and falling edge timestamps in ms.
func (e *Engine) LastEdges() (rise, fall uint32) {
	return e.pulses.LastRise(), e.pulses.LastFall()
}
