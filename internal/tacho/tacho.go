// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tacho turns a polled binary optical sensor into an RPM estimate,
// an accumulated angular position, a motion flag and sensor alignment advice.
//
// The engine is single-owner: one goroutine creates it and calls every
// method. Nothing in this package is safe for concurrent use.
package tacho

import (
	"errors"
	"time"
)

// Sensor reads the optical sensor line. true means the light level is high.
type Sensor interface {
	ReadLevel() bool
}

// Clock supplies the two wrapping counters the engine measures with.
// Sleep is used only by the blocking calibration sampler.
type Clock interface {
	NowMillis() uint32
	NowMicros() uint32
	Sleep(d time.Duration)
}

const (
	DefaultStripeCount        = 36
	DefaultTargetRPM          = 500
	DefaultThresholdFactor    = 1.0
	DefaultCalibrationSamples = 100
	DefaultMovementSamples    = 100

	// MaxSampleCount bounds both sample windows so buffers stay small.
	MaxSampleCount = 1000

	// MotionThreshold is the activity level above which motion is reported.
	MotionThreshold = 0.5

	// RPMHistoryLength is the number of raw RPM values averaged.
	RPMHistoryLength = 10

	// RampSteps is the number of priming cycles and also the step budget.
	RampSteps = 10
	// RampSettleRatio ends the ramp once the estimate reaches this share of the target.
	RampSettleRatio = 0.95

	// AlignmentSamples is the number of transitions averaged per recommendation.
	AlignmentSamples = 100
	// AlignmentTimeoutMicros is how long without a transition means the signal is stuck.
	AlignmentTimeoutMicros = 1_000_000
)

var (
	// ErrInvalidConfig is returned by setters that reject a value.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotInitialized is returned when the engine is used before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")
)

// Mode is the engine's operating mode. Aligning and ReadingRPM exclude each other.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAligning
	ModeReadingRPM
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAligning:
		return "aligning"
	case ModeReadingRPM:
		return "reading_rpm"
	default:
		return "unknown"
	}
}
