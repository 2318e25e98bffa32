package tacho

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects what the calibrator samples.
type Strategy int

const (
	// StrategyLevel samples the raw binary level (0 or 1).
	StrategyLevel Strategy = iota
	// StrategyPulseWidth samples a moving average of rising-edge intervals in ms.
	StrategyPulseWidth
)

func (s Strategy) String() string {
	if s == StrategyPulseWidth {
		return "pulse_width"
	}
	return "level"
}

// ParseStrategy accepts "level" or "pulse_width".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "level", "":
		return StrategyLevel, nil
	case "pulse_width", "pulse-width", "pulse":
		return StrategyPulseWidth, nil
	}
	return 0, fmt.Errorf("unknown calibration strategy %q (must be level or pulse_width)", name)
}

// Calibration is the outcome of one sampling run.
type Calibration struct {
	Samples   int
	Mean      float64
	StdDev    float64
	Threshold uint8
}

// FromSamples derives the pulse-count threshold from samples.
func FromSamples(samples []float64, factor float64) Calibration {
	mean := Mean(samples)
	sd := StdDev(samples, mean)
	return Calibration{
		Samples:   len(samples),
		Mean:      mean,
		StdDev:    sd,
		Threshold: Threshold(mean, sd, factor),
	}
}

// Calibrator owns the sample buffers and caches the last result until
// Invalidate is called.
type Calibrator struct {
	strategy Strategy
	delay    time.Duration

	samples []float64
	widths  []float64

	result     Calibration
	calibrated bool
}

// NewCalibrator allocates buffers for n samples.
func NewCalibrator(strategy Strategy, delay time.Duration, n int) *Calibrator {
	c := &Calibrator{strategy: strategy, delay: delay}
	c.Resize(n)
	return c
}

// Resize reallocates the buffers for n samples. A cached result stays valid
// until Invalidate.
func (c *Calibrator) Resize(n int) {
	c.samples = make([]float64, n)
	c.widths = make([]float64, n)
}

// Invalidate clears the cached result.
func (c *Calibrator) Invalidate() {
	c.calibrated = false
}

func (c *Calibrator) Calibrated() bool     { return c.calibrated }
func (c *Calibrator) Result() Calibration  { return c.result }
func (c *Calibrator) Threshold() uint8     { return c.result.Threshold }
func (c *Calibrator) Strategy() Strategy   { return c.strategy }
func (c *Calibrator) SampleCount() int     { return len(c.samples) }
func (c *Calibrator) Delay() time.Duration { return c.delay }

// Run blocks while it collects every sample, then computes and caches the
// threshold. With a non-zero delay the run lasts at least n*delay.
func (c *Calibrator) Run(sensor Sensor, clock Clock, factor float64) Calibration {
	switch c.strategy {
	case StrategyPulseWidth:
		c.collectPulseWidths(sensor, clock)
	default:
		c.collectLevels(sensor, clock)
	}
	c.result = FromSamples(c.samples, factor)
	c.calibrated = true
	return c.result
}

func (c *Calibrator) collectLevels(sensor Sensor, clock Clock) {
	for i := range c.samples {
		if sensor.ReadLevel() {
			c.samples[i] = 1
		} else {
			c.samples[i] = 0
		}
		c.pause(clock)
	}
}

// collectPulseWidths records, for every poll, the mean of the non-zero
// rising-edge intervals seen in the last n polls.
func (c *Calibrator) collectPulseWidths(sensor Sensor, clock Clock) {
	n := len(c.widths)
	for i := range c.widths {
		c.widths[i] = 0
	}

	var (
		s       Sampler
		sum     float64
		nonZero int
	)
	s.Reset(clock.NowMillis())

	for i := range c.samples {
		var v float64
		if e := s.Poll(sensor.ReadLevel(), clock.NowMillis()); e.Kind == RisingEdge {
			v = float64(e.Period)
		}

		slot := i % n
		if old := c.widths[slot]; old > 0 {
			sum -= old
			nonZero--
		}
		c.widths[slot] = v
		if v > 0 {
			sum += v
			nonZero++
		}

		if nonZero > 0 {
			c.samples[i] = sum / float64(nonZero)
		} else {
			c.samples[i] = 0
		}
		c.pause(clock)
	}
}

func (c *Calibrator) pause(clock Clock) {
	if c.delay > 0 {
		clock.Sleep(c.delay)
	}
}
