package tacho

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/sensors"
)

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":            StrategyLevel,
		"level":       StrategyLevel,
		" LEVEL ":     StrategyLevel,
		"pulse_width": StrategyPulseWidth,
		"pulse-width": StrategyPulseWidth,
		"pulse":       StrategyPulseWidth,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrategy("median")
	assert.Error(t, err)
}

func TestCalibrator_LevelConstantHigh(t *testing.T) {
	clk := &fakeClock{}
	c := NewCalibrator(StrategyLevel, time.Millisecond, 4)

	res := c.Run(&scriptSensor{levels: bits(1)}, clk, 2.0)
	assert.Equal(t, Calibration{Samples: 4, Mean: 1, StdDev: 0, Threshold: 1}, res)
	assert.Equal(t, uint64(4000), clk.us, "run lasts n*delay")
}

func TestCalibrator_LevelAlternating(t *testing.T) {
	c := NewCalibrator(StrategyLevel, 0, 4)

	res := c.Run(&scriptSensor{levels: bits(1, 0)}, &fakeClock{}, 1.0)
	assert.Equal(t, 0.5, res.Mean)
	assert.Equal(t, 0.5, res.StdDev)
	assert.Equal(t, uint8(1), res.Threshold)

	res = c.Run(&scriptSensor{levels: bits(1, 0)}, &fakeClock{}, 2.0)
	assert.Equal(t, uint8(2), res.Threshold)
}

func TestCalibrator_DegenerateCounts(t *testing.T) {
	for _, n := range []int{0, 1} {
		c := NewCalibrator(StrategyLevel, 0, n)
		res := c.Run(&scriptSensor{levels: bits(1)}, &fakeClock{}, 5)
		assert.Equal(t, n, res.Samples)
		assert.Zero(t, res.StdDev)
		assert.True(t, c.Calibrated())
	}
}

func TestCalibrator_CacheAndInvalidate(t *testing.T) {
	c := NewCalibrator(StrategyLevel, 0, 8)
	assert.False(t, c.Calibrated())

	sensor := &scriptSensor{levels: bits(1)}
	c.Run(sensor, &fakeClock{}, 1)
	assert.True(t, c.Calibrated())
	assert.Equal(t, 8, sensor.reads)

	c.Resize(16)
	assert.True(t, c.Calibrated(), "resize keeps the cached result")
	assert.Equal(t, 16, c.SampleCount())

	c.Invalidate()
	assert.False(t, c.Calibrated())
	assert.Equal(t, uint8(1), c.Threshold(), "the last threshold stays readable")
}

func TestCalibrator_PulseWidthOnSimulatedDisk(t *testing.T) {
	clk := sensors.NewSimClock(0)
	// 500 rpm, 36 stripes: one stripe every 3.33 ms.
	disk := sensors.NewWaveform(clk, 500, 36, 0.5)

	c := NewCalibrator(StrategyPulseWidth, time.Millisecond, 100)
	res := c.Run(disk, clk, 1.0)

	assert.Equal(t, 100, res.Samples)
	assert.InDelta(t, 3.3, res.Mean, 0.5)
	assert.Less(t, res.StdDev, 1.5)
	assert.GreaterOrEqual(t, res.Threshold, uint8(3))
	assert.LessOrEqual(t, res.Threshold, uint8(5))
	assert.Equal(t, uint32(100), clk.NowMillis())
}

func TestCalibrator_PulseWidthWithoutPulses(t *testing.T) {
	c := NewCalibrator(StrategyPulseWidth, time.Millisecond, 10)
	res := c.Run(&scriptSensor{levels: bits(0)}, &fakeClock{}, 1.0)
	assert.Zero(t, res.Mean)
	assert.Zero(t, res.Threshold)
}
