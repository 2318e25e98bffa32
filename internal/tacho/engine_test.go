package tacho

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/sensors"
)

type rig struct {
	clock *sensors.SimClock
	disk  *sensors.Waveform
	eng   *Engine
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clk := sensors.NewSimClock(0)
	disk := sensors.NewWaveform(clk, 500, DefaultStripeCount, 0.5)
	eng := New(disk, clk, Options{RampStepInterval: 100 * time.Millisecond})
	eng.Initialize()
	return &rig{clock: clk, disk: disk, eng: eng}
}

// run ticks every step for d and returns the last report plus every
// alignment recommendation seen.
func (r *rig) run(d, step time.Duration) (last Report, recs []Recommendation) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		last = r.eng.Tick()
		if last.HasAlignment {
			recs = append(recs, last.Alignment)
		}
		r.clock.Advance(step)
	}
	return last, recs
}

func TestEngine_NotInitialized(t *testing.T) {
	clk := sensors.NewSimClock(0)
	eng := New(sensors.NewWaveform(clk, 500, 36, 0.5), clk, Options{})

	assert.False(t, eng.Connected())
	assert.ErrorIs(t, eng.BeginReading(), ErrNotInitialized)
	assert.ErrorIs(t, eng.BeginAlignment(), ErrNotInitialized)
	assert.Equal(t, ModeIdle, eng.Tick().Mode)
}

func TestEngine_InitializeDefaults(t *testing.T) {
	r := newRig(t)

	assert.True(t, r.eng.Connected())
	assert.Equal(t, ModeIdle, r.eng.Mode())
	assert.Equal(t, uint8(DefaultStripeCount), r.eng.StripeCount())
	assert.Equal(t, uint16(DefaultTargetRPM), r.eng.TargetRPM())
	assert.Equal(t, PulseTiming{RampRPM: 500, MinInterval: 4}, r.eng.Timing())
	assert.Equal(t, StrategyLevel, r.eng.Strategy())
}

func TestEngine_NoSensorIsOffline(t *testing.T) {
	eng := New(nil, sensors.NewSimClock(0), Options{})
	eng.Initialize()
	assert.False(t, eng.Connected())
}

func TestEngine_InvalidInitialSettingsFallBack(t *testing.T) {
	bad := DefaultSettings()
	bad.StripeCount = 0
	clk := sensors.NewSimClock(0)
	eng := New(sensors.NewWaveform(clk, 0, 1, 0.5), clk, Options{Settings: &bad})
	eng.Initialize()
	assert.Equal(t, DefaultSettings(), eng.Settings())
}

func TestEngine_ModesExcludeEachOther(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.eng.BeginAlignment())
	assert.Equal(t, ModeAligning, r.eng.Mode())

	require.NoError(t, r.eng.BeginReading())
	assert.Equal(t, ModeReadingRPM, r.eng.Mode())

	r.eng.StopAlignment()
	assert.Equal(t, ModeReadingRPM, r.eng.Mode(), "stop_align does not end reading")

	require.NoError(t, r.eng.BeginAlignment())
	assert.Equal(t, ModeAligning, r.eng.Mode())

	r.eng.StopAlignment()
	assert.Equal(t, ModeIdle, r.eng.Mode())
}

func TestEngine_ConfigureRejectsAsAUnit(t *testing.T) {
	r := newRig(t)

	assert.ErrorIs(t, r.eng.Configure(0, 100), ErrInvalidConfig)
	assert.ErrorIs(t, r.eng.Configure(20, -1), ErrInvalidConfig)
	assert.Equal(t, uint8(36), r.eng.StripeCount())
	assert.Equal(t, uint16(500), r.eng.TargetRPM())

	require.NoError(t, r.eng.Configure(20, 300))
	assert.Equal(t, uint8(20), r.eng.StripeCount())
	assert.Equal(t, uint16(300), r.eng.TargetRPM())
	assert.Equal(t, uint32(12), r.eng.Timing().MinInterval)
}

func TestEngine_TargetChangeInvalidatesCalibration(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginReading())

	assert.True(t, r.eng.Tick().Calibrated, "first tick calibrates")
	_, ok := r.eng.Calibration()
	assert.True(t, ok)
	assert.False(t, r.eng.Tick().Calibrated)

	require.NoError(t, r.eng.SetThresholdFactor(3))
	require.NoError(t, r.eng.SetStripeCount(40))
	require.NoError(t, r.eng.SetCalibrationSamples(50))
	_, ok = r.eng.Calibration()
	assert.True(t, ok, "only a target change invalidates")

	require.NoError(t, r.eng.SetTargetRPM(600))
	_, ok = r.eng.Calibration()
	assert.False(t, ok)
	assert.True(t, r.eng.Tick().Calibrated)
}

func TestEngine_TargetChangeCancelsRamp(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginReading())
	r.run(50*time.Millisecond, 100*time.Microsecond)
	require.True(t, r.eng.Tick().Ramping)

	require.NoError(t, r.eng.SetTargetRPM(400))
	assert.False(t, r.eng.Tick().Ramping)
	assert.Equal(t, uint16(400), r.eng.Timing().RampRPM)
}

func TestEngine_ReadingOnSimulatedDisk(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginReading())

	last, _ := r.run(2*time.Second, 100*time.Microsecond)

	assert.Equal(t, ModeReadingRPM, last.Mode)
	assert.Greater(t, r.eng.RPM(), 0.0)
	assert.GreaterOrEqual(t, r.eng.Angle(), 0.0)
	assert.Less(t, r.eng.Angle(), 360.0)
	assert.Greater(t, r.eng.Rotations(), uint64(0))

	steps := r.eng.Ramp()
	require.Len(t, steps, RampSteps)
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1])
	}
	assert.False(t, last.Ramping)
	assert.Equal(t, uint16(500), last.RampRPM)
	assert.Equal(t, uint32(4), r.eng.Timing().MinInterval)
}

func TestEngine_StoppedDiskReadsZero(t *testing.T) {
	r := newRig(t)
	r.disk.SetRPM(0)
	require.NoError(t, r.eng.BeginReading())

	r.run(500*time.Millisecond, 100*time.Microsecond)
	assert.Zero(t, r.eng.RPM())
	assert.False(t, r.eng.Motion().MotionDetected)
}

func TestEngine_InitializeResetsAngle(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginReading())
	r.run(time.Second, 100*time.Microsecond)
	require.NotZero(t, r.eng.Angle())

	r.eng.Initialize()
	assert.Zero(t, r.eng.Angle())
	assert.Zero(t, r.eng.RPM())
	assert.Equal(t, ModeIdle, r.eng.Mode())
}

func TestEngine_AlignmentOnBalancedDisk(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginAlignment())

	_, recs := r.run(time.Second, 50*time.Microsecond)
	require.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.Equal(t, AdviceAcceptable, rec.Advice)
	}
}

func TestEngine_AlignmentStuckLine(t *testing.T) {
	r := newRig(t)
	r.disk.SetRPM(0)
	require.NoError(t, r.eng.BeginAlignment())

	_, recs := r.run(2500*time.Millisecond, 100*time.Microsecond)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, AdviceNoSignal, rec.Advice)
	}
}

func TestEngine_MovementResize(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.SetMovementSamples(4))
	assert.Equal(t, uint16(4), r.eng.Settings().MovementSamples)
	assert.ErrorIs(t, r.eng.SetMovementSamples(0), ErrInvalidConfig)
	assert.Equal(t, uint16(4), r.eng.Settings().MovementSamples)
}

func TestEngine_AlignmentRecoversAfterMotorStop(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.BeginAlignment())

	_, recs := r.run(time.Second, 50*time.Microsecond)
	require.NotEmpty(t, recs)

	r.disk.SetRPM(0)
	_, recs = r.run(2500*time.Millisecond, 100*time.Microsecond)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, AdviceNoSignal, rec.Advice)
	}

	r.disk.SetRPM(500)
	_, recs = r.run(time.Second, 50*time.Microsecond)
	require.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.Equal(t, AdviceAcceptable, rec.Advice)
	}
}
