package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/motor"
	"github.com/relabs-tech/optical_tachometer/internal/sensors"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

func newTachometer(t *testing.T) (*Registry, *tacho.Engine, *motor.Null) {
	t.Helper()
	clk := sensors.NewSimClock(0)
	eng := tacho.New(sensors.NewWaveform(clk, 500, 36, 0.5), clk, tacho.Options{})
	eng.Initialize()
	drv := motor.NewNull(nil)
	return NewTachometer(eng, drv), eng, drv
}

func run(t *testing.T, r *Registry, line string) string {
	t.Helper()
	out, err := r.Execute(line)
	require.NoError(t, err, line)
	return out
}

func TestTachometer_Status(t *testing.T) {
	r, _, _ := newTachometer(t)
	assert.Equal(t, "online", run(t, r, "status"))

	offline := tacho.New(nil, sensors.NewSimClock(0), tacho.Options{})
	out, err := NewTachometer(offline, motor.NewNull(nil)).Execute("status")
	require.NoError(t, err)
	assert.Equal(t, "offline", out)
}

func TestTachometer_Configure(t *testing.T) {
	r, eng, _ := newTachometer(t)

	assert.Equal(t, "stripes=20 target_rpm=300", run(t, r, "configure 20 300"))
	assert.Equal(t, uint32(12), eng.Timing().MinInterval)

	_, err := r.Execute("configure 0 300")
	assert.ErrorIs(t, err, tacho.ErrInvalidConfig)
	_, err = r.Execute("configure 20")
	assert.ErrorIs(t, err, ErrArity)
	assert.Equal(t, uint8(20), eng.StripeCount())
}

func TestTachometer_Setters(t *testing.T) {
	r, eng, _ := newTachometer(t)

	assert.Equal(t, "target_rpm=750", run(t, r, "target_rpm 750"))
	assert.Equal(t, "stripes=12", run(t, r, "stripes 12"))
	assert.Equal(t, "threshold_factor=2.5", run(t, r, "threshold_factor 2.5"))
	assert.Equal(t, "calibration_samples=10", run(t, r, "calibration_samples 10"))
	assert.Equal(t, "movement_samples=8", run(t, r, "movement_samples 8"))

	_, err := r.Execute("target_rpm -5")
	assert.ErrorIs(t, err, tacho.ErrInvalidConfig)
	assert.Equal(t, uint16(750), eng.TargetRPM())

	cfg := run(t, r, "config")
	assert.Contains(t, cfg, "stripes=12")
	assert.Contains(t, cfg, "target_rpm=750")
	assert.Contains(t, cfg, "mode=idle")
}

func TestTachometer_Modes(t *testing.T) {
	r, eng, _ := newTachometer(t)

	assert.Equal(t, "aligning", run(t, r, "align"))
	assert.Equal(t, "reading_rpm", run(t, r, "read_rpm"))
	assert.Equal(t, tacho.ModeReadingRPM, eng.Mode())
	assert.Equal(t, "idle", run(t, r, "stop_rpm"))
	assert.Equal(t, "idle", run(t, r, "stop_align"))

	assert.Equal(t, "rpm=0.00", run(t, r, "rpm"))
	assert.Equal(t, "angle=0.00", run(t, r, "angle"))
}

func TestTachometer_Motor(t *testing.T) {
	r, _, drv := newTachometer(t)

	assert.Equal(t, "motor=on", run(t, r, "motor_on"))
	assert.True(t, drv.State().Running)
	assert.Equal(t, "direction=ccw", run(t, r, "direction 1"))
	assert.Equal(t, motor.CounterClockwise, drv.State().Direction)
	assert.Equal(t, "motor=off", run(t, r, "motor_off"))
	assert.False(t, drv.State().Running)

	_, err := r.Execute("direction sideways")
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestTachometer_HelpListsEveryCommand(t *testing.T) {
	r, _, _ := newTachometer(t)
	help := run(t, r, "help")
	for _, name := range []string{
		"status", "configure", "target_rpm", "stripes", "threshold_factor",
		"calibration_samples", "movement_samples", "align", "stop_align",
		"read_rpm", "stop_rpm", "rpm", "angle", "config", "motor_on",
		"motor_off", "direction", "help",
	} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
		assert.Contains(t, help, name)
	}
	assert.Len(t, strings.Split(help, "\n"), 18)
}
