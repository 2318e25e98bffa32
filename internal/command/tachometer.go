package command

import (
	"fmt"

	"github.com/relabs-tech/optical_tachometer/internal/motor"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

// Engine is the part of *tacho.Engine the command table drives.
type Engine interface {
	Configure(stripes, rpm int) error
	SetTargetRPM(v int) error
	SetStripeCount(v int) error
	SetThresholdFactor(f float64) error
	SetCalibrationSamples(v int) error
	SetMovementSamples(v int) error

	BeginAlignment() error
	StopAlignment()
	BeginReading() error
	StopReading()

	RPM() float64
	Angle() float64
	StripeCount() uint8
	TargetRPM() uint16
	Connected() bool
	Mode() tacho.Mode
	Settings() tacho.Settings
	Timing() tacho.PulseTiming
}

// NewTachometer returns the full operator command table.
func NewTachometer(eng Engine, drv motor.Driver) *Registry {
	r := NewRegistry()

	r.Register(Action("status", "report whether the sensor engine is online", func() (string, error) {
		if eng.Connected() {
			return "online", nil
		}
		return "offline", nil
	}))

	r.Register(IntPair("configure", "<stripes> <rpm>", "set stripe count and target rpm", func(stripes, rpm int) (string, error) {
		if err := eng.Configure(stripes, rpm); err != nil {
			return "", err
		}
		return fmt.Sprintf("stripes=%d target_rpm=%d", eng.StripeCount(), eng.TargetRPM()), nil
	}))
	r.Register(Int("target_rpm", "<rpm>", "set target rpm (recalibrates)", func(v int) (string, error) {
		if err := eng.SetTargetRPM(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("target_rpm=%d", eng.TargetRPM()), nil
	}))
	r.Register(Int("stripes", "<n>", "set disk stripe count", func(v int) (string, error) {
		if err := eng.SetStripeCount(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("stripes=%d", eng.StripeCount()), nil
	}))
	r.Register(Float("threshold_factor", "<f>", "set threshold stddev factor", func(f float64) (string, error) {
		if err := eng.SetThresholdFactor(f); err != nil {
			return "", err
		}
		return fmt.Sprintf("threshold_factor=%g", eng.Settings().ThresholdFactor), nil
	}))
	r.Register(Int("calibration_samples", "<n>", "set calibration sample count", func(v int) (string, error) {
		if err := eng.SetCalibrationSamples(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("calibration_samples=%d", eng.Settings().CalibrationSamples), nil
	}))
	r.Register(Int("movement_samples", "<n>", "set movement window length", func(v int) (string, error) {
		if err := eng.SetMovementSamples(v); err != nil {
			return "", err
		}
		return fmt.Sprintf("movement_samples=%d", eng.Settings().MovementSamples), nil
	}))

	r.Register(Action("align", "start sensor distance alignment", func() (string, error) {
		if err := eng.BeginAlignment(); err != nil {
			return "", err
		}
		return "aligning", nil
	}))
	r.Register(Action("stop_align", "stop sensor distance alignment", func() (string, error) {
		eng.StopAlignment()
		return eng.Mode().String(), nil
	}))
	r.Register(Action("read_rpm", "start rpm reading with ramp-up", func() (string, error) {
		if err := eng.BeginReading(); err != nil {
			return "", err
		}
		return "reading_rpm", nil
	}))
	r.Register(Action("stop_rpm", "stop rpm reading", func() (string, error) {
		eng.StopReading()
		return eng.Mode().String(), nil
	}))

	r.Register(Action("rpm", "print current filtered rpm", func() (string, error) {
		return fmt.Sprintf("rpm=%.2f", eng.RPM()), nil
	}))
	r.Register(Action("angle", "print current angle in degrees", func() (string, error) {
		return fmt.Sprintf("angle=%.2f", eng.Angle()), nil
	}))
	r.Register(Action("config", "print current settings", func() (string, error) {
		s := eng.Settings()
		t := eng.Timing()
		return fmt.Sprintf("stripes=%d target_rpm=%d threshold_factor=%g calibration_samples=%d movement_samples=%d ramp_rpm=%d min_interval_ms=%d mode=%s",
			s.StripeCount, s.TargetRPM, s.ThresholdFactor, s.CalibrationSamples, s.MovementSamples,
			t.RampRPM, t.MinInterval, eng.Mode()), nil
	}))

	r.Register(Action("motor_on", "switch the motor on", func() (string, error) {
		if err := drv.On(); err != nil {
			return "", err
		}
		return "motor=on", nil
	}))
	r.Register(Action("motor_off", "switch the motor off", func() (string, error) {
		if err := drv.Off(); err != nil {
			return "", err
		}
		return "motor=off", nil
	}))
	r.Register(Text("direction", "<cw|ccw>", "set motor direction", func(s string) (string, error) {
		d, err := motor.ParseDirection(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		if err := drv.SetDirection(d); err != nil {
			return "", err
		}
		return "direction=" + d.String(), nil
	}))

	r.Register(Action("help", "list commands", func() (string, error) {
		return r.Help(), nil
	}))
	return r
}
