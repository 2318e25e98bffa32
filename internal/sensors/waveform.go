package sensors

import "math"

// Waveform simulates a striped disk passing the sensor: stripes pulses per
// revolution, high for duty of each stripe period. At zero RPM the line
// holds IdleLevel.
type Waveform struct {
	clock     TimeBase
	rpm       float64
	stripes   int
	duty      float64
	IdleLevel bool
}

// NewWaveform returns a waveform driven by clock. duty is clamped to 0..1.
func NewWaveform(clock TimeBase, rpm float64, stripes int, duty float64) *Waveform {
	w := &Waveform{clock: clock, stripes: stripes}
	w.SetRPM(rpm)
	w.SetDuty(duty)
	return w
}

func (w *Waveform) SetRPM(rpm float64) {
	if rpm < 0 {
		rpm = 0
	}
	w.rpm = rpm
}

func (w *Waveform) SetDuty(duty float64) {
	w.duty = math.Max(0, math.Min(1, duty))
}

func (w *Waveform) RPM() float64 { return w.rpm }

// PeriodMicros is the length of one stripe period, or 0 when stopped.
func (w *Waveform) PeriodMicros() float64 {
	if w.rpm <= 0 || w.stripes <= 0 {
		return 0
	}
	return 60e6 / (w.rpm * float64(w.stripes))
}

func (w *Waveform) ReadLevel() bool {
	period := w.PeriodMicros()
	if period == 0 {
		return w.IdleLevel
	}
	phase := math.Mod(float64(w.clock.ElapsedMicros()), period)
	return phase < w.duty*period
}
