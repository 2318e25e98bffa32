package tacho

import (
	"fmt"
	"log/slog"
	"math"
)

// Settings are the tunable parameters of the engine.
type Settings struct {
	StripeCount        uint8   `json:"stripe_count"`
	TargetRPM          uint16  `json:"target_rpm"`
	ThresholdFactor    float64 `json:"threshold_factor"`
	CalibrationSamples uint16  `json:"calibration_samples"`
	MovementSamples    uint16  `json:"movement_samples"`
}

// DefaultSettings returns the settings applied by Initialize.
func DefaultSettings() Settings {
	return Settings{
		StripeCount:        DefaultStripeCount,
		TargetRPM:          DefaultTargetRPM,
		ThresholdFactor:    DefaultThresholdFactor,
		CalibrationSamples: DefaultCalibrationSamples,
		MovementSamples:    DefaultMovementSamples,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	if s.StripeCount == 0 {
		return fmt.Errorf("%w: stripe count must be > 0", ErrInvalidConfig)
	}
	if err := checkFactor(s.ThresholdFactor); err != nil {
		return err
	}
	if s.CalibrationSamples > MaxSampleCount {
		return fmt.Errorf("%w: calibration samples %d exceeds %d", ErrInvalidConfig, s.CalibrationSamples, MaxSampleCount)
	}
	if s.MovementSamples == 0 || s.MovementSamples > MaxSampleCount {
		return fmt.Errorf("%w: movement samples %d must be 1..%d", ErrInvalidConfig, s.MovementSamples, MaxSampleCount)
	}
	return nil
}

func checkFactor(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return fmt.Errorf("%w: threshold factor %v must be a positive number", ErrInvalidConfig, f)
	}
	return nil
}

// MinInterval returns ceil(60000/(rpm*stripes)*1.2) in milliseconds, computed
// as ceil(72000/(rpm*stripes)) so no rounding error creeps in. ok is false
// when rpm or stripes is zero.
func MinInterval(rpm uint16, stripes uint8) (interval uint32, ok bool) {
	d := uint64(rpm) * uint64(stripes)
	if d == 0 {
		return 0, false
	}
	return uint32((72000 + d - 1) / d), true
}

// PulseTiming holds the derived window length and the RPM it was derived from.
type PulseTiming struct {
	RampRPM     uint16 `json:"ramp_rpm"`
	MinInterval uint32 `json:"min_interval_ms"`
}

// Store owns Settings and keeps PulseTiming in step with them.
type Store struct {
	settings Settings
	timing   PulseTiming
	log      *slog.Logger
}

// NewStore starts from s, which must be valid.
func NewStore(s Settings, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	st := &Store{settings: s, log: log}
	st.timing.MinInterval = 1
	st.timing.RampRPM = s.TargetRPM
	st.recompute()
	return st
}

func (st *Store) Settings() Settings       { return st.settings }
func (st *Store) Timing() PulseTiming      { return st.timing }
func (st *Store) MinInterval() uint32      { return st.timing.MinInterval }
func (st *Store) RampRPM() uint16          { return st.timing.RampRPM }
func (st *Store) StripeCount() uint8       { return st.settings.StripeCount }
func (st *Store) TargetRPM() uint16        { return st.settings.TargetRPM }
func (st *Store) ThresholdFactor() float64 { return st.settings.ThresholdFactor }

// SetStripeCount accepts 1..255.
func (st *Store) SetStripeCount(v int) error {
	if v <= 0 || v > math.MaxUint8 {
		return st.reject(fmt.Errorf("%w: stripe count %d must be 1..255", ErrInvalidConfig, v))
	}
	st.settings.StripeCount = uint8(v)
	st.recompute()
	return nil
}

// SetTargetRPM accepts 0..65535 and resets the ramp RPM to the new target.
func (st *Store) SetTargetRPM(v int) error {
	if v < 0 || v > math.MaxUint16 {
		return st.reject(fmt.Errorf("%w: target rpm %d must be 0..65535", ErrInvalidConfig, v))
	}
	st.settings.TargetRPM = uint16(v)
	st.timing.RampRPM = uint16(v)
	st.recompute()
	return nil
}

// SetRampRPM changes the RPM the window is derived from without touching the target.
func (st *Store) SetRampRPM(v uint16) {
	st.timing.RampRPM = v
	st.recompute()
}

func (st *Store) SetThresholdFactor(f float64) error {
	if err := checkFactor(f); err != nil {
		return st.reject(err)
	}
	st.settings.ThresholdFactor = f
	return nil
}

func (st *Store) SetCalibrationSamples(v int) error {
	if v < 0 || v > MaxSampleCount {
		return st.reject(fmt.Errorf("%w: calibration samples %d must be 0..%d", ErrInvalidConfig, v, MaxSampleCount))
	}
	st.settings.CalibrationSamples = uint16(v)
	return nil
}

func (st *Store) SetMovementSamples(v int) error {
	if v < 1 || v > MaxSampleCount {
		return st.reject(fmt.Errorf("%w: movement samples %d must be 1..%d", ErrInvalidConfig, v, MaxSampleCount))
	}
	st.settings.MovementSamples = uint16(v)
	return nil
}

func (st *Store) reject(err error) error {
	st.log.Warn("setting rejected", "err", err)
	return err
}

// recompute derives the window from the ramp RPM. A zero RPM or stripe count
// keeps the previous window.
func (st *Store) recompute() {
	iv, ok := MinInterval(st.timing.RampRPM, st.settings.StripeCount)
	if !ok {
		st.log.Warn("window not recomputed, rpm or stripe count is zero",
			"rpm", st.timing.RampRPM, "stripes", st.settings.StripeCount, "kept_ms", st.timing.MinInterval)
		return
	}
	st.timing.MinInterval = iv
	st.log.Debug("window recomputed", "rpm", st.timing.RampRPM, "stripes", st.settings.StripeCount, "min_interval_ms", iv)
}
