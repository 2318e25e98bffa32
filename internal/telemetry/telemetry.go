// Package telemetry holds the JSON messages published over MQTT.
package telemetry

import (
	"time"

	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

// Reading is published when an RPM window closes.
type Reading struct {
	Session    string    `json:"session"`
	Time       time.Time `json:"time"`
	Mode       string    `json:"mode"`
	RPM        float64   `json:"rpm"`
	RawRPM     float64   `json:"raw_rpm"`
	Angle      float64   `json:"angle"`
	Activity   float64   `json:"activity"`
	Motion     bool      `json:"motion"`
	Confirmed  bool      `json:"confirmed"`
	Rotations  uint64    `json:"rotations"`
	Threshold  uint8     `json:"threshold"`
	Calibrated bool      `json:"calibrated"`
	Ramping    bool      `json:"ramping"`
	RampRPM    uint16    `json:"ramp_rpm"`
	TargetRPM  uint16    `json:"target_rpm"`
	Stripes    uint8     `json:"stripes"`
}

// Alignment is published for every alignment recommendation.
type Alignment struct {
	Session      string    `json:"session"`
	Time         time.Time `json:"time"`
	Advice       string    `json:"advice"`
	Severity     string    `json:"severity"`
	MeanHighUs   float64   `json:"mean_high_us"`
	MeanLowUs    float64   `json:"mean_low_us"`
	AsymmetryPct float64   `json:"asymmetry_pct"`
	Transitions  int       `json:"transitions"`
	Message      string    `json:"message"`
}

// Reply answers one command line.
type Reply struct {
	Session string    `json:"session"`
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Command string    `json:"command"`
	OK      bool      `json:"ok"`
	Output  string    `json:"output,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Text renders the reply the way the serial console prints it.
func (r Reply) Text() string {
	if !r.OK {
		return "ERR " + r.Error
	}
	if r.Output == "" {
		return "OK"
	}
	return r.Output
}

// Source is the read side of the engine a Reading is built from.
type Source interface {
	Rotations() uint64
	TargetRPM() uint16
	StripeCount() uint8
	Calibration() (tacho.Calibration, bool)
}

// NewReading builds a Reading from a tick report.
func NewReading(session string, t time.Time, rep tacho.Report, src Source) Reading {
	cal, ok := src.Calibration()
	return Reading{
		Session:    session,
		Time:       t,
		Mode:       rep.Mode.String(),
		RPM:        rep.Estimate.RPM,
		RawRPM:     rep.Estimate.RawRPM,
		Angle:      rep.Estimate.Angle,
		Activity:   rep.Estimate.Motion.FilteredActivity,
		Motion:     rep.Estimate.Motion.MotionDetected,
		Confirmed:  rep.Estimate.Confirmed,
		Rotations:  src.Rotations(),
		Threshold:  cal.Threshold,
		Calibrated: ok,
		Ramping:    rep.Ramping,
		RampRPM:    rep.RampRPM,
		TargetRPM:  src.TargetRPM(),
		Stripes:    src.StripeCount(),
	}
}

// NewAlignment builds an Alignment from a recommendation.
func NewAlignment(session string, t time.Time, rec tacho.Recommendation) Alignment {
	return Alignment{
		Session:      session,
		Time:         t,
		Advice:       rec.Advice.String(),
		Severity:     rec.Severity.String(),
		MeanHighUs:   rec.MeanHighMicros,
		MeanLowUs:    rec.MeanLowMicros,
		AsymmetryPct: rec.AsymmetryPct,
		Transitions:  rec.Transitions,
		Message:      rec.Message(),
	}
}
