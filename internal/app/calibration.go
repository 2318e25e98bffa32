package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

const calibrationSchemaVersion = 1

// CalibrationPhase is one strategy's sampling run.
type CalibrationPhase struct {
	Strategy    string   `json:"strategy"`
	Samples     int      `json:"samples"`
	DurationSec float64  `json:"duration_sec"`
	Mean        float64  `json:"mean"`
	StdDev      float64  `json:"stddev"`
	Threshold   uint8    `json:"threshold"`
	Confidence  float64  `json:"confidence"`
	Notes       []string `json:"notes,omitempty"`
}

// CalibrationReport is written as JSON under the calibration directory.
type CalibrationReport struct {
	SchemaVersion   int                `json:"schema_version"`
	CalibrationAt   string             `json:"calibration_at"`
	Sensor          string             `json:"sensor"`
	Stripes         uint8              `json:"stripes"`
	TargetRPM       uint16             `json:"target_rpm"`
	ThresholdFactor float64            `json:"threshold_factor"`
	Phases          []CalibrationPhase `json:"phases"`
	// Recommended is the strategy with the higher confidence.
	Recommended string `json:"recommended"`
}

// runCalibrationPhases samples the sensor once per strategy using the
// configured sample count, delay and threshold factor.
func runCalibrationPhases(cfg *config.Config, hw hardware) []CalibrationPhase {
	opts := cfg.EngineOptions()
	phases := make([]CalibrationPhase, 0, 2)
	for _, strategy := range []tacho.Strategy{tacho.StrategyLevel, tacho.StrategyPulseWidth} {
		cal := tacho.NewCalibrator(strategy, opts.SampleDelay, int(opts.Settings.CalibrationSamples))
		start := hw.clock.NowMicros()
		res := cal.Run(hw.sensor, hw.clock, opts.Settings.ThresholdFactor)
		took := hw.clock.NowMicros() - start

		p := CalibrationPhase{
			Strategy:    strategy.String(),
			Samples:     res.Samples,
			DurationSec: float64(took) / 1e6,
			Mean:        res.Mean,
			StdDev:      res.StdDev,
			Threshold:   res.Threshold,
		}
		if strategy == tacho.StrategyPulseWidth {
			p.Confidence = pulseWidthConfidence(res)
		} else {
			p.Confidence = levelConfidence(res)
		}
		if res.Samples == 0 {
			p.Notes = append(p.Notes, "no samples configured")
		} else if res.StdDev == 0 {
			p.Notes = append(p.Notes, "signal did not change during sampling")
		}
		phases = append(phases, p)
	}
	return phases
}

// levelConfidence is 1 for a 50% duty line and falls to 0 when only one
// level was seen.
func levelConfidence(c tacho.Calibration) float64 {
	if c.Samples == 0 {
		return 0
	}
	return clamp01(2 * math.Min(c.Mean, 1-c.Mean))
}

// pulseWidthConfidence rewards a stable non-zero pulse period.
func pulseWidthConfidence(c tacho.Calibration) float64 {
	if c.Samples == 0 || c.Mean <= 0 {
		return 0
	}
	return clamp01(1 - c.StdDev/c.Mean)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func recommendStrategy(phases []CalibrationPhase) string {
	best, conf := tacho.StrategyLevel.String(), -1.0
	for _, p := range phases {
		if p.Confidence > conf {
			best, conf = p.Strategy, p.Confidence
		}
	}
	return best
}

func writeCalibrationReport(dir string, rep CalibrationReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "tachometer_calibration.json")
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// RunCalibration is the guided bench calibration: it spins the disk,
// samples the sensor with both strategies and writes a JSON report to dir.
func RunCalibration(ctx context.Context, in io.Reader, out io.Writer, dir string) error {
	cfg := config.Get()
	log := slog.Default().With("component", "calibration")

	hw, err := buildHardware(cfg, log)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Optical sensor calibration ===")
	fmt.Fprintf(out, "stripes=%d target_rpm=%d factor=%.2f samples=%d\n",
		cfg.Engine.StripeCount, cfg.Engine.TargetRPM, cfg.Engine.ThresholdFactor, cfg.Engine.CalibrationSamples)

	if err := hw.motor.On(); err != nil {
		return fmt.Errorf("motor on: %w", err)
	}
	defer func() {
		if err := hw.motor.Off(); err != nil {
			log.Warn("motor off failed", "err", err)
		}
	}()

	fmt.Fprintln(out, "Bring the disk to its working speed, then press ENTER...")
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rep := CalibrationReport{
		SchemaVersion:   calibrationSchemaVersion,
		CalibrationAt:   time.Now().Format(time.RFC3339),
		Sensor:          cfg.Sensor.Pin,
		Stripes:         uint8(cfg.Engine.StripeCount),
		TargetRPM:       uint16(cfg.Engine.TargetRPM),
		ThresholdFactor: cfg.Engine.ThresholdFactor,
		Phases:          runCalibrationPhases(cfg, hw),
	}
	rep.Recommended = recommendStrategy(rep.Phases)

	for _, p := range rep.Phases {
		fmt.Fprintf(out, "%-12s mean=%.3f sd=%.3f threshold=%d confidence=%.2f (%.2fs)\n",
			p.Strategy, p.Mean, p.StdDev, p.Threshold, p.Confidence, p.DurationSec)
	}
	fmt.Fprintf(out, "recommended strategy: %s\n", rep.Recommended)

	path, err := writeCalibrationReport(dir, rep)
	if err != nil {
		return err
	}
	log.Info("calibration written", "path", path, "recommended", rep.Recommended)
	return nil
}
