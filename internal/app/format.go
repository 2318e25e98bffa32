package app

import (
	"fmt"

	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

func formatReading(r telemetry.Reading) string {
	motion := "-"
	if r.Motion {
		motion = "M"
	}
	ramp := ""
	if r.Ramping {
		ramp = fmt.Sprintf("  ramp=%d", r.RampRPM)
	}
	return fmt.Sprintf("[RPM]   rpm=%8.2f  raw=%8.2f  angle=%6.2f  act=%4.2f %s  rot=%d  thr=%d%s",
		r.RPM, r.RawRPM, r.Angle, r.Activity, motion, r.Rotations, r.Threshold, ramp)
}

func formatAlignment(a telemetry.Alignment) string {
	return fmt.Sprintf("[ALIGN] high=%8.1fus  low=%8.1fus  asym=%6.1f%%  %s",
		a.MeanHighUs, a.MeanLowUs, a.AsymmetryPct, a.Message)
}

func formatReply(r telemetry.Reply) string {
	return fmt.Sprintf("[%s] %s", r.Source, r.Text())
}
