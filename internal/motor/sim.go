package motor

import (
	"log/slog"

	"github.com/relabs-tech/optical_tachometer/internal/sensors"
)

// Sim spins a simulated disk: On sets the waveform to rpm, Off stops it.
type Sim struct {
	Null
	disk *sensors.Waveform
	rpm  float64
}

func NewSim(disk *sensors.Waveform, rpm float64, log *slog.Logger) *Sim {
	s := &Sim{Null: *NewNull(log), disk: disk, rpm: rpm}
	disk.SetRPM(0)
	return s
}

func (s *Sim) On() error {
	s.disk.SetRPM(s.rpm)
	return s.Null.On()
}

func (s *Sim) Off() error {
	s.disk.SetRPM(0)
	return s.Null.Off()
}
