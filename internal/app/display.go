package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/sensors"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// displayData holds the latest telemetry shown on the panel.
type displayData struct {
	mu sync.RWMutex

	reading       telemetry.Reading
	haveReading   bool
	alignment     telemetry.Alignment
	haveAlignment bool
}

type displaySnapshot struct {
	reading       telemetry.Reading
	haveReading   bool
	alignment     telemetry.Alignment
	haveAlignment bool
}

func (d *displayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		reading:       d.reading,
		haveReading:   d.haveReading,
		alignment:     d.alignment,
		haveAlignment: d.haveAlignment,
	}
}

// RunDisplay mirrors tachometer telemetry on an SSD1306 OLED.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()
	log := slog.Default().With("component", "display")
	if !cfg.Display.Enabled {
		log.Info("display disabled in config")
		return nil
	}

	if err := sensors.InitHost(); err != nil {
		return err
	}
	bus, err := i2creg.Open(cfg.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Info("display initialized", "bus", bus.String())

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Warn("splash failed", "err", err)
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDDisplay, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	data := &displayData{}
	if err := subscribeJSON(client, cfg.MQTT.TopicReading, log, func(r telemetry.Reading) {
		data.mu.Lock()
		data.reading, data.haveReading = r, true
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.MQTT.TopicAlignment, log, func(a telemetry.Alignment) {
		data.mu.Lock()
		data.alignment, data.haveAlignment = a, true
		data.mu.Unlock()
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.DisplayInterval())
	defer ticker.Stop()

	log.Info("starting update loop", "interval", cfg.DisplayInterval())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderFrame(data.snapshot()), image.Point{}); err != nil {
				log.Warn("display update failed", "err", err)
			}
		}
	}
}

// renderFrame picks the page for the newest data: alignment while aligning,
// otherwise the RPM page.
func renderFrame(s displaySnapshot) *image1bit.VerticalLSB {
	switch {
	case s.haveAlignment && (!s.haveReading || s.alignment.Time.After(s.reading.Time)):
		return renderAlignment(s.alignment)
	case s.haveReading:
		return renderReading(s.reading)
	}
	return renderLines(
		textLine{0, 26, "Tachometer"},
		textLine{0, 39, "Waiting..."},
	)
}

func renderReading(r telemetry.Reading) *image1bit.VerticalLSB {
	motion := "still"
	if r.Motion {
		motion = "moving"
	}
	status := fmt.Sprintf("T:%d", r.TargetRPM)
	if r.Ramping {
		status = fmt.Sprintf("ramp %d/%d", r.RampRPM, r.TargetRPM)
	}
	return renderLines(
		textLine{0, 13, fmt.Sprintf("RPM %8.1f", r.RPM)},
		textLine{0, 26, fmt.Sprintf("ANG %8.1f", r.Angle)},
		textLine{0, 39, fmt.Sprintf("%s %.2f", motion, r.Activity)},
		textLine{0, 52, status},
	)
}

func renderAlignment(a telemetry.Alignment) *image1bit.VerticalLSB {
	return renderLines(
		textLine{0, 13, "Alignment"},
		textLine{0, 26, a.Advice},
		textLine{0, 39, a.Severity},
		textLine{0, 52, fmt.Sprintf("asym %+.1f%%", a.AsymmetryPct)},
	)
}

func renderSplash() *image1bit.VerticalLSB {
	return renderLines(
		textLine{10, 26, "Optical Tacho"},
		textLine{25, 43, "starting"},
	)
}

type textLine struct {
	x, y int
	text string
}

func renderLines(lines ...textLine) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(l.x, l.y)
		drawer.DrawString(l.text)
	}
	return img
}
