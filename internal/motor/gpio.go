// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motor

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/optical_tachometer/internal/sensors"
)

// GPIODriver drives an enable pin (high = running) and a direction pin
// (low = clockwise).
type GPIODriver struct {
	enable    gpio.PinOut
	direction gpio.PinOut
	state     State
	log       *slog.Logger
}

// NewGPIODriver claims both pins and leaves the motor off, turning clockwise.
func NewGPIODriver(enablePin, directionPin string, log *slog.Logger) (*GPIODriver, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := sensors.InitHost(); err != nil {
		return nil, fmt.Errorf("motor: %w", err)
	}

	enable := gpioreg.ByName(enablePin)
	if enable == nil {
		return nil, fmt.Errorf("motor: enable pin %q not found", enablePin)
	}
	direction := gpioreg.ByName(directionPin)
	if direction == nil {
		return nil, fmt.Errorf("motor: direction pin %q not found", directionPin)
	}

	d := &GPIODriver{enable: enable, direction: direction, log: log}
	if err := d.enable.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("motor: configure enable pin %q: %w", enablePin, err)
	}
	if err := d.direction.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("motor: configure direction pin %q: %w", directionPin, err)
	}
	return d, nil
}

func (d *GPIODriver) On() error {
	if err := d.enable.Out(gpio.High); err != nil {
		return fmt.Errorf("motor on: %w", err)
	}
	d.state.Running = true
	d.log.Info("motor on")
	return nil
}

func (d *GPIODriver) Off() error {
	if err := d.enable.Out(gpio.Low); err != nil {
		return fmt.Errorf("motor off: %w", err)
	}
	d.state.Running = false
	d.log.Info("motor off")
	return nil
}

func (d *GPIODriver) SetDirection(dir Direction) error {
	level := gpio.Low
	if dir == CounterClockwise {
		level = gpio.High
	}
	if err := d.direction.Out(level); err != nil {
		return fmt.Errorf("motor direction: %w", err)
	}
	d.state.Direction = dir
	d.log.Info("motor direction", "direction", dir.String())
	return nil
}

func (d *GPIODriver) State() State { return d.state }
