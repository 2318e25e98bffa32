// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIOSensor reads the optical sensor from a GPIO input pin by polling.
type GPIOSensor struct {
	name      string
	pin       gpio.PinIn
	activeLow bool
}

// NewGPIOSensor configures pin name (e.g. "GPIO17") as an input without edge
// detection. activeLow inverts the level for sensors that pull low on light.
func NewGPIOSensor(name string, pullUp, activeLow bool) (*GPIOSensor, error) {
	if err := InitHost(); err != nil {
		return nil, fmt.Errorf("optical sensor: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("optical sensor: pin %q not found", name)
	}

	pull := gpio.Float
	if pullUp {
		pull = gpio.PullUp
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("optical sensor: configure pin %q: %w", name, err)
	}

	return &GPIOSensor{name: name, pin: pin, activeLow: activeLow}, nil
}

// ReadLevel returns true when the line is at its active (light) level.
func (s *GPIOSensor) ReadLevel() bool {
	return (s.pin.Read() == gpio.High) != s.activeLow
}

func (s *GPIOSensor) String() string {
	return "gpio:" + s.name
}
