// Package motor drives the disk motor's enable and direction lines.
package motor

import (
	"fmt"
	"log/slog"
	"strings"
)

// Direction of rotation.
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// ParseDirection accepts cw/ccw and 0/1.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cw", "0", "clockwise":
		return Clockwise, nil
	case "ccw", "1", "counterclockwise":
		return CounterClockwise, nil
	}
	return 0, fmt.Errorf("invalid direction %q (must be cw, ccw, 0 or 1)", s)
}

// Driver switches the motor.
type Driver interface {
	On() error
	Off() error
	SetDirection(d Direction) error
	State() State
}

// State is the last commanded motor state.
type State struct {
	Running   bool      `json:"running"`
	Direction Direction `json:"direction"`
}

// Null records commands without touching hardware.
type Null struct {
	state State
	log   *slog.Logger
}

func NewNull(log *slog.Logger) *Null {
	if log == nil {
		log = slog.Default()
	}
	return &Null{log: log}
}

func (n *Null) On() error {
	n.state.Running = true
	n.log.Info("motor on (no hardware)")
	return nil
}

func (n *Null) Off() error {
	n.state.Running = false
	n.log.Info("motor off (no hardware)")
	return nil
}

func (n *Null) SetDirection(d Direction) error {
	n.state.Direction = d
	n.log.Info("motor direction (no hardware)", "direction", d.String())
	return nil
}

func (n *Null) State() State { return n.state }
