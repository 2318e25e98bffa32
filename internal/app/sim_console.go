// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/relabs-tech/optical_tachometer/internal/command"
	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

// consolePublisher prints telemetry as fixed-width lines.
type consolePublisher struct {
	w io.Writer
}

func (p consolePublisher) PublishReading(r telemetry.Reading) {
	fmt.Fprintln(p.w, formatReading(r))
}

func (p consolePublisher) PublishAlignment(a telemetry.Alignment) {
	fmt.Fprintln(p.w, formatAlignment(a))
}

func (p consolePublisher) PublishReply(r telemetry.Reply) {
	fmt.Fprintln(p.w, formatReply(r))
}

// RunSimConsole runs the engine on the local terminal without MQTT. Commands
// are read from stdin. With sensor.pin "mock" no hardware is needed.
func RunSimConsole(ctx context.Context) error {
	cfg := config.Get()
	log := slog.Default().With("component", "console")

	hw, err := buildHardware(cfg, log)
	if err != nil {
		return err
	}
	eng := newEngine(cfg, hw, log)
	host := NewHost(eng, command.NewTachometer(eng, hw.motor), consolePublisher{w: os.Stdout}, uuid.NewString(), cfg.PublishInterval(), log)

	fmt.Println("type help for commands; try motor_on then read_rpm")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan Line, 4)
	go func() {
		if err := readLines(ctx, os.Stdin, "stdin", nil, lines); err != nil {
			log.Warn("stdin closed", "err", err)
		}
	}()

	return host.Run(ctx, lines, cfg.TickInterval())
}
