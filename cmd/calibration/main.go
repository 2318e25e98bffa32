// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided bench calibration for the optical sensor.
//
// Spins the disk (when a motor is configured), samples the sensor with the
// level and pulse_width strategies and writes ./calibration/tachometer_calibration.json
// with mean, standard deviation, threshold and a confidence per strategy.
//
// Run:
//
//	go run ./cmd/calibration -config configs/tachometer.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/optical_tachometer/internal/app"
	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/tachometer.yaml", "Path to configuration file")
	outDir := flag.String("out", "calibration", "Directory for the calibration report")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logging.Setup(config.Get().Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, os.Stdin, os.Stdout, *outDir); err != nil {
		slog.Error("calibration failed", "err", err)
		os.Exit(1)
	}
}
