// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logging.Setup(config.Get().Logging.Level)
	slog.Info("starting optical tachometer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunTachometer(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
