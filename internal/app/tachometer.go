// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/optical_tachometer/internal/command"
	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/motor"
	"github.com/relabs-tech/optical_tachometer/internal/sensors"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

// hardware is what the engine and the command table run against.
type hardware struct {
	sensor tacho.Sensor
	clock  tacho.Clock
	motor  motor.Driver
}

// buildHardware opens the GPIO sensor and motor pins, or the simulated disk
// when the sensor pin is "mock". The simulated disk only spins after motor_on.
func buildHardware(cfg *config.Config, log *slog.Logger) (hardware, error) {
	clk := sensors.NewSystemClock()

	if cfg.Sensor.Mock() {
		disk := sensors.NewWaveform(clk, cfg.Sensor.MockRPM, cfg.Engine.StripeCount, cfg.Sensor.MockDuty)
		log.Info("using simulated disk", "rpm", cfg.Sensor.MockRPM, "stripes", cfg.Engine.StripeCount, "duty", cfg.Sensor.MockDuty)
		return hardware{sensor: disk, clock: clk, motor: motor.NewSim(disk, cfg.Sensor.MockRPM, log)}, nil
	}

	sensor, err := sensors.NewGPIOSensor(cfg.Sensor.Pin, cfg.Sensor.PullUp, cfg.Sensor.ActiveLow)
	if err != nil {
		return hardware{}, err
	}
	log.Info("optical sensor ready", "pin", cfg.Sensor.Pin)

	var drv motor.Driver = motor.NewNull(log)
	if cfg.Motor.EnablePin != "" {
		gpioDrv, err := motor.NewGPIODriver(cfg.Motor.EnablePin, cfg.Motor.DirectionPin, log)
		if err != nil {
			return hardware{}, err
		}
		drv = gpioDrv
	}
	return hardware{sensor: sensor, clock: clk, motor: drv}, nil
}

// newEngine builds and initializes the engine from configuration.
func newEngine(cfg *config.Config, hw hardware, log *slog.Logger) *tacho.Engine {
	opts := cfg.EngineOptions()
	opts.Logger = log.With("component", "engine")
	eng := tacho.New(hw.sensor, hw.clock, opts)
	eng.Initialize()
	return eng
}

// RunTachometer runs the engine loop with the serial console and the MQTT
// command topic as inputs and MQTT telemetry as output.
func RunTachometer(ctx context.Context) error {
	cfg := config.Get()
	log := slog.Default().With("component", "tachometer")
	session := uuid.NewString()

	if cfg.MQTT.EmbeddedBroker {
		srv, err := startEmbeddedBroker(cfg.MQTT.EmbeddedAddress, log)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDTachometer+"-"+session[:8], log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hw, err := buildHardware(cfg, log)
	if err != nil {
		return err
	}

	eng := newEngine(cfg, hw, log)
	commands := command.NewTachometer(eng, hw.motor)
	pub := &mqttPublisher{client: client, topics: cfg.MQTT, log: log}
	host := NewHost(eng, commands, pub, session, cfg.PublishInterval(), log)

	lines := make(chan Line, 16)

	token := client.Subscribe(cfg.MQTT.TopicCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case lines <- Line{Source: "mqtt", Text: string(msg.Payload())}:
		default:
			log.Warn("command queue full, dropping mqtt command", "payload", string(msg.Payload()))
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.MQTT.TopicCommand, err)
	}
	log.Info("listening for commands", "topic", cfg.MQTT.TopicCommand)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Serial.Port != "" {
		port, err := openSerial(cfg.Serial)
		if err != nil {
			return err
		}
		log.Info("serial console opened", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)

		g.Go(func() error {
			<-ctx.Done()
			return port.Close()
		})
		g.Go(func() error {
			return readLines(ctx, port, "serial", lineWriter(port, log), lines)
		})
	}

	g.Go(func() error {
		return host.Run(ctx, lines, cfg.TickInterval())
	})

	err = g.Wait()
	log.Info("tachometer stopped", "rpm", eng.RPM(), "angle", eng.Angle(), "uptime", time.Duration(hw.clock.NowMillis())*time.Millisecond)
	return err
}
