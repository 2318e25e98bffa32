package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/optical_tachometer/internal/logging"
	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

// Config holds all application configuration values.
type Config struct {
	Sensor    SensorConfig    `yaml:"sensor"`
	Motor     MotorConfig     `yaml:"motor"`
	Engine    EngineConfig    `yaml:"engine"`
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Web       WebConfig       `yaml:"web"`
	Display   DisplayConfig   `yaml:"display"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SensorConfig selects the optical sensor input.
type SensorConfig struct {
	// Pin is a periph pin name such as "GPIO17", or "mock" for a simulated disk.
	Pin       string `yaml:"pin"`
	PullUp    bool   `yaml:"pull_up"`
	ActiveLow bool   `yaml:"active_low"`

	// Simulated disk, used when Pin is "mock".
	MockRPM  float64 `yaml:"mock_rpm"`
	MockDuty float64 `yaml:"mock_duty"`
}

// Mock reports whether the simulated disk replaces the GPIO sensor.
func (s SensorConfig) Mock() bool { return s.Pin == MockPin }

// MockPin selects the simulated sensor.
const MockPin = "mock"

// MotorConfig names the motor pins. Empty pins disable motor control.
type MotorConfig struct {
	EnablePin    string `yaml:"enable_pin"`
	DirectionPin string `yaml:"direction_pin"`
}

// EngineConfig holds the engine's initial settings and acquisition timing.
type EngineConfig struct {
	StripeCount              int     `yaml:"stripe_count"`
	TargetRPM                int     `yaml:"target_rpm"`
	ThresholdFactor          float64 `yaml:"threshold_factor"`
	CalibrationSamples       int     `yaml:"calibration_samples"`
	MovementSamples          int     `yaml:"movement_samples"`
	CalibrationStrategy      string  `yaml:"calibration_strategy"` // level | pulse_width
	CalibrationSampleDelayUS int     `yaml:"calibration_sample_delay_us"`
	RampStepIntervalMS       int     `yaml:"ramp_step_interval_ms"`
	TickIntervalUS           int     `yaml:"tick_interval_us"`
}

// SerialConfig is the line-oriented command console. An empty port disables it.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig holds the broker, client IDs and topics.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	// EmbeddedBroker starts an in-process broker listening on EmbeddedAddress.
	EmbeddedBroker  bool   `yaml:"embedded_broker"`
	EmbeddedAddress string `yaml:"embedded_address"`

	ClientIDTachometer string `yaml:"client_id_tachometer"`
	ClientIDConsole    string `yaml:"client_id_console"`
	ClientIDWeb        string `yaml:"client_id_web"`
	ClientIDDisplay    string `yaml:"client_id_display"`

	TopicReading   string `yaml:"topic_reading"`
	TopicAlignment string `yaml:"topic_alignment"`
	TopicCommand   string `yaml:"topic_command"`
	TopicReply     string `yaml:"topic_reply"`
}

type TelemetryConfig struct {
	PublishIntervalMS int `yaml:"publish_interval_ms"`
}

type WebConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
	// I2CBus is the periph bus name; empty selects the first bus.
	I2CBus           string `yaml:"i2c_bus"`
	UpdateIntervalMS int    `yaml:"update_interval_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration that runs against the simulated disk
// with a local broker.
func DefaultConfig() Config {
	return Config{
		Sensor: SensorConfig{
			Pin:      MockPin,
			PullUp:   true,
			MockRPM:  tacho.DefaultTargetRPM,
			MockDuty: 0.5,
		},
		Engine: EngineConfig{
			StripeCount:              tacho.DefaultStripeCount,
			TargetRPM:                tacho.DefaultTargetRPM,
			ThresholdFactor:          tacho.DefaultThresholdFactor,
			CalibrationSamples:       tacho.DefaultCalibrationSamples,
			MovementSamples:          tacho.DefaultMovementSamples,
			CalibrationStrategy:      "level",
			CalibrationSampleDelayUS: 1000,
			RampStepIntervalMS:       100,
			TickIntervalUS:           200,
		},
		Serial: SerialConfig{BaudRate: 115200},
		MQTT: MQTTConfig{
			Broker:             "tcp://localhost:1883",
			EmbeddedAddress:    ":1883",
			ClientIDTachometer: "tachometer-engine",
			ClientIDConsole:    "tachometer-console",
			ClientIDWeb:        "tachometer-web",
			ClientIDDisplay:    "tachometer-display",
			TopicReading:       "tachometer/reading",
			TopicAlignment:     "tachometer/alignment",
			TopicCommand:       "tachometer/command",
			TopicReply:         "tachometer/reply",
		},
		Telemetry: TelemetryConfig{PublishIntervalMS: 200},
		Web:       WebConfig{Port: 8080, StaticDir: "web"},
		Display:   DisplayConfig{UpdateIntervalMS: 250},
		Logging:   LoggingConfig{Level: "info"},
	}
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a YAML file on top of DefaultConfig and validates the result.
// Unknown keys and trailing documents are errors.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is empty")
	}
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of DefaultConfig and validates the result.
func Parse(b []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return nil, errors.New("decode config yaml: unexpected trailing document")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if !c.Sensor.Mock() && c.Sensor.Pin == "" {
		return errors.New("sensor.pin is required (a pin name or \"mock\")")
	}
	if c.Sensor.Mock() && (c.Sensor.MockDuty <= 0 || c.Sensor.MockDuty >= 1) {
		return fmt.Errorf("sensor.mock_duty must be between 0 and 1, got %v", c.Sensor.MockDuty)
	}
	if (c.Motor.EnablePin == "") != (c.Motor.DirectionPin == "") {
		return errors.New("motor.enable_pin and motor.direction_pin must be set together")
	}

	e := c.Engine
	if e.StripeCount < 1 || e.StripeCount > 255 {
		return fmt.Errorf("engine.stripe_count must be 1-255, got %d", e.StripeCount)
	}
	if e.TargetRPM < 0 || e.TargetRPM > 65535 {
		return fmt.Errorf("engine.target_rpm must be 0-65535, got %d", e.TargetRPM)
	}
	if e.CalibrationSamples < 0 || e.CalibrationSamples > tacho.MaxSampleCount {
		return fmt.Errorf("engine.calibration_samples must be 0-%d, got %d", tacho.MaxSampleCount, e.CalibrationSamples)
	}
	if e.MovementSamples < 1 || e.MovementSamples > tacho.MaxSampleCount {
		return fmt.Errorf("engine.movement_samples must be 1-%d, got %d", tacho.MaxSampleCount, e.MovementSamples)
	}
	if err := c.Settings().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if _, err := tacho.ParseStrategy(e.CalibrationStrategy); err != nil {
		return fmt.Errorf("engine.calibration_strategy: %w", err)
	}
	if e.CalibrationSampleDelayUS < 0 {
		return fmt.Errorf("engine.calibration_sample_delay_us must be >= 0, got %d", e.CalibrationSampleDelayUS)
	}
	if e.RampStepIntervalMS < 0 {
		return fmt.Errorf("engine.ramp_step_interval_ms must be >= 0, got %d", e.RampStepIntervalMS)
	}
	if e.TickIntervalUS <= 0 {
		return fmt.Errorf("engine.tick_interval_us must be > 0, got %d", e.TickIntervalUS)
	}

	if c.Serial.Port != "" && c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be > 0, got %d", c.Serial.BaudRate)
	}

	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.EmbeddedBroker && c.MQTT.EmbeddedAddress == "" {
		return errors.New("mqtt.embedded_address is required when mqtt.embedded_broker is set")
	}
	for name, topic := range map[string]string{
		"mqtt.topic_reading":   c.MQTT.TopicReading,
		"mqtt.topic_alignment": c.MQTT.TopicAlignment,
		"mqtt.topic_command":   c.MQTT.TopicCommand,
		"mqtt.topic_reply":     c.MQTT.TopicReply,
	} {
		if topic == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.Telemetry.PublishIntervalMS <= 0 {
		return fmt.Errorf("telemetry.publish_interval_ms must be > 0, got %d", c.Telemetry.PublishIntervalMS)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
	}
	if c.Display.UpdateIntervalMS <= 0 {
		return fmt.Errorf("display.update_interval_ms must be > 0, got %d", c.Display.UpdateIntervalMS)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Settings converts the engine section to engine settings. Call after validation.
func (c *Config) Settings() tacho.Settings {
	return tacho.Settings{
		StripeCount:        uint8(c.Engine.StripeCount),
		TargetRPM:          uint16(c.Engine.TargetRPM),
		ThresholdFactor:    c.Engine.ThresholdFactor,
		CalibrationSamples: uint16(c.Engine.CalibrationSamples),
		MovementSamples:    uint16(c.Engine.MovementSamples),
	}
}

// Strategy returns the parsed calibration strategy.
func (c *Config) Strategy() tacho.Strategy {
	s, _ := tacho.ParseStrategy(c.Engine.CalibrationStrategy)
	return s
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalUS) * time.Microsecond
}

func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.Telemetry.PublishIntervalMS) * time.Millisecond
}

func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.Display.UpdateIntervalMS) * time.Millisecond
}

// EngineOptions builds engine options from the engine section.
func (c *Config) EngineOptions() tacho.Options {
	s := c.Settings()
	return tacho.Options{
		Settings:         &s,
		Strategy:         c.Strategy(),
		SampleDelay:      time.Duration(c.Engine.CalibrationSampleDelayUS) * time.Microsecond,
		RampStepInterval: time.Duration(c.Engine.RampStepIntervalMS) * time.Millisecond,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
