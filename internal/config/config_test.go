package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/optical_tachometer/internal/tacho"
)

func TestParse_EmptyGivesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.True(t, cfg.Sensor.Mock())
}

func TestParse_OverridesOnTopOfDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  stripe_count: 20
  calibration_strategy: pulse_width
mqtt:
  topic_reading: rig/reading
`))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Engine.StripeCount)
	assert.Equal(t, tacho.DefaultTargetRPM, cfg.Engine.TargetRPM)
	assert.Equal(t, "rig/reading", cfg.MQTT.TopicReading)
	assert.Equal(t, "tachometer/reply", cfg.MQTT.TopicReply)
	assert.Equal(t, tacho.StrategyPulseWidth, cfg.Strategy())
}

func TestParse_RejectsUnknownKey(t *testing.T) {
	_, err := Parse([]byte("engine:\n  stripes: 20\n"))
	require.Error(t, err)
}

func TestParse_RejectsTrailingDocument(t *testing.T) {
	_, err := Parse([]byte("logging:\n  level: debug\n---\nlogging:\n  level: info\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing document")
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"stripe_count zero":   "engine:\n  stripe_count: 0\n",
		"stripe_count 256":    "engine:\n  stripe_count: 256\n",
		"target rpm":          "engine:\n  target_rpm: 70000\n",
		"factor":              "engine:\n  threshold_factor: 0\n",
		"movement samples":    "engine:\n  movement_samples: 0\n",
		"calibration samples": "engine:\n  calibration_samples: 1001\n",
		"strategy":            "engine:\n  calibration_strategy: magic\n",
		"tick":                "engine:\n  tick_interval_us: 0\n",
		"mock duty":           "sensor:\n  mock_duty: 1\n",
		"empty pin":           "sensor:\n  pin: \"\"\n",
		"motor half set":      "motor:\n  enable_pin: GPIO5\n",
		"serial baud":         "serial:\n  port: /dev/ttyUSB0\n  baud_rate: 0\n",
		"broker":              "mqtt:\n  broker: \"\"\n",
		"embedded address":    "mqtt:\n  embedded_broker: true\n  embedded_address: \"\"\n",
		"topic":               "mqtt:\n  topic_command: \"\"\n",
		"publish interval":    "telemetry:\n  publish_interval_ms: 0\n",
		"web port":            "web:\n  port: 0\n",
		"display interval":    "display:\n  update_interval_ms: -1\n",
		"log level":           "logging:\n  level: loud\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestConfig_EngineOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  stripe_count: 12
  target_rpm: 1200
  threshold_factor: 1.5
  calibration_samples: 50
  movement_samples: 30
  calibration_sample_delay_us: 250
  ramp_step_interval_ms: 40
  tick_interval_us: 500
telemetry:
  publish_interval_ms: 100
display:
  update_interval_ms: 125
`))
	require.NoError(t, err)

	opts := cfg.EngineOptions()
	require.NotNil(t, opts.Settings)
	assert.Equal(t, tacho.Settings{
		StripeCount:        12,
		TargetRPM:          1200,
		ThresholdFactor:    1.5,
		CalibrationSamples: 50,
		MovementSamples:    30,
	}, *opts.Settings)
	assert.Equal(t, tacho.StrategyLevel, opts.Strategy)
	assert.Equal(t, 250*time.Microsecond, opts.SampleDelay)
	assert.Equal(t, 40*time.Millisecond, opts.RampStepInterval)

	assert.Equal(t, 500*time.Microsecond, cfg.TickInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.PublishInterval())
	assert.Equal(t, 125*time.Millisecond, cfg.DisplayInterval())
}

func TestLoad(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "tachometer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("web:\n  port: 9090\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Web.Port)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "tachometer.yaml"))
	require.NoError(t, err)
	assert.NoError(t, cfg.Settings().Validate())
}
