package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "feedflow/command", cfg.MQTT.CommandTopic)
	assert.Equal(t, float32(0.90), cfg.Filter.FastAlpha)
	assert.Equal(t, float32(0.40), cfg.Filter.SlowAlpha)
	assert.Equal(t, float32(0.02), cfg.Filter.JumpThresholdKg)
	assert.Equal(t, float32(5.0), cfg.Feed.MaxFeedKg)
	assert.Equal(t, 30*time.Second, cfg.Feed.MaxDuration)
	assert.Equal(t, ServoModeContinuous, cfg.Servo.Mode)
	assert.Equal(t, int32(90), cfg.Servo.CloseAngle)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, float32(17102.86), cfg.Calibration.DefaultFactor)
	assert.Equal(t, time.Minute, cfg.Alerts.Cooldown)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, float32(5.0), cfg.Feed.MaxFeedKg)
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
	return name
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyUSB0"
  baud_rate: 9600

mqtt:
  enabled: true
  broker: "tcp://10.0.0.2:1883"

filter:
  fast_alpha: 0.8
  slow_alpha: 0.3
  jump_threshold_kg: 0.05

feed:
  max_feed_kg: 2.5
  max_duration: 45s

servo:
  mode: gate
  min_angle: 0
  max_angle: 360
  min_pulse_us: 1000
  max_pulse_us: 2000
  open_angle: 270
  close_angle: 10

telemetry:
  interval: 1s

alerts:
  high_temp_c: 30
  cooldown: 2m
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTT.Broker)
	assert.Equal(t, "feedflow", cfg.MQTT.ClientID) // default
	assert.Equal(t, float32(0.8), cfg.Filter.FastAlpha)
	assert.Equal(t, float32(0.05), cfg.Filter.JumpThresholdKg)
	assert.Equal(t, float32(2.5), cfg.Feed.MaxFeedKg)
	assert.Equal(t, 45*time.Second, cfg.Feed.MaxDuration)
	assert.Equal(t, ServoModeGate, cfg.Servo.Mode)
	assert.Equal(t, int32(360), cfg.Servo.MaxAngle)
	assert.Equal(t, uint16(1000), cfg.Servo.MinPulseUs)
	assert.Equal(t, int32(270), cfg.Servo.OpenAngle)
	assert.Equal(t, time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, float32(0.02), cfg.Telemetry.DetectThresholdKg) // default
	assert.Equal(t, float32(30), cfg.Alerts.HighTempC)
	assert.Equal(t, 2*time.Minute, cfg.Alerts.Cooldown)
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
feed:
  max_feed_kg: 1.5
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, float32(1.5), cfg.Feed.MaxFeedKg)
	assert.Equal(t, 30*time.Second, cfg.Feed.MaxDuration) // default
	assert.Equal(t, float32(0.9), cfg.Filter.FastAlpha)   // default
	assert.Equal(t, "feedflow.db", cfg.Store.Path)        // default
}

func TestLoad_RejectsUnsafeValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"alpha above one", "filter:\n  fast_alpha: 1.5\n"},
		{"negative max feed", "feed:\n  max_feed_kg: -1\n"},
		{"unknown servo mode", "servo:\n  mode: stepper\n"},
		{"inverted pulse range", "servo:\n  min_pulse_us: 2400\n  max_pulse_us: 500\n"},
		{"open angle beyond range", "servo:\n  open_angle: 200\n"},
		{"close angle below range", "servo:\n  min_angle: 10\n  max_angle: 170\n  open_angle: 170\n  close_angle: 5\n"},
		{"open equals close", "servo:\n  open_angle: 90\n  close_angle: 90\n"},
		{"negative schedule interval", "schedule:\n  check_interval: -30s\n"},
		{"negative publish timeout", "mqtt:\n  publish_timeout: -1s\n"},
		{"negative loop period", "loop:\n  period: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyACM0"
	cfg.Feed.MaxDuration = 12 * time.Second

	name := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(name))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", loaded.Serial.Port)
	assert.Equal(t, 12*time.Second, loaded.Feed.MaxDuration)
}
