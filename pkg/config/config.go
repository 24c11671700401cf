package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Servo modes select the actuator semantics and the telemetry field set.
const (
	ServoModeContinuous = "continuous" // continuous-rotation servo: open = spin, close = stop
	ServoModeGate       = "gate"       // positional servo driving a gate: open/close angles
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Filter      FilterConfig      `yaml:"filter"`
	Feed        FeedConfig        `yaml:"feed"`
	Servo       ServoConfig       `yaml:"servo"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Command     CommandConfig     `yaml:"command"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Store       StoreConfig       `yaml:"store"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Loop        LoopConfig        `yaml:"loop"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains the local console configuration.
// An empty port means the console runs on stdin/stdout.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig contains the wireless command/telemetry link configuration.
type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	CommandTopic string `yaml:"command_topic"`
	DataTopic    string `yaml:"data_topic"`
	QoS          byte   `yaml:"qos"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"` // wait for the first attempt; later attempts run in the background
	PublishTimeout time.Duration `yaml:"publish_timeout"` // longest a frame may hold up the control loop
}

// FilterConfig contains the adaptive weight filter coefficients.
type FilterConfig struct {
	FastAlpha       float32 `yaml:"fast_alpha"`        // used when the sample jumps by more than JumpThresholdKg
	SlowAlpha       float32 `yaml:"slow_alpha"`        // used for small fluctuations
	JumpThresholdKg float32 `yaml:"jump_threshold_kg"` // difference that switches to the fast coefficient
}

// FeedConfig contains the dispensing safety bounds.
type FeedConfig struct {
	MaxFeedKg   float32       `yaml:"max_feed_kg"`
	MaxDuration time.Duration `yaml:"max_duration"`
}

// ServoConfig contains the logical angle range, the pulse range and the two actuator positions.
type ServoConfig struct {
	Mode       string `yaml:"mode"`
	MinAngle   int32  `yaml:"min_angle"`
	MaxAngle   int32  `yaml:"max_angle"`
	MinPulseUs uint16 `yaml:"min_pulse_us"`
	MaxPulseUs uint16 `yaml:"max_pulse_us"`
	OpenAngle  int32  `yaml:"open_angle"`
	CloseAngle int32  `yaml:"close_angle"`
}

// TelemetryConfig contains the reporting cadence and the no-load threshold.
type TelemetryConfig struct {
	Interval          time.Duration `yaml:"interval"`
	DetectThresholdKg float32       `yaml:"detect_threshold_kg"`
}

// CommandConfig contains the command parser policy.
type CommandConfig struct {
	FoldCase bool `yaml:"fold_case"` // match every keyword case-insensitively
}

// CalibrationConfig contains the load cell calibration fallback.
type CalibrationConfig struct {
	DefaultFactor float32 `yaml:"default_factor"`
	MaxFactor     float32 `yaml:"max_factor"`
}

// StoreConfig contains the SQLite database location. An empty path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig contains the high temperature alert parameters.
type AlertsConfig struct {
	HighTempC float32       `yaml:"high_temp_c"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// ScheduleConfig contains the scheduled feed parameters.
type ScheduleConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"` // how often the schedule table is read
}

// LoopConfig contains the control loop period.
type LoopConfig struct {
	Period time.Duration `yaml:"period"`
}

// MockConfig contains the simulated hopper configuration.
type MockConfig struct {
	SampleRate     time.Duration `yaml:"sample_rate"`        // load cell conversion period
	FlowRateKgPerS float32       `yaml:"flow_rate_kg_per_s"` // feed flow while the gate is open
	StartKg        float32       `yaml:"start_kg"`           // weight on the scale at power-up
	NoiseKg        float32       `yaml:"noise_kg"`           // peak noise amplitude
	CountsPerKg    float32       `yaml:"counts_per_kg"`      // true sensitivity of the simulated load cell
	TempC          float32       `yaml:"temp_c"`             // water temperature
	ProbeAbsent    bool          `yaml:"probe_absent"`       // simulate a disconnected temperature probe
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "", // stdin/stdout; "/dev/ttyUSB0" or "COM3" for a real console
			BaudRate: 115200,
		},
		MQTT: MQTTConfig{
			Enabled:      false,
			Broker:       "tcp://localhost:1883",
			ClientID:     "feedflow",
			CommandTopic: "feedflow/command",
			DataTopic:    "feedflow/data",
			QoS:          0,

			ConnectTimeout: 5 * time.Second,
			PublishTimeout: 20 * time.Millisecond,
		},
		Filter: FilterConfig{
			FastAlpha:       0.90,
			SlowAlpha:       0.40,
			JumpThresholdKg: 0.02,
		},
		Feed: FeedConfig{
			MaxFeedKg:   5.0,
			MaxDuration: 30 * time.Second,
		},
		Servo: ServoConfig{
			Mode:       ServoModeContinuous,
			MinAngle:   0,
			MaxAngle:   180,
			MinPulseUs: 500,
			MaxPulseUs: 2400,
			OpenAngle:  180, // full speed counter-clockwise
			CloseAngle: 90,  // stop
		},
		Telemetry: TelemetryConfig{
			Interval:          2 * time.Second,
			DetectThresholdKg: 0.02,
		},
		Calibration: CalibrationConfig{
			DefaultFactor: 17102.86,
			MaxFactor:     1e9,
		},
		Store: StoreConfig{
			Path: "feedflow.db",
		},
		Alerts: AlertsConfig{
			HighTempC: 32,
			Cooldown:  time.Minute,
		},
		Schedule: ScheduleConfig{
			CheckInterval: 30 * time.Second,
		},
		Loop: LoopConfig{
			Period: 10 * time.Millisecond,
		},
		Mock: MockConfig{
			SampleRate:     80 * time.Millisecond, // HX711 at 10 SPS is 100ms, 80 SPS is 12.5ms
			FlowRateKgPerS: 0.25,
			StartKg:        2.0,
			NoiseKg:        0.002,
			CountsPerKg:    17102.86,
			TempC:          24.5,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations that would break the safety bounds.
func (c *Config) Validate() error {
	var errs []error

	if c.Filter.FastAlpha <= 0 || c.Filter.FastAlpha > 1 {
		errs = append(errs, fmt.Errorf("filter.fast_alpha must be in (0, 1], got %v", c.Filter.FastAlpha))
	}
	if c.Filter.SlowAlpha <= 0 || c.Filter.SlowAlpha > 1 {
		errs = append(errs, fmt.Errorf("filter.slow_alpha must be in (0, 1], got %v", c.Filter.SlowAlpha))
	}
	if c.Feed.MaxFeedKg <= 0 {
		errs = append(errs, fmt.Errorf("feed.max_feed_kg must be positive, got %v", c.Feed.MaxFeedKg))
	}
	if c.Feed.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("feed.max_duration must be positive, got %v", c.Feed.MaxDuration))
	}
	if c.Servo.Mode != ServoModeContinuous && c.Servo.Mode != ServoModeGate {
		errs = append(errs, fmt.Errorf("servo.mode must be %q or %q, got %q", ServoModeContinuous, ServoModeGate, c.Servo.Mode))
	}
	if c.Servo.MaxAngle <= c.Servo.MinAngle {
		errs = append(errs, fmt.Errorf("servo angle range is empty: [%d, %d]", c.Servo.MinAngle, c.Servo.MaxAngle))
	}
	if !c.Servo.inRange(c.Servo.OpenAngle) {
		errs = append(errs, fmt.Errorf("servo.open_angle %d is outside [%d, %d]", c.Servo.OpenAngle, c.Servo.MinAngle, c.Servo.MaxAngle))
	}
	if !c.Servo.inRange(c.Servo.CloseAngle) {
		errs = append(errs, fmt.Errorf("servo.close_angle %d is outside [%d, %d]", c.Servo.CloseAngle, c.Servo.MinAngle, c.Servo.MaxAngle))
	}
	if c.Servo.OpenAngle == c.Servo.CloseAngle {
		errs = append(errs, fmt.Errorf("servo.open_angle and servo.close_angle must differ, both are %d", c.Servo.OpenAngle))
	}
	if c.Servo.MaxPulseUs <= c.Servo.MinPulseUs {
		errs = append(errs, fmt.Errorf("servo pulse range is empty: [%d, %d]", c.Servo.MinPulseUs, c.Servo.MaxPulseUs))
	}
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval must be positive, got %v", c.Telemetry.Interval))
	}
	if c.Schedule.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("schedule.check_interval must be positive, got %v", c.Schedule.CheckInterval))
	}
	if c.Loop.Period <= 0 {
		errs = append(errs, fmt.Errorf("loop.period must be positive, got %v", c.Loop.Period))
	}
	if c.MQTT.ConnectTimeout < 0 || c.MQTT.PublishTimeout < 0 {
		errs = append(errs, fmt.Errorf("mqtt timeouts must not be negative, got connect %v publish %v", c.MQTT.ConnectTimeout, c.MQTT.PublishTimeout))
	}
	if c.Calibration.DefaultFactor <= 0 || c.Calibration.DefaultFactor >= c.Calibration.MaxFactor {
		errs = append(errs, fmt.Errorf("calibration.default_factor must be in (0, %v), got %v", c.Calibration.MaxFactor, c.Calibration.DefaultFactor))
	}

	return errors.Join(errs...)
}

// inRange reports whether a logical angle lies in the configured angle range.
func (s ServoConfig) inRange(angle int32) bool {
	return angle >= s.MinAngle && angle <= s.MaxAngle
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.CommandTopic == "" {
		c.MQTT.CommandTopic = def.MQTT.CommandTopic
	}
	if c.MQTT.DataTopic == "" {
		c.MQTT.DataTopic = def.MQTT.DataTopic
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = def.MQTT.ConnectTimeout
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = def.MQTT.PublishTimeout
	}

	if c.Filter.FastAlpha == 0 {
		c.Filter.FastAlpha = def.Filter.FastAlpha
	}
	if c.Filter.SlowAlpha == 0 {
		c.Filter.SlowAlpha = def.Filter.SlowAlpha
	}
	if c.Filter.JumpThresholdKg == 0 {
		c.Filter.JumpThresholdKg = def.Filter.JumpThresholdKg
	}

	if c.Feed.MaxFeedKg == 0 {
		c.Feed.MaxFeedKg = def.Feed.MaxFeedKg
	}
	if c.Feed.MaxDuration == 0 {
		c.Feed.MaxDuration = def.Feed.MaxDuration
	}

	if c.Servo.Mode == "" {
		c.Servo.Mode = def.Servo.Mode
	}
	if c.Servo.MinAngle == 0 && c.Servo.MaxAngle == 0 {
		c.Servo.MinAngle = def.Servo.MinAngle
		c.Servo.MaxAngle = def.Servo.MaxAngle
	}
	if c.Servo.MinPulseUs == 0 && c.Servo.MaxPulseUs == 0 {
		c.Servo.MinPulseUs = def.Servo.MinPulseUs
		c.Servo.MaxPulseUs = def.Servo.MaxPulseUs
	}
	if c.Servo.OpenAngle == 0 && c.Servo.CloseAngle == 0 {
		c.Servo.OpenAngle = def.Servo.OpenAngle
		c.Servo.CloseAngle = def.Servo.CloseAngle
	}

	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = def.Telemetry.Interval
	}
	if c.Telemetry.DetectThresholdKg == 0 {
		c.Telemetry.DetectThresholdKg = def.Telemetry.DetectThresholdKg
	}

	if c.Calibration.DefaultFactor == 0 {
		c.Calibration.DefaultFactor = def.Calibration.DefaultFactor
	}
	if c.Calibration.MaxFactor == 0 {
		c.Calibration.MaxFactor = def.Calibration.MaxFactor
	}

	if c.Alerts.HighTempC == 0 {
		c.Alerts.HighTempC = def.Alerts.HighTempC
	}
	if c.Alerts.Cooldown == 0 {
		c.Alerts.Cooldown = def.Alerts.Cooldown
	}

	if c.Schedule.CheckInterval == 0 {
		c.Schedule.CheckInterval = def.Schedule.CheckInterval
	}

	if c.Loop.Period == 0 {
		c.Loop.Period = def.Loop.Period
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.FlowRateKgPerS == 0 {
		c.Mock.FlowRateKgPerS = def.Mock.FlowRateKgPerS
	}
	if c.Mock.CountsPerKg == 0 {
		c.Mock.CountsPerKg = def.Mock.CountsPerKg
	}
	if c.Mock.TempC == 0 {
		c.Mock.TempC = def.Mock.TempC
	}
}
