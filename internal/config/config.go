package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportBGAPI      = "bgapi"
	TransportPeripheral = "peripheral"
)

// Config holds all node configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"` // "text" or "json"
	Transport   TransportConfig   `yaml:"transport"`
	Pins        PinsConfig        `yaml:"pins"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Advertising AdvertisingConfig `yaml:"advertising"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// TransportConfig selects how the node reaches its BLE stack.
type TransportConfig struct {
	Kind       string `yaml:"kind"` // "bgapi" or "peripheral"
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
	PacketMode bool   `yaml:"packet_mode"`
	Adapter    string `yaml:"adapter"`
}

// PinsConfig names the host GPIOs. Empty names are left unused.
type PinsConfig struct {
	Reset    string `yaml:"reset"`
	Activity string `yaml:"activity"`
	Red      string `yaml:"red"`
	Green    string `yaml:"green"`
	Blue     string `yaml:"blue"`
}

// SensorConfig locates the temperature/humidity sensor.
type SensorConfig struct {
	I2CBus  string `yaml:"i2c_bus"`
	Address uint16 `yaml:"address"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TimeoutsConfig holds the stack command timings.
type TimeoutsConfig struct {
	Setup      time.Duration `yaml:"setup"`
	Telemetry  time.Duration `yaml:"telemetry"`
	ResetPulse time.Duration `yaml:"reset_pulse"`
	BootDelay  time.Duration `yaml:"boot_delay"`
}

// AdvertisingConfig holds advertising parameters in 0.625 ms units.
type AdvertisingConfig struct {
	IntervalMin uint16 `yaml:"interval_min"`
	IntervalMax uint16 `yaml:"interval_max"`
	Channels    uint8  `yaml:"channels"`
}

// MQTTConfig controls the optional telemetry mirror.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	ClientID  string `yaml:"client_id"`
	StationID string `yaml:"station_id"`
}

// Legacy advertising interval limits, 20 ms to 10.24 s.
const (
	minAdvInterval = 0x0020
	maxAdvInterval = 0x4000
)

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "iotegg-node")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Transport: TransportConfig{
			Kind:       TransportBGAPI,
			SerialPort: "/dev/ttyACM0",
			Baud:       38400,
			PacketMode: true,
			Adapter:    "hci0",
		},
		Sensor: SensorConfig{
			Address: 0x76,
		},
		Telemetry: TelemetryConfig{
			Interval: time.Second,
		},
		Timeouts: TimeoutsConfig{
			Setup:      time.Second,
			Telemetry:  20 * time.Millisecond,
			ResetPulse: 50 * time.Millisecond,
			BootDelay:  time.Second,
		},
		Advertising: AdvertisingConfig{
			IntervalMin: 320,
			IntervalMax: 480,
			Channels:    7,
		},
		MQTT: MQTTConfig{
			Broker:   "localhost",
			Port:     1883,
			ClientID: "iotegg-node",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in serial_port is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transport.SerialPort = expandTilde(cfg.Transport.SerialPort)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	switch c.Transport.Kind {
	case TransportBGAPI:
		if c.Transport.SerialPort == "" {
			return fmt.Errorf("transport.serial_port must not be empty for bgapi")
		}
		if c.Transport.Baud <= 0 {
			return fmt.Errorf("transport.baud must be > 0")
		}
	case TransportPeripheral:
	default:
		return fmt.Errorf("transport.kind must be \"bgapi\" or \"peripheral\", got %q", c.Transport.Kind)
	}

	if c.Telemetry.Interval <= 0 {
		return fmt.Errorf("telemetry.interval must be > 0")
	}

	if c.Timeouts.Setup <= 0 {
		return fmt.Errorf("timeouts.setup must be > 0")
	}
	if c.Timeouts.Telemetry <= 0 {
		return fmt.Errorf("timeouts.telemetry must be > 0")
	}
	if c.Timeouts.ResetPulse <= 0 {
		return fmt.Errorf("timeouts.reset_pulse must be > 0")
	}
	if c.Timeouts.BootDelay < 0 {
		return fmt.Errorf("timeouts.boot_delay must not be negative")
	}

	a := c.Advertising
	if a.IntervalMin < minAdvInterval || a.IntervalMax > maxAdvInterval {
		return fmt.Errorf("advertising intervals must be within %d..%d, got %d..%d", minAdvInterval, maxAdvInterval, a.IntervalMin, a.IntervalMax)
	}
	if a.IntervalMin > a.IntervalMax {
		return fmt.Errorf("advertising.interval_min (%d) must not exceed interval_max (%d)", a.IntervalMin, a.IntervalMax)
	}
	if a.Channels == 0 || a.Channels > 7 {
		return fmt.Errorf("advertising.channels must be a 3-bit channel map 1..7, got %d", a.Channels)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker must not be empty when mqtt is enabled")
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt.port must be within 1..65535, got %d", c.MQTT.Port)
		}
		if c.MQTT.StationID == "" {
			return fmt.Errorf("mqtt.station_id must not be empty when mqtt is enabled")
		}
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# iotegg-node configuration
# transport.kind: "bgapi" drives a BLE112 over serial, "peripheral" uses the host controller.
# Pin names are periph.io GPIO names (e.g. GPIO17); leave empty when not wired.

`

// WriteDefault writes the default config to DefaultConfigPath. If a file
// already exists it is left alone and ("", nil) is returned.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
