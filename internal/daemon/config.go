// Package daemon manages the roadside unit daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roadside-lab/rsu/internal/app/session"
	"github.com/roadside-lab/rsu/internal/domain"
	"github.com/roadside-lab/rsu/internal/infra/codec"
	"github.com/roadside-lab/rsu/internal/infra/transport"
)

// Log sink formats.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkBoth   = "both"
	SinkNone   = "none"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	Transport TransportConfig `toml:"transport"`
	API       APIConfig       `toml:"api"`
	Proximity ProximityConfig `toml:"proximity"`
	Summary   SummaryConfig   `toml:"summary"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Beacon    BeaconConfig    `toml:"beacon"`
}

// NodeConfig identifies this roadside unit.
type NodeConfig struct {
	ID string `toml:"id"`
}

// TransportConfig controls the beacon socket.
type TransportConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	BufferSize int    `toml:"buffer_size"`
	AutoStart  bool   `toml:"auto_start"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ProximityConfig holds the warning thresholds in meters.
type ProximityConfig struct {
	DangerM float64 `toml:"danger_m"`
	WarnM   float64 `toml:"warn_m"`
}

// SummaryConfig controls the periodic summary.
type SummaryConfig struct {
	Interval int `toml:"interval"` // received packets between summaries
}

// LoggingConfig controls the per-session record feeds.
type LoggingConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"` // csv, sqlite, both, none
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// MQTTConfig controls the warning/summary publisher.
type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	QoS      int    `toml:"qos"`
}

// BeaconConfig holds the defaults of the peer-role transmitter.
type BeaconConfig struct {
	PeerID   string `toml:"peer_id"`
	Target   string `toml:"target"`
	Interval string `toml:"interval"`
	Format   string `toml:"format"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	homeDir := rsuHome()
	return Config{
		Node: NodeConfig{
			ID: "rsu-1",
		},
		Transport: TransportConfig{
			Host:       "0.0.0.0",
			Port:       transport.DefaultPort,
			BufferSize: transport.DefaultBufferSize,
			AutoStart:  true,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Proximity: ProximityConfig{
			DangerM: session.DefaultThresholds().DangerM,
			WarnM:   session.DefaultThresholds().WarnM,
		},
		Summary: SummaryConfig{
			Interval: session.DefaultSummaryInterval,
		},
		Logging: LoggingConfig{
			Dir:    filepath.Join(homeDir, "logs"),
			Format: SinkCSV,
		},
		MQTT: MQTTConfig{
			Broker: "127.0.0.1:1883",
			Topic:  "rsu",
		},
		Beacon: BeaconConfig{
			Target:   transport.Addr("127.0.0.1", transport.DefaultPort),
			Interval: "100ms",
			Format:   string(codec.FormatJSON),
		},
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	for name, port := range map[string]int{"transport": c.Transport.Port, "api": c.API.Port} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s port %d: %w", name, port, domain.ErrInvalidPort)
		}
	}
	if c.Summary.Interval <= 0 {
		return fmt.Errorf("summary: %w", domain.ErrInvalidInterval)
	}
	if c.Proximity.DangerM <= 0 || c.Proximity.DangerM > c.Proximity.WarnM {
		return fmt.Errorf("proximity danger_m=%g warn_m=%g: %w",
			c.Proximity.DangerM, c.Proximity.WarnM, domain.ErrInvalidThresholds)
	}
	switch strings.ToLower(c.Logging.Format) {
	case SinkCSV, SinkSQLite, SinkBoth, SinkNone:
	default:
		return fmt.Errorf("logging format %q: %w", c.Logging.Format, domain.ErrUnknownSink)
	}
	if _, err := codec.ParseFormat(c.Beacon.Format); err != nil {
		return fmt.Errorf("beacon: %w", err)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d: must be 0, 1 or 2", c.MQTT.QoS)
	}
	return nil
}

// SessionConfig maps the config onto session parameters.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		Thresholds: session.Thresholds{
			DangerM: c.Proximity.DangerM,
			WarnM:   c.Proximity.WarnM,
		},
		SummaryInterval: c.Summary.Interval,
	}
}

// ListenAddr is the beacon socket address.
func (c Config) ListenAddr() string {
	return transport.Addr(c.Transport.Host, c.Transport.Port)
}

// APIAddr is the HTTP API address.
func (c Config) APIAddr() string {
	return transport.Addr(c.API.Host, c.API.Port)
}

// BeaconInterval parses the transmitter interval, falling back to 100ms.
func (c Config) BeaconInterval() time.Duration {
	return parseDuration(c.Beacon.Interval, 100*time.Millisecond)
}

// LoadConfig reads config from $RSU_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path, falling back to defaults when the
// file does not exist.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $RSU_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(rsuHome(), "config.toml")
}

// rsuHome returns the data directory.
func rsuHome() string {
	if env := os.Getenv("RSU_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rsu")
}

// RSUHome is exported for use by other packages.
func RSUHome() string {
	return rsuHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
