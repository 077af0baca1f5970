package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Export target kinds.
const (
	KindJSONFile = "jsonfile"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindRedis    = "redis"
	KindMQTT     = "mqtt"
)

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = time.Second

	// maxBaseID keeps base_id+2 inside the 11-bit standard CAN id range.
	maxBaseID = 0x7FD
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	Gateway   GatewayConfig   `koanf:"gateway" yaml:"gateway"`
	Ingestion IngestionConfig `koanf:"ingestion" yaml:"ingestion"`
	Export    ExportConfig    `koanf:"export" yaml:"export"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Stream    StreamConfig    `koanf:"stream" yaml:"stream"`
}

type ServerConfig struct {
	Port          int    `koanf:"port" yaml:"port"`
	Host          string `koanf:"host" yaml:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb" yaml:"max_body_size_mb"`
	Mode          string `koanf:"mode" yaml:"mode"` // debug | release
}

type LoggingConfig struct {
	Level     string `koanf:"level" yaml:"level"`   // debug | info | warn | error
	Format    string `koanf:"format" yaml:"format"` // text | json | tint
	AddSource bool   `koanf:"add_source" yaml:"add_source"`
}

// DatabaseConfig configures the optional postgres connection. An empty
// DSN disables postgres entirely.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn" yaml:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns" yaml:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

type GatewayConfig struct {
	Driver       string          `koanf:"driver" yaml:"driver"` // simulator
	Channel      string          `koanf:"channel" yaml:"channel"`
	Baudrate     string          `koanf:"baudrate" yaml:"baudrate"`
	PollInterval string          `koanf:"poll_interval" yaml:"poll_interval"` // parsed and validated on startup
	AutoConnect  bool            `koanf:"auto_connect" yaml:"auto_connect"`
	Simulator    SimulatorConfig `koanf:"simulator" yaml:"simulator"`
}

type SimulatorConfig struct {
	Sensors       int    `koanf:"sensors" yaml:"sensors"`
	FramesPerTick int    `koanf:"frames_per_tick" yaml:"frames_per_tick"`
	NoiseEvery    int    `koanf:"noise_every" yaml:"noise_every"`
	Seed          uint64 `koanf:"seed" yaml:"seed"`
}

type IngestionConfig struct {
	// BaseID is the configured base frame id; sensor frames carry BaseID+2.
	BaseID uint32 `koanf:"base_id" yaml:"base_id"`
}

type ExportConfig struct {
	// JSONDir holds <target>.json files for targets not listed in Targets.
	JSONDir string         `koanf:"json_dir" yaml:"json_dir"`
	Targets []TargetConfig `koanf:"targets" yaml:"targets"`
}

// TargetConfig is one named export target. Which fields apply depends on
// Kind.
type TargetConfig struct {
	Name     string `koanf:"name" yaml:"name"`
	Kind     string `koanf:"kind" yaml:"kind"`
	Path     string `koanf:"path" yaml:"path,omitempty"`
	Addr     string `koanf:"addr" yaml:"addr,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	DB       int    `koanf:"db" yaml:"db,omitempty"`
	Key      string `koanf:"key" yaml:"key,omitempty"`
	Channel  string `koanf:"channel" yaml:"channel,omitempty"`
	MaxLen   int64  `koanf:"max_len" yaml:"max_len,omitempty"`
	Broker   string `koanf:"broker" yaml:"broker,omitempty"`
	ClientID string `koanf:"client_id" yaml:"client_id,omitempty"`
	Topic    string `koanf:"topic" yaml:"topic,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

type StreamConfig struct {
	Interval string `koanf:"interval" yaml:"interval"`
}

// PollIntervalDuration returns the parsed gateway poll interval.
func (c GatewayConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// IntervalDuration returns the parsed websocket push interval.
func (c StreamConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("invalid logging.format %q (must be text, json or tint)", c.Logging.Format)
	}

	if c.Database.DSN != "" {
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	}

	if c.Gateway.Driver != "simulator" {
		return fmt.Errorf("unsupported gateway.driver %q", c.Gateway.Driver)
	}
	interval, err := time.ParseDuration(c.Gateway.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid gateway.poll_interval %q: %w", c.Gateway.PollInterval, err)
	}
	if interval < minPollInterval || interval > maxPollInterval {
		return fmt.Errorf("gateway.poll_interval %s out of range [%s, %s]", interval, minPollInterval, maxPollInterval)
	}
	if c.Gateway.Simulator.Sensors <= 0 || c.Gateway.Simulator.Sensors > 256 {
		return fmt.Errorf("gateway.simulator.sensors must be 1-256")
	}
	if c.Gateway.Simulator.FramesPerTick <= 0 {
		return fmt.Errorf("gateway.simulator.frames_per_tick must be > 0")
	}
	if c.Gateway.Simulator.NoiseEvery < 0 {
		return fmt.Errorf("gateway.simulator.noise_every must be >= 0")
	}

	if c.Ingestion.BaseID > maxBaseID {
		return fmt.Errorf("ingestion.base_id %#x out of range (max %#x)", c.Ingestion.BaseID, maxBaseID)
	}

	if err := c.validateTargets(); err != nil {
		return err
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	streamInterval, err := time.ParseDuration(c.Stream.Interval)
	if err != nil {
		return fmt.Errorf("invalid stream.interval %q: %w", c.Stream.Interval, err)
	}
	if streamInterval <= 0 {
		return fmt.Errorf("stream.interval must be > 0")
	}

	return nil
}

func (c *Config) validateTargets() error {
	if strings.TrimSpace(c.Export.JSONDir) == "" {
		return fmt.Errorf("export.json_dir is required")
	}

	seen := make(map[string]bool, len(c.Export.Targets))
	for i, t := range c.Export.Targets {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("export.targets[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate export target %q", t.Name)
		}
		seen[t.Name] = true

		switch t.Kind {
		case KindJSONFile, KindSQLite:
			if strings.TrimSpace(t.Path) == "" {
				return fmt.Errorf("export target %q: path is required for kind %s", t.Name, t.Kind)
			}
		case KindPostgres:
			if c.Database.DSN == "" {
				return fmt.Errorf("export target %q: kind postgres requires database.dsn", t.Name)
			}
		case KindRedis:
			if strings.TrimSpace(t.Addr) == "" {
				return fmt.Errorf("export target %q: addr is required for kind redis", t.Name)
			}
			if t.MaxLen < 0 {
				return fmt.Errorf("export target %q: max_len must be >= 0", t.Name)
			}
		case KindMQTT:
			if strings.TrimSpace(t.Broker) == "" {
				return fmt.Errorf("export target %q: broker is required for kind mqtt", t.Name)
			}
		default:
			return fmt.Errorf("export target %q: unsupported kind %q", t.Name, t.Kind)
		}
	}
	return nil
}

// Load parses config from defaults, then the optional file, then TPMS_
// environment variables, and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                       8080,
		"server.host":                       "0.0.0.0",
		"server.max_body_size_mb":           1,
		"server.mode":                       "release",
		"logging.level":                     "info",
		"logging.format":                    "text",
		"logging.add_source":                false,
		"database.dsn":                      "",
		"database.max_open_conns":           10,
		"database.max_idle_conns":           5,
		"database.auto_migrate":             true,
		"gateway.driver":                    "simulator",
		"gateway.channel":                   "PCAN_USBBUS1",
		"gateway.baudrate":                  "PCAN_BAUD_500K",
		"gateway.poll_interval":             "75ms",
		"gateway.auto_connect":              false,
		"gateway.simulator.sensors":         32,
		"gateway.simulator.frames_per_tick": 4,
		"gateway.simulator.noise_every":     0,
		"gateway.simulator.seed":            1,
		"ingestion.base_id":                 0x500,
		"export.json_dir":                   "./exports",
		"metrics.enabled":                   true,
		"metrics.path":                      "/metrics",
		"stream.interval":                   "1s",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("TPMS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TPMS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
