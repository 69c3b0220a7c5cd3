// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/mcdetect/internal/core"
)

// RootKey is the top-level YAML key; env vars carry the matching MCDETECT_ prefix.
const RootKey = "mcdetect"

// Config represents the receiver configuration.
// Maps to the `mcdetect:` root key in YAML.
type Config struct {
	Multicast MulticastConfig `mapstructure:"multicast"`
	Display   DisplayConfig   `mapstructure:"display"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Forward   ForwardConfig   `mapstructure:"forward"`
}

// ─── Multicast ───

// MulticastConfig selects the group to join and the local endpoint to bind.
type MulticastConfig struct {
	Group      netip.Addr `mapstructure:"group"`       // IPv4 multicast group
	Port       int        `mapstructure:"port"`        // UDP port
	Interface  string     `mapstructure:"iface"`       // Local interface IP or name; "" / 0.0.0.0 = default
	Bind       string     `mapstructure:"bind"`        // iface | any | group
	ReadBuffer int        `mapstructure:"read_buffer"` // SO_RCVBUF bytes; 0 = OS default
}

// ─── Display ───

// DisplayConfig controls how decoded records are rendered.
type DisplayConfig struct {
	Format string `mapstructure:"format"` // text | json | yaml
	Hex    bool   `mapstructure:"hex"`    // Dump raw payload in hex
	Quiet  bool   `mapstructure:"quiet"`  // One line per packet
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`       // trace / debug / info / warn / error
	Pattern    string           `mapstructure:"pattern"`     // %time %level %field %msg %caller %func %n
	TimeFormat string           `mapstructure:"time_format"` // Go reference layout
	File       FileOutputConfig `mapstructure:"file"`

	// At most DecodeWarnLimit decode-failure warnings per sender per
	// DecodeWarnWindow; 0 logs every failure.
	DecodeWarnLimit  int           `mapstructure:"decode_warn_limit"`
	DecodeWarnWindow time.Duration `mapstructure:"decode_warn_window"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Forward ───

// ForwardConfig lists optional destinations decoded events are copied to,
// in addition to the operator output.
type ForwardConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka forwarding sink.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"` // none | gzip | snappy | lz4 | zstd
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Hex          bool          `mapstructure:"hex"` // Include the payload hex in each event
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Bind modes for MulticastConfig.Bind.
const (
	BindInterface = "iface"
	BindAny       = "any"
	BindGroup     = "group"
)

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `mcdetect: ...`.
type configRoot struct {
	Mcdetect Config `mapstructure:"mcdetect"`
}

// Key returns the fully qualified viper key for a dotted config path,
// e.g. Key("multicast.port") == "mcdetect.multicast.port".
func Key(path string) string {
	return RootKey + "." + path
}

// NewViper returns a viper instance with defaults and env overrides set up.
// Callers may bind command-line flags to it before calling LoadFrom.
func NewViper() *viper.Viper {
	v := viper.New()
	// Key "mcdetect.log.level" maps to env "MCDETECT_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load loads configuration from an optional file. An empty path means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	return LoadFrom(NewViper(), path)
}

// LoadFrom reads path (if set) into v, unmarshals and validates the result.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Mcdetect

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "mcdetect." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Multicast defaults
	v.SetDefault(Key("multicast.group"), "239.255.10.10")
	v.SetDefault(Key("multicast.port"), 6000)
	v.SetDefault(Key("multicast.iface"), "0.0.0.0")
	v.SetDefault(Key("multicast.bind"), BindInterface)
	v.SetDefault(Key("multicast.read_buffer"), 0)

	// Display defaults
	v.SetDefault(Key("display.format"), "text")
	v.SetDefault(Key("display.hex"), false)
	v.SetDefault(Key("display.quiet"), false)

	// Log defaults
	v.SetDefault(Key("log.level"), "info")
	v.SetDefault(Key("log.pattern"), "%time [%level] %field %msg%n")
	v.SetDefault(Key("log.time_format"), "2006-01-02 15:04:05.000")
	v.SetDefault(Key("log.decode_warn_limit"), 0)
	v.SetDefault(Key("log.decode_warn_window"), "10s")
	v.SetDefault(Key("log.file.enabled"), false)
	v.SetDefault(Key("log.file.path"), "/var/log/mcdetect/mcdetect.log")
	v.SetDefault(Key("log.file.rotation.max_size_mb"), 100)
	v.SetDefault(Key("log.file.rotation.max_age_days"), 30)
	v.SetDefault(Key("log.file.rotation.max_backups"), 5)
	v.SetDefault(Key("log.file.rotation.compress"), true)

	// Metrics defaults
	v.SetDefault(Key("metrics.enabled"), false)
	v.SetDefault(Key("metrics.listen"), ":9091")
	v.SetDefault(Key("metrics.path"), "/metrics")

	v.SetDefault(Key("forward.kafka.enabled"), false)
	v.SetDefault(Key("forward.kafka.brokers"), []string{})
	v.SetDefault(Key("forward.kafka.topic"), "mcdetect.detections")
	v.SetDefault(Key("forward.kafka.batch_size"), 100)
	v.SetDefault(Key("forward.kafka.batch_timeout"), "100ms")
	v.SetDefault(Key("forward.kafka.compression"), "snappy")
	v.SetDefault(Key("forward.kafka.max_attempts"), 3)
	v.SetDefault(Key("forward.kafka.hex"), false)
}

// ValidateAndApplyDefaults validates configuration and normalises free-form values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Multicast ──
	if g := cfg.Multicast.Group; g.IsValid() && !(g.Is4() && g.IsMulticast()) {
		return fmt.Errorf("%w: multicast.group %s is not an IPv4 multicast address", core.ErrConfigInvalid, g)
	}
	if cfg.Multicast.Port < 0 || cfg.Multicast.Port > 65535 {
		return fmt.Errorf("%w: multicast.port %d out of range", core.ErrConfigInvalid, cfg.Multicast.Port)
	}
	cfg.Multicast.Interface = strings.TrimSpace(cfg.Multicast.Interface)
	cfg.Multicast.Bind = strings.ToLower(cfg.Multicast.Bind)
	switch cfg.Multicast.Bind {
	case BindInterface, BindAny, BindGroup:
	case "":
		cfg.Multicast.Bind = BindInterface
	default:
		return fmt.Errorf("%w: multicast.bind %q (must be iface/any/group)", core.ErrConfigInvalid, cfg.Multicast.Bind)
	}
	if cfg.Multicast.ReadBuffer < 0 {
		return fmt.Errorf("%w: multicast.read_buffer must not be negative", core.ErrConfigInvalid)
	}

	// ── Display ──
	cfg.Display.Format = strings.ToLower(cfg.Display.Format)
	switch cfg.Display.Format {
	case "text", "json", "yaml":
	case "":
		cfg.Display.Format = "text"
	default:
		return fmt.Errorf("%w: display.format %q (must be text/json/yaml)", core.ErrConfigInvalid, cfg.Display.Format)
	}

	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log.level %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Log.DecodeWarnLimit < 0 {
		return fmt.Errorf("%w: log.decode_warn_limit must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Log.DecodeWarnWindow <= 0 {
		cfg.Log.DecodeWarnWindow = 10 * time.Second
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if k := cfg.Forward.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("%w: forward.kafka.brokers is required when forward.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if k.Topic == "" {
			return fmt.Errorf("%w: forward.kafka.topic is required when forward.kafka.enabled=true", core.ErrConfigInvalid)
		}
	}

	return nil
}
