package aokernel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the file representation of the kernel options, in TOML or YAML.
// Zero values keep the defaults.
type Config struct {
	Pools         []PoolConfig `toml:"pools" yaml:"pools"`
	TickPeriod    Duration     `toml:"tick_period" yaml:"tick_period"`
	MaxActive     int          `toml:"max_active" yaml:"max_active"`
	MaxTickRate   int          `toml:"max_tick_rate" yaml:"max_tick_rate"`
	MaxTimeEvents int          `toml:"max_time_events" yaml:"max_time_events"`
	MaxSignal     int          `toml:"max_signal" yaml:"max_signal"`
	Metrics       bool         `toml:"metrics" yaml:"metrics"`
}

// PoolConfig configures one event pool, see [WithEventPool].
type PoolConfig struct {
	BlockSize int `toml:"block_size" yaml:"block_size"`
	Count     int `toml:"count" yaml:"count"`
}

// Duration is a time.Duration written as a string, e.g. "10ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LoadConfig reads a config file, in TOML or YAML depending on its
// extension (.toml, .yaml or .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aokernel: read config: %w", err)
	}
	return ParseConfig(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseConfig decodes and validates a config, in the given format, "toml"
// or "yaml" (also "yml"). Unknown keys are rejected.
func ParseConfig(data []byte, format string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, &ConfigError{Field: "toml", Cause: err}
		}
		if undecoded := md.Undecoded(); len(undecoded) != 0 {
			return nil, &ConfigError{Field: undecoded[0].String(), Cause: fmt.Errorf("unknown key")}
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ConfigError{Field: "yaml", Cause: err}
		}
	default:
		return nil, &ConfigError{Field: "format", Cause: fmt.Errorf("unsupported %q", format)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every set field, by resolving the options it maps to.
func (c *Config) Validate() error {
	_, err := resolveKernelOptions(c.Options())
	return err
}

// Options converts the config to kernel options, for [New].
func (c *Config) Options() []Option {
	var opts []Option
	if c.MaxActive != 0 {
		opts = append(opts, WithMaxActive(c.MaxActive))
	}
	if c.MaxTickRate != 0 {
		opts = append(opts, WithMaxTickRate(c.MaxTickRate))
	}
	if c.MaxTimeEvents != 0 {
		opts = append(opts, WithMaxTimeEvents(c.MaxTimeEvents))
	}
	if c.MaxSignal != 0 {
		opts = append(opts, WithMaxSignal(c.MaxSignal))
	}
	if c.TickPeriod != 0 {
		opts = append(opts, WithTickPeriod(time.Duration(c.TickPeriod)))
	}
	for _, p := range c.Pools {
		opts = append(opts, WithEventPool(p.BlockSize, p.Count))
	}
	if c.Metrics {
		opts = append(opts, WithMetrics(true))
	}
	return opts
}
