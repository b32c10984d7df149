package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/benaclejames/OSC-HSL/osc"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OSCHSL_"

// Config represents the server configuration
type Config struct {
	// Identity advertised first in the roster
	App osc.AppInfo `yaml:"app"`

	// Further apps advertised after App, in order
	Apps []osc.AppInfo `yaml:"apps,omitempty"`

	// Opaque bytes sent after the roster
	AdditionalData string `yaml:"additional_data,omitempty"`

	Bind          string `yaml:"bind"`
	DataPort      int    `yaml:"data_port"`
	HandshakePort int    `yaml:"handshake_port"`
	BufferSize    int    `yaml:"buffer_size"`

	// Status replies per second, 0 for unlimited
	ReplyRate  float64 `yaml:"reply_rate"`
	ReplyBurst int     `yaml:"reply_burst"`

	// Prometheus listen address, empty to disable
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// File that receives every handshake datagram, empty to disable
	Capture string `yaml:"capture,omitempty"`

	Log LogConfig `yaml:"log"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		App: osc.AppInfo{
			ID:           "test",
			FriendlyName: "Test Server",
			Version:      "0.0.1",
		},
		Bind:          "127.0.0.1",
		DataPort:      25565,
		HandshakePort: 9000,
		BufferSize:    osc.DefaultBufferSize,
		ReplyRate:     0,
		ReplyBurst:    1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// it exists), a .env file in the working directory and OSCHSL_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"APP_ID":            &c.App.ID,
		"APP_FRIENDLY_NAME": &c.App.FriendlyName,
		"APP_VERSION":       &c.App.Version,
		"BIND":              &c.Bind,
		"METRICS_ADDR":      &c.MetricsAddr,
		"CAPTURE":           &c.Capture,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FORMAT":        &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DATA_PORT":      &c.DataPort,
		"HANDSHAKE_PORT": &c.HandshakePort,
		"BUFFER_SIZE":    &c.BufferSize,
		"REPLY_BURST":    &c.ReplyBurst,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup(EnvPrefix + "REPLY_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sREPLY_RATE %q: %w", EnvPrefix, v, err)
		}
		c.ReplyRate = f
	}
	return nil
}

// Validate checks ports, sizes and log settings
func (c *Config) Validate() error {
	if c.App.ID == "" {
		return fmt.Errorf("app.id must not be empty")
	}
	for name, port := range map[string]int{"data_port": c.DataPort, "handshake_port": c.HandshakePort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s %d out of range", name, port)
		}
	}
	if c.DataPort != 0 && c.DataPort == c.HandshakePort {
		return fmt.Errorf("data_port and handshake_port must differ")
	}
	if c.BufferSize <= osc.HandshakeHeaderSize || c.BufferSize > 65507 {
		return fmt.Errorf("buffer_size %d out of range", c.BufferSize)
	}
	if c.ReplyRate < 0 {
		return fmt.Errorf("reply_rate must not be negative")
	}
	if c.ReplyRate > 0 && c.ReplyBurst < 1 {
		return fmt.Errorf("reply_burst must be at least 1 when reply_rate is set")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Roster returns the apps advertised after App.
func (c *Config) Roster() []osc.AppInfo {
	return append([]osc.AppInfo(nil), c.Apps...)
}

// NewLogger builds a slog.Logger writing to w according to the log settings.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
