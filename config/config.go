package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/plumemail/plume/consts"
)

// LoggingConfig controls log output, format and level.
type LoggingConfig struct {
	Output string `toml:"output"` // "stdout", "stderr", "syslog" or a file path
	Format string `toml:"format"` // "console" or "json"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// ServerConfig holds the mail service listener configuration.
type ServerConfig struct {
	Addr             string `toml:"addr"`               // listen address, e.g. ":1337"
	Domain           string `toml:"domain"`             // the service's own mail domain
	DataRoot         string `toml:"data_root"`          // root directory for accounts and the lost bin
	AuthFailureDelay string `toml:"auth_failure_delay"` // delay applied after a failed login, e.g. "500ms"
	MaxErrors        int    `toml:"max_errors"`         // protocol errors tolerated before disconnect (0 = default)
	MaxLineLength    int    `toml:"max_line_length"`    // maximum frame size in bytes (0 = default)
}

// HTTPAPIConfig holds the optional observability listener configuration.
type HTTPAPIConfig struct {
	Start bool   `toml:"start"`
	Addr  string `toml:"addr"`
}

// Config is the top-level configuration decoded from TOML.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	HTTPAPI HTTPAPIConfig `toml:"http_api"`
	Logging LoggingConfig `toml:"logging"`
}

// NewDefaultConfig returns the application defaults. Values from the TOML
// file and command-line flags are layered on top.
func NewDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:             fmt.Sprintf(":%d", consts.DefaultPort),
			Domain:           "plume.example",
			DataRoot:         "./data",
			AuthFailureDelay: "500ms",
			MaxErrors:        20,
			MaxLineLength:    1 << 20,
		},
		HTTPAPI: HTTPAPIConfig{
			Start: false,
			Addr:  "localhost:9090",
		},
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
	}
}

// LoadFile decodes the TOML file at path over cfg. A missing file is
// reported via the returned bool so the caller can decide whether that
// is fatal (explicit -config flag) or not (default path).
func LoadFile(path string, cfg *Config) (found bool, err error) {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return false, err
		}
		return true, fmt.Errorf("error parsing configuration file '%s': %w", path, err)
	}
	return true, nil
}

// GetAuthFailureDelay parses the configured auth failure delay.
func (s *ServerConfig) GetAuthFailureDelay() (time.Duration, error) {
	if s.AuthFailureDelay == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(s.AuthFailureDelay)
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.Domain == "" {
		return fmt.Errorf("server.domain must not be empty")
	}
	if strings.Contains(c.Server.Domain, "@") {
		return fmt.Errorf("server.domain must not contain '@': %q", c.Server.Domain)
	}
	if c.Server.DataRoot == "" {
		return fmt.Errorf("server.data_root must not be empty")
	}
	if _, err := c.Server.GetAuthFailureDelay(); err != nil {
		return fmt.Errorf("invalid server.auth_failure_delay: %w", err)
	}
	if c.HTTPAPI.Start && c.HTTPAPI.Addr == "" {
		return fmt.Errorf("http_api.addr must not be empty when http_api.start is true")
	}
	return nil
}
