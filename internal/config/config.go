// Package config handles jumpgate configuration loading and validation.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// SSH connection defaults
	SSH SSHConfig `yaml:"ssh" mapstructure:"ssh"`

	// Gateways are named gateway hosts that can be referenced on the
	// command line instead of a full user@host:port endpoint.
	Gateways []GatewayConfig `yaml:"gateways" mapstructure:"gateways"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the log format (json or console).
	Format string `yaml:"format" mapstructure:"format"`
}

// SSHConfig contains connection defaults applied to every session.
type SSHConfig struct {
	// ConnectTimeout bounds the TCP dial and SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// ConnectRetries is how often a failed connect is retried
	// (-1 retries forever).
	ConnectRetries int `yaml:"connect_retries" mapstructure:"connect_retries"`

	// RetryInterval is the pause between connect attempts.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`

	// KnownHostsFile overrides ~/.ssh/known_hosts.
	KnownHostsFile string `yaml:"known_hosts_file" mapstructure:"known_hosts_file"`

	// AcceptUnknownHostKeys trusts first-seen host keys for the lifetime
	// of the process.
	AcceptUnknownHostKeys bool `yaml:"accept_unknown_host_keys" mapstructure:"accept_unknown_host_keys"`

	// InsecureIgnoreHostKey disables host key verification entirely.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key" mapstructure:"insecure_ignore_host_key"`
}

// GatewayConfig describes one named gateway host.
type GatewayConfig struct {
	// Name is the alias used on the command line.
	Name string `yaml:"name" mapstructure:"name"`

	// Host is the address to connect to.
	Host string `yaml:"host" mapstructure:"host"`

	// Port defaults to 22.
	Port int `yaml:"port" mapstructure:"port"`

	// User is the login name.
	User string `yaml:"user" mapstructure:"user"`

	// KeyFile is a path to a private key for this gateway.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		SSH: SSHConfig{
			ConnectTimeout:        10 * time.Second,
			ConnectRetries:        0,
			RetryInterval:         10 * time.Second,
			AcceptUnknownHostKeys: true,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.SSH.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative")
	}
	if c.SSH.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must not be negative")
	}

	seen := make(map[string]bool, len(c.Gateways))
	for i := range c.Gateways {
		gw := &c.Gateways[i]
		if gw.Name == "" {
			return fmt.Errorf("gateway %d: name is required", i)
		}
		if gw.Host == "" {
			return fmt.Errorf("gateway %q: host is required", gw.Name)
		}
		if seen[gw.Name] {
			return fmt.Errorf("gateway %q: duplicate name", gw.Name)
		}
		seen[gw.Name] = true
		if gw.Port == 0 {
			gw.Port = 22
		}
	}

	return nil
}

// Gateway looks up a named gateway.
func (c *Config) Gateway(name string) (GatewayConfig, bool) {
	for _, gw := range c.Gateways {
		if gw.Name == name {
			return gw, true
		}
	}
	return GatewayConfig{}, false
}
