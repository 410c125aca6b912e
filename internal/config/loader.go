package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SSH.KnownHostsFile = expandTilde(cfg.SSH.KnownHostsFile)
	for i := range cfg.Gateways {
		cfg.Gateways[i].KeyFile = expandTilde(cfg.Gateways[i].KeyFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) setupViper(cfg *Config) {
	l.v.SetDefault("logging.level", cfg.Logging.Level)
	l.v.SetDefault("logging.format", cfg.Logging.Format)
	l.v.SetDefault("ssh.connect_timeout", cfg.SSH.ConnectTimeout)
	l.v.SetDefault("ssh.connect_retries", cfg.SSH.ConnectRetries)
	l.v.SetDefault("ssh.retry_interval", cfg.SSH.RetryInterval)
	l.v.SetDefault("ssh.accept_unknown_host_keys", cfg.SSH.AcceptUnknownHostKeys)

	l.v.SetEnvPrefix("JUMPGATE")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		return l.v.ReadInConfig()
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "jumpgate"))
	}
	l.v.AddConfigPath(".")

	err := l.v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
	}
	return err
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
