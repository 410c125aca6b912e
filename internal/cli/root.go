// Package cli implements the jumpgate command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mjell/jumpgate/internal/config"
	"github.com/mjell/jumpgate/internal/logging"
)

// app carries state shared by all commands.
type app struct {
	cfg *config.Config

	cfgFile   string
	logLevel  string
	logFormat string
	askPass   bool
	insecure  bool
}

// Execute runs the CLI.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "jumpgate",
		Short:         "Run commands and HTTP requests on hosts behind SSH gateways",
		Long:          "jumpgate opens SSH sessions through one or more gateway hosts\nand runs commands, transfers files, or issues HTTP requests on the far end.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default ~/.config/jumpgate/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (json or console)")
	flags.BoolVar(&a.askPass, "ask-pass", false, "Prompt for the SSH password")
	flags.BoolVar(&a.insecure, "insecure-host-key", false, "Skip host key verification")

	cmd.AddCommand(
		newRunCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newHTTPCmd(a),
	)

	return cmd
}

// setup loads the configuration and initializes logging. Flags override the
// config file.
func (a *app) setup() error {
	loader := config.NewLoader()
	if a.cfgFile != "" {
		loader.SetConfigFile(a.cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if a.insecure {
		cfg.SSH.InsecureIgnoreHostKey = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	a.cfg = cfg
	return nil
}
