package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/livecode/internal/infrastructure/config"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/logging"
)

var version = "dev"

type rootOptions struct {
	configFile string
	dev        bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "livecode",
		Short:         "Live HTML/CSS/JS playground",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml or toml), overrides LIVECODE_CONFIG")
	flags.BoolVar(&opts.dev, "dev", false, "development logging")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newExportCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// load resolves configuration, letting flags override the file and
// environment.
func (o *rootOptions) load() (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv(config.FileEnv, o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if o.dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
}
