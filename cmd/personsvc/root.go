package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/person_service/internal/config"
	"github.com/R3E-Network/person_service/pkg/logger"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "personsvc",
		Short:        "Person records service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "Path to a .env file loaded before reading the environment")

	cmd.AddCommand(serveCmd(&flags), migrateCmd(&flags), seedCmd(&flags))
	return cmd
}

// load reads the .env file when present, then the configuration.
func (f *globalFlags) load() (config.Config, *logger.Logger, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, nil, fmt.Errorf("load env (%s): %w", f.envFile, err)
		}
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.New(cfg.Logging.Logger()), nil
}
