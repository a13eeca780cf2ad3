package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/melodify/internal/repositories"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when missing, then opens the configured library so the
// schema is created and migrated.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing library", "path", config.Database.Path)

	store, err := repositories.Open(ctx, repositories.StoreOpts{
		Path:         config.Database.Path,
		MaxOpenConns: config.Database.MaxOpenConns,
		MaxIdleConns: config.Database.MaxIdleConns,
		Logger:       r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize library: %w", err)
	}
	defer store.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}
