package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/melodify/internal/server"
	"github.com/desertthunder/melodify/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP control API until the context is cancelled. When log.file is set, logs
// also go to that rotated file.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.config.Log.File != "" {
		fileLogger, closer, err := shared.NewFileLogger(r.config.Log)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer closer.Close()
		r.logger = fileLogger
	}

	engine, err := r.player(ctx)
	if err != nil {
		return err
	}
	store, err := r.library(ctx)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := server.New(server.ServerOpts{
		Addr:    addr,
		Player:  engine,
		Library: store,
		Logger:  r.logger,
	})

	r.writePlain("Serving on http://%s (Ctrl+C to stop)\n", addr)
	return srv.Run(ctx)
}
