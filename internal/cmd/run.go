package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"golang.org/x/sys/unix"

	"tether/internal/logging"
)

// RunCmd starts the daemon: gateway link, command router, approval
// sweep, and per-session agents.
type RunCmd struct{}

// Run executes the daemon until SIGINT or SIGTERM
func (r *RunCmd) Run(cli *CLI) error {
	container, err := NewContainer(cli.Settings())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	if err := container.Daemon.Startup(ctx); err != nil {
		return err
	}

	logging.Logger.Info("Daemon running")
	return container.Daemon.Run(ctx)
}
