package cmd

import (
	adaptergateway "tether/internal/adapters/gateway"
	adapterprocess "tether/internal/adapters/process"
	adapterstorage "tether/internal/adapters/storage"

	"tether/internal/clock"
	"tether/internal/config"
	"tether/internal/daemon"
	"tether/internal/ports"
)

// Container holds all dependencies for the application
type Container struct {
	Daemon            *daemon.Daemon
	SessionRepository ports.SessionRepository
	MappingRepository ports.MappingRepository

	// Internal - for cleanup only
	repo *adapterstorage.SQLiteRepository
}

// NewContainer creates a new Container with all dependencies wired
func NewContainer(settings *config.Settings) (*Container, error) {
	repo, err := adapterstorage.NewSQLiteRepository(config.GetDBPath())
	if err != nil {
		return nil, err
	}

	transport := adaptergateway.NewClient(settings.EffectiveGatewayAddr())
	runner := adapterprocess.NewExecRunner(settings.EffectiveAgentCommand(), settings.AgentArgs)

	d := daemon.New(settings, repo, repo.Mappings(), transport, runner, clock.Real())

	return &Container{
		Daemon:            d,
		SessionRepository: repo,
		MappingRepository: repo.Mappings(),
		repo:              repo,
	}, nil
}

// NewReadOnlyContainer opens only the repository, for inspection
// commands that never touch the gateway or spawn agents.
func NewReadOnlyContainer() (*Container, error) {
	repo, err := adapterstorage.NewSQLiteRepository(config.GetDBPath())
	if err != nil {
		return nil, err
	}
	return &Container{
		SessionRepository: repo,
		MappingRepository: repo.Mappings(),
		repo:              repo,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.repo != nil {
		return c.repo.Close()
	}
	return nil
}
