package daemon

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tether/internal/clock"
	"tether/internal/config"
	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
	"tether/internal/services"
)

// Daemon wires the session, approval, mapping and connection services
// together and drives them until shutdown.
type Daemon struct {
	settings *config.Settings
	clk      clock.Clock

	transport  ports.Transport
	sessions   *services.SessionService
	mappings   *services.MappingService
	approvals  *services.ApprovalService
	recovery   *services.RecoveryService
	supervisor *services.Supervisor
	conn       *services.ConnectionManager
}

// New assembles a daemon from its collaborators. transport and runner
// are ports so tests can substitute in-memory fakes.
func New(
	settings *config.Settings,
	sessionRepo ports.SessionRepository,
	mappingRepo ports.MappingRepository,
	transport ports.Transport,
	runner ports.AgentRunner,
	clk clock.Clock,
) *Daemon {
	buffer := services.NewMessageBuffer(settings.EffectiveBufferCapacity())
	conn := services.NewConnectionManager(transport, sessionRepo, buffer, clk)

	sessions := services.NewSessionService(sessionRepo)
	approvals := services.NewApprovalService(clk, settings.EffectiveApprovalTimeout())
	supervisor := services.NewSupervisor(runner, approvals, sessions, conn,
		settings.EffectiveTerminateGrace())

	return &Daemon{
		settings:   settings,
		clk:        clk,
		transport:  transport,
		sessions:   sessions,
		mappings:   services.NewMappingService(mappingRepo),
		approvals:  approvals,
		recovery:   services.NewRecoveryService(sessionRepo),
		supervisor: supervisor,
		conn:       conn,
	}
}

// Startup runs crash recovery before the daemon accepts any work.
// Sessions left active by the previous run are paused and their
// owners notified once the link comes up.
func (d *Daemon) Startup(ctx context.Context) error {
	recovered, err := d.recovery.Recover(ctx)
	if err != nil {
		return fmt.Errorf("crash recovery failed: %w", err)
	}

	for _, session := range recovered {
		d.conn.Send(ctx, session.ThreadID, fmt.Sprintf(
			"Session %s was paused after a restart. Reply /resume to continue.",
			session.ID))
	}

	logging.Logger.Info("Daemon ready", "recovered_sessions", len(recovered))
	return nil
}

// Run drives the daemon until ctx is cancelled: the gateway link, the
// inbound command router, and the approval timeout sweep. On exit all
// agents are stopped and their sessions paused.
func (d *Daemon) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return d.conn.Run(groupCtx)
	})

	group.Go(func() error {
		return d.routeInbound(groupCtx)
	})

	group.Go(func() error {
		return d.sweepApprovals(groupCtx)
	})

	err := group.Wait()
	d.shutdown()

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// sweepApprovals expires stale pending approvals on a fixed cadence.
func (d *Daemon) sweepApprovals(ctx context.Context) error {
	ticker := d.clk.NewTicker(d.settings.EffectiveApprovalSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, request := range d.approvals.CheckTimeouts() {
				logging.Logger.Info("Approval timed out",
					"request", request.ID,
					"tool", request.Action.Tool)
			}
		}
	}
}

// shutdown stops every agent and parks running sessions so the next
// startup can recover them cleanly.
func (d *Daemon) shutdown() {
	ctx := context.Background()

	d.supervisor.StopAll()

	sessions, err := d.sessions.List(ctx)
	if err != nil {
		logging.Logger.Error("Failed to list sessions during shutdown", "error", err)
	} else {
		for _, session := range sessions {
			if session.Status != domain.StatusActive {
				continue
			}
			if _, err := d.sessions.Transition(ctx, session.ID, domain.StatusActive, domain.StatusPaused); err != nil {
				logging.Logger.Warn("Failed to pause session during shutdown",
					"session", session.ID,
					"error", err)
			}
		}
	}

	if err := d.transport.Close(); err != nil {
		logging.Logger.Warn("Failed to close gateway link", "error", err)
	}

	logging.Logger.Info("Daemon stopped")
}
