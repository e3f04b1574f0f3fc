package services

import (
	"context"
	"time"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// RecoveryService repairs sessions left active by an unclean daemon
// shutdown. A session that is still active in storage at startup, by
// definition, belonged to a daemon that crashed: a clean shutdown
// pauses its sessions first. Detection is by stored status, not the OS
// process table.
type RecoveryService struct {
	sessionRepo ports.SessionRepository
}

// NewRecoveryService creates a new RecoveryService
func NewRecoveryService(sessionRepo ports.SessionRepository) *RecoveryService {
	return &RecoveryService{sessionRepo: sessionRepo}
}

// Recover scans for active sessions, forces each to paused, and stamps
// recovered_at into its context without discarding prior context.
// Running it again with no intervening activity finds nothing and is a
// no-op. Returns the sessions it repaired.
func (s *RecoveryService) Recover(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	var recovered []domain.Session
	for _, session := range sessions {
		if session.Status != domain.StatusActive {
			continue
		}

		if _, err := s.sessionRepo.UpdateStatus(ctx, session.ID, domain.StatusActive, domain.StatusPaused); err != nil {
			// A concurrent transition won the race; nothing to repair.
			logging.Logger.Warn("Crash recovery skipped session",
				"session", session.ID,
				"error", err)
			continue
		}

		updated, err := s.sessionRepo.MergeContext(ctx, session.ID, func(current map[string]any) map[string]any {
			merged := domain.MergeContext(current, map[string]any{
				domain.ContextKeyRecoveredAt: time.Now().UTC().Format(time.RFC3339),
			})
			return merged
		})
		if err != nil {
			logging.Logger.Error("Failed to record recovery marker",
				"session", session.ID,
				"error", err)
			continue
		}

		logging.Logger.Info("Recovered crashed session",
			"session", session.ID,
			"thread", session.ThreadID)
		recovered = append(recovered, *updated)
	}

	return recovered, nil
}
