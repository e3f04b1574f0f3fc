package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// SessionService handles session lifecycle operations. Every status
// change is validated against the session machine before it touches
// storage, and persisted with a compare-and-swap write so concurrent
// commands race safely.
type SessionService struct {
	sessionRepo ports.SessionRepository
}

// NewSessionService creates a new SessionService
func NewSessionService(sessionRepo ports.SessionRepository) *SessionService {
	return &SessionService{sessionRepo: sessionRepo}
}

// Create validates the project path, generates the session id, and
// persists a new session in the created status.
func (s *SessionService) Create(ctx context.Context, projectPath, threadID string) (*domain.Session, error) {
	if threadID == "" {
		return nil, &domain.ValidationError{Field: "thread_id", Reason: "must not be empty"}
	}

	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, &domain.ValidationError{Field: "project_path", Reason: fmt.Sprintf("%s does not exist", projectPath)}
	}
	if !info.IsDir() {
		return nil, &domain.ValidationError{Field: "project_path", Reason: fmt.Sprintf("%s is not a directory", projectPath)}
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:          uuid.New().String(),
		ProjectPath: projectPath,
		ThreadID:    threadID,
		Status:      domain.StatusCreated,
		Context: map[string]any{
			domain.ContextKeyUpdatedAt: now.Format(time.RFC3339),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Add(ctx, session); err != nil {
		logging.Logger.Error("Failed to add session to database", "error", err)
		return nil, err
	}

	logging.Logger.Info("Session created",
		"session", session.ID,
		"thread", threadID,
		"project", projectPath)

	return &session, nil
}

// Transition moves a session from expectedFrom to to. The kernel
// rejects pairs outside the graph before any write; the repository's
// compare-and-swap rejects stale expectations after a concurrent
// change. Same-state transitions for active and paused succeed so
// retries are safe.
func (s *SessionService) Transition(ctx context.Context, id string, expectedFrom, to domain.SessionStatus) (*domain.Session, error) {
	if err := domain.SessionMachine.Check(string(expectedFrom), string(to)); err != nil {
		logging.Logger.Warn("Rejected session transition",
			"session", id,
			"from", expectedFrom,
			"to", to)
		return nil, err
	}

	session, err := s.sessionRepo.UpdateStatus(ctx, id, expectedFrom, to)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("Session transitioned",
		"session", id,
		"from", expectedFrom,
		"to", to)
	return session, nil
}

// Get returns the session by id
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessionRepo.Get(ctx, id)
}

// List returns all sessions, most recent first
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.sessionRepo.List(ctx)
}

// FindActiveByThread returns the live (non-terminated) session bound
// to the thread, if any. Callers use it to enforce the one-live-
// session-per-thread rule before Create.
func (s *SessionService) FindActiveByThread(ctx context.Context, threadID string) (*domain.Session, error) {
	return s.sessionRepo.FindActiveByThread(ctx, threadID)
}

// UpdateContext merges updates into the session context using the
// domain merge rules and stamps the context's updated_at key.
func (s *SessionService) UpdateContext(ctx context.Context, id string, updates map[string]any) (*domain.Session, error) {
	return s.sessionRepo.MergeContext(ctx, id, func(current map[string]any) map[string]any {
		merged := domain.MergeContext(current, updates)
		merged[domain.ContextKeyUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
		return merged
	})
}

// RecordActivity appends one entry to the session's activity log.
func (s *SessionService) RecordActivity(ctx context.Context, id, entry string) (*domain.Session, error) {
	return s.UpdateContext(ctx, id, map[string]any{
		domain.ContextKeyActivity: entry,
	})
}
