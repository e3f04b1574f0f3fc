package ports

import (
	"context"

	"tether/internal/domain"
)

// SessionReader reads session data
type SessionReader interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	// List returns all sessions ordered most-recent-first by creation time.
	List(ctx context.Context) ([]domain.Session, error)
	// FindActiveByThread returns the non-terminated session bound to the
	// thread, or domain.ErrSessionNotFound.
	FindActiveByThread(ctx context.Context, threadID string) (*domain.Session, error)
}

// SessionWriter creates and mutates sessions
type SessionWriter interface {
	Add(ctx context.Context, session domain.Session) error

	// UpdateStatus performs a compare-and-swap status write: the stored
	// status must still equal expectedFrom or the write fails with a
	// stale *domain.StateTransitionError. The transition itself is the
	// caller's responsibility to validate against the kernel first.
	UpdateStatus(ctx context.Context, id string, expectedFrom, to domain.SessionStatus) (*domain.Session, error)

	// MergeContext applies fn to the stored context in a single
	// read-modify-write transaction and persists the result.
	MergeContext(ctx context.Context, id string, fn func(map[string]any) map[string]any) (*domain.Session, error)
}

// SessionRepository is the composite interface
type SessionRepository interface {
	SessionReader
	SessionWriter
}
