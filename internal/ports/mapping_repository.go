package ports

import (
	"context"

	"tether/internal/domain"
)

// MappingRepository stores the thread-to-project bijection. Put rejects
// any write that would map one thread to two projects or one project to
// two threads with domain.ErrMappingConflict; the check happens inside
// the write transaction, never by later reconciliation.
type MappingRepository interface {
	Put(ctx context.Context, mapping domain.ThreadMapping) error
	GetByThread(ctx context.Context, threadID string) (*domain.ThreadMapping, error)
	GetByProject(ctx context.Context, projectPath string) (*domain.ThreadMapping, error)
	// Delete removes the mapping for the thread. Removing an absent
	// mapping is a no-op.
	Delete(ctx context.Context, threadID string) error
	List(ctx context.Context) ([]domain.ThreadMapping, error)
}
