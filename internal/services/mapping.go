package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// MappingService manages the thread-to-project bijection used to
// route inbound messages to sessions.
type MappingService struct {
	mappingRepo ports.MappingRepository
}

func NewMappingService(mappingRepo ports.MappingRepository) *MappingService {
	return &MappingService{mappingRepo: mappingRepo}
}

// Link binds a thread to a project directory. Both sides must be
// unbound; re-linking requires an explicit Unlink first.
func (s *MappingService) Link(ctx context.Context, threadID, projectPath string) (*domain.ThreadMapping, error) {
	if threadID == "" {
		return nil, &domain.ValidationError{Field: "thread_id", Reason: "cannot be empty"}
	}
	if projectPath == "" {
		return nil, &domain.ValidationError{Field: "project_path", Reason: "cannot be empty"}
	}

	info, err := os.Stat(projectPath)
	if err != nil {
		return nil, &domain.ValidationError{Field: "project_path", Reason: "directory does not exist"}
	}
	if !info.IsDir() {
		return nil, &domain.ValidationError{Field: "project_path", Reason: "not a directory"}
	}

	now := time.Now().UTC()
	mapping := domain.ThreadMapping{
		ThreadID:    threadID,
		ProjectPath: projectPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.mappingRepo.Put(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to link thread: %w", err)
	}

	logging.Logger.Info("Thread linked", "thread", threadID, "project", projectPath)
	return &mapping, nil
}

// Unlink removes the binding for a thread. Unlinking an unbound
// thread succeeds.
func (s *MappingService) Unlink(ctx context.Context, threadID string) error {
	if err := s.mappingRepo.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to unlink thread: %w", err)
	}
	logging.Logger.Info("Thread unlinked", "thread", threadID)
	return nil
}

// Resolve returns the project path bound to a thread.
func (s *MappingService) Resolve(ctx context.Context, threadID string) (*domain.ThreadMapping, error) {
	return s.mappingRepo.GetByThread(ctx, threadID)
}

// List returns all bindings.
func (s *MappingService) List(ctx context.Context) ([]domain.ThreadMapping, error) {
	return s.mappingRepo.List(ctx)
}
