package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tether/internal/domain"
	"tether/internal/ports"
)

// SQLiteMappingRepository implements ports.MappingRepository over the
// thread_mappings table.
type SQLiteMappingRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.MappingRepository = (*SQLiteMappingRepository)(nil)

// Put implements MappingRepository.Put with the bijection check inside
// the write transaction. Re-linking a thread to the project it already
// maps to is accepted as a no-op update.
func (r *SQLiteMappingRepository) Put(ctx context.Context, mapping domain.ThreadMapping) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var byThread ThreadMappingModel
			err := tx.Where("thread_id = ?", mapping.ThreadID).First(&byThread).Error
			if err == nil && byThread.ProjectPath != mapping.ProjectPath {
				return fmt.Errorf("thread %s already mapped to %s: %w",
					mapping.ThreadID, byThread.ProjectPath, domain.ErrMappingConflict)
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			var byProject ThreadMappingModel
			err = tx.Where("project_path = ?", mapping.ProjectPath).First(&byProject).Error
			if err == nil && byProject.ThreadID != mapping.ThreadID {
				return fmt.Errorf("project %s already mapped to thread %s: %w",
					mapping.ProjectPath, byProject.ThreadID, domain.ErrMappingConflict)
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			return tx.Save(&ThreadMappingModel{
				ProjectPath: mapping.ProjectPath,
				ThreadID:    mapping.ThreadID,
			}).Error
		})
	}, 3)
}

// GetByThread implements MappingRepository.GetByThread
func (r *SQLiteMappingRepository) GetByThread(ctx context.Context, threadID string) (*domain.ThreadMapping, error) {
	var model ThreadMappingModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrMappingNotFound)
		}
		return nil, err
	}

	mapping := mappingModelToDomain(model)
	return &mapping, nil
}

// GetByProject implements MappingRepository.GetByProject
func (r *SQLiteMappingRepository) GetByProject(ctx context.Context, projectPath string) (*domain.ThreadMapping, error) {
	var model ThreadMappingModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("project_path = ?", projectPath).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", projectPath, domain.ErrMappingNotFound)
		}
		return nil, err
	}

	mapping := mappingModelToDomain(model)
	return &mapping, nil
}

// Delete implements MappingRepository.Delete. Idempotent: deleting an
// absent mapping succeeds.
func (r *SQLiteMappingRepository) Delete(ctx context.Context, threadID string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("thread_id = ?", threadID).
			Delete(&ThreadMappingModel{}).Error
	}, 3)
}

// List implements MappingRepository.List
func (r *SQLiteMappingRepository) List(ctx context.Context) ([]domain.ThreadMapping, error) {
	var models []ThreadMappingModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Order("thread_id ASC").Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	mappings := make([]domain.ThreadMapping, len(models))
	for i, m := range models {
		mappings[i] = mappingModelToDomain(m)
	}
	return mappings, nil
}
