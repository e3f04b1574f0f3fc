package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// SQLiteRepository implements ports.SessionRepository using GORM. The
// mapping table lives in the same database; Mappings returns its view.
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.SessionRepository = (*SQLiteRepository)(nil)

// gormLogger wraps the tether logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("TETHER_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for concurrent access
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&SessionModel{}, &ThreadMappingModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// NewSQLiteRepositoryForPath creates a new SQLiteRepository for a specific TETHER_HOME path
func NewSQLiteRepositoryForPath(tetherHomePath string) (*SQLiteRepository, error) {
	return NewSQLiteRepository(filepath.Join(tetherHomePath, "state.db"))
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get implements SessionReader.Get
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// List implements SessionReader.List, most-recent-first
func (r *SQLiteRepository) List(ctx context.Context) ([]domain.Session, error) {
	var models []SessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Order("created_at DESC, id ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, len(models))
	for i, m := range models {
		sessions[i] = sessionModelToDomain(m)
	}
	return sessions, nil
}

// FindActiveByThread implements SessionReader.FindActiveByThread
func (r *SQLiteRepository) FindActiveByThread(ctx context.Context, threadID string) (*domain.Session, error) {
	var model SessionModel

	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("thread_id = ? AND status != ?", threadID, string(domain.StatusTerminated)).
			Order("created_at DESC").
			First(&model).Error
	}, 3)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrSessionNotFound)
		}
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// Add implements SessionWriter.Add
func (r *SQLiteRepository) Add(ctx context.Context, session domain.Session) error {
	model, err := domainToSessionModel(session)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}

	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&model).Error; err != nil {
				var sqliteErr sqlite3.Error
				if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
					return fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionExists)
				}
				return fmt.Errorf("failed to create session: %w", err)
			}
			return nil
		})
	}, 3)
}

// UpdateStatus implements SessionWriter.UpdateStatus. The WHERE clause
// carries the expected status so a stale caller loses the race instead
// of clobbering a concurrent transition.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, expectedFrom, to domain.SessionStatus) (*domain.Session, error) {
	var updated domain.Session

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var model SessionModel
			if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
				}
				return err
			}

			result := tx.Model(&SessionModel{}).
				Where("id = ? AND status = ?", id, string(expectedFrom)).
				Updates(map[string]any{
					"status":     string(to),
					"updated_at": time.Now().UTC(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return &domain.StateTransitionError{
					Entity: "session",
					From:   string(expectedFrom),
					To:     string(to),
					Stale:  true,
				}
			}

			if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
				return err
			}
			updated = sessionModelToDomain(model)
			return nil
		})
	}, 3)

	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MergeContext implements SessionWriter.MergeContext. The read, the
// merge function, and the write all happen inside one transaction.
func (r *SQLiteRepository) MergeContext(ctx context.Context, id string, fn func(map[string]any) map[string]any) (*domain.Session, error) {
	var updated domain.Session

	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var model SessionModel
			if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
				}
				return err
			}

			session := sessionModelToDomain(model)
			merged := fn(session.Context)
			blob, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("failed to encode session context: %w", err)
			}

			result := tx.Model(&SessionModel{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"context":    string(blob),
					"updated_at": time.Now().UTC(),
				})
			if result.Error != nil {
				return result.Error
			}

			if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
				return err
			}
			updated = sessionModelToDomain(model)
			return nil
		})
	}, 3)

	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Mappings returns the thread-mapping view sharing this repository's
// database handle.
func (r *SQLiteRepository) Mappings() *SQLiteMappingRepository {
	return &SQLiteMappingRepository{db: r.db}
}

// withRetry retries operations on SQLITE_BUSY with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
