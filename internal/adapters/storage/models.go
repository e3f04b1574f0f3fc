package storage

import "time"

// SessionModel is the GORM model for the sessions table
type SessionModel struct {
	Context     string    `gorm:"not null;default:'{}'"`
	CreatedAt   time.Time `gorm:"not null;index:idx_sessions_created_at"`
	ID          string    `gorm:"primaryKey"`
	ProjectPath string    `gorm:"not null"`
	Status      string    `gorm:"not null;default:'created';check:status IN ('created','active','paused','terminated')"`
	ThreadID    string    `gorm:"not null;index:idx_sessions_thread"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string { return "sessions" }

// ThreadMappingModel is the GORM model for the thread_mappings table.
// The primary key on thread_id and the unique index on project_path
// together enforce the bijection at the schema level; the repository
// re-checks inside the write transaction to return a typed error.
type ThreadMappingModel struct {
	CreatedAt   time.Time
	ProjectPath string `gorm:"not null;uniqueIndex:idx_mappings_project"`
	ThreadID    string `gorm:"primaryKey"`
	UpdatedAt   time.Time
}

// TableName specifies the table name for GORM
func (ThreadMappingModel) TableName() string { return "thread_mappings" }
