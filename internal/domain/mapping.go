package domain

import "time"

// ThreadMapping binds a conversation thread to a project directory.
// The association is a strict bijection: one thread maps to exactly one
// project and one project to exactly one thread. Violations are
// rejected at write time by the mapping repository.
type ThreadMapping struct {
	ThreadID    string
	ProjectPath string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
