package domain

import (
	"time"
)

// SessionStatus represents the lifecycle status of a tether session
type SessionStatus string

const (
	StatusCreated    SessionStatus = "created"
	StatusActive     SessionStatus = "active"
	StatusPaused     SessionStatus = "paused"
	StatusTerminated SessionStatus = "terminated"
)

// SessionMachine is the transition graph for session lifecycle status.
// Created sessions must go through active before they can pause, and
// terminated is a tombstone: nothing leaves it.
var SessionMachine = NewMachine("session",
	[][2]string{
		{string(StatusCreated), string(StatusActive)},
		{string(StatusActive), string(StatusPaused)},
		{string(StatusPaused), string(StatusActive)},
		{string(StatusActive), string(StatusTerminated)},
		{string(StatusPaused), string(StatusTerminated)},
	},
	[]string{string(StatusTerminated)},
)

// ContextKeyUpdatedAt is the context key carrying the last-modified
// timestamp (RFC3339 UTC). The session synchronizer compares it when
// reconciling local and remote context after a reconnect.
const ContextKeyUpdatedAt = "updated_at"

// ContextKeyRecoveredAt marks a session that crash recovery forced from
// active to paused on daemon startup.
const ContextKeyRecoveredAt = "recovered_at"

// ContextKeyActivity is the list-shaped activity log inside the context
// map. Merges append to it instead of replacing it.
const ContextKeyActivity = "activity"

// MaxActivityEntries caps the activity log carried in session context.
const MaxActivityEntries = 50

// Session is a durable record binding a conversation thread to a
// working directory and an agent process lifecycle (domain entity).
type Session struct {
	ID          string
	ProjectPath string
	ThreadID    string
	Status      SessionStatus
	Context     map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminated reports whether the session reached its tombstone status.
func (s *Session) Terminated() bool {
	return s.Status == StatusTerminated
}

// MergeContext merges updates into base and returns the result. The
// rules are shallow: each top-level key in updates replaces the same
// key in base, except the activity log, which appends and keeps only
// the newest MaxActivityEntries entries. Neither input map is mutated.
func MergeContext(base, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		if k == ContextKeyActivity {
			merged[k] = appendActivity(base[k], v)
			continue
		}
		merged[k] = v
	}
	return merged
}

// appendActivity concatenates two list-shaped context values, dropping
// the oldest entries beyond MaxActivityEntries.
func appendActivity(existing, added any) []any {
	var entries []any
	if list, ok := existing.([]any); ok {
		entries = append(entries, list...)
	}
	switch v := added.(type) {
	case []any:
		entries = append(entries, v...)
	case nil:
	default:
		entries = append(entries, v)
	}
	if len(entries) > MaxActivityEntries {
		entries = entries[len(entries)-MaxActivityEntries:]
	}
	return entries
}
