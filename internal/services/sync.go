package services

import (
	"time"

	"tether/internal/domain"
)

// Synchronizer reconciles local and remote session context after a
// reconnect. The conflict rule is wholesale: whichever side carries the
// strictly newer updated_at timestamp wins entirely; there is no
// field-level merge. A side without a comparable timestamp loses, and
// when neither side has one the remote is treated as source of truth.
type Synchronizer struct{}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{}
}

// ContextDiff is the outcome of comparing local and remote context.
type ContextDiff struct {
	// LocalWins is true when the local context is strictly newer.
	LocalWins bool
	// Changes is the remote context to apply when LocalWins is false.
	Changes map[string]any
}

// Diff compares the two contexts and decides the winner.
func (s *Synchronizer) Diff(local, remote map[string]any) ContextDiff {
	localTime, localOK := contextTimestamp(local)
	remoteTime, remoteOK := contextTimestamp(remote)

	// Local wins only when both sides carry a timestamp and the local
	// one is strictly newer. Every other case, including a missing
	// timestamp on either side, defers to the remote.
	if localOK && remoteOK && localTime.After(remoteTime) {
		return ContextDiff{LocalWins: true}
	}
	return ContextDiff{Changes: remote}
}

// Merge applies the diff to the local context and returns the merged
// result. The inputs are not mutated.
func (s *Synchronizer) Merge(local map[string]any, diff ContextDiff) map[string]any {
	if diff.LocalWins {
		merged := make(map[string]any, len(local))
		for k, v := range local {
			merged[k] = v
		}
		return merged
	}
	merged := make(map[string]any, len(diff.Changes))
	for k, v := range diff.Changes {
		merged[k] = v
	}
	return merged
}

// contextTimestamp extracts the comparable updated_at timestamp from a
// context map. Accepts time.Time values and RFC3339 strings.
func contextTimestamp(context map[string]any) (time.Time, bool) {
	raw, ok := context[domain.ContextKeyUpdatedAt]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
