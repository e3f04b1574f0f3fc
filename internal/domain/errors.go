package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrMappingNotFound  = errors.New("thread mapping not found")
	ErrApprovalNotFound = errors.New("approval request not found")
	ErrMappingConflict  = errors.New("thread mapping conflict")
)

// StateTransitionError reports a transition that is not in the allowed
// set, or a compare-and-swap write whose expected state no longer
// matched the stored state (Stale).
type StateTransitionError struct {
	Entity string
	From   string
	To     string
	Stale  bool
}

func (e *StateTransitionError) Error() string {
	if e.Stale {
		return fmt.Sprintf("%s is no longer %s, cannot transition to %s", e.Entity, e.From, e.To)
	}
	return fmt.Sprintf("%s transition %s -> %s is not allowed", e.Entity, e.From, e.To)
}

// ValidationError reports input rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
