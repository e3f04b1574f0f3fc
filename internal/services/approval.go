package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"tether/internal/clock"
	"tether/internal/domain"
	"tether/internal/logging"
)

// ApprovalService gates sensitive agent actions behind an explicit user
// decision. Requests live in memory only; the store is a map guarded by
// a mutex, and the action-execution flow blocks on Await until the user
// resolves the request or the periodic timeout sweep does.
type ApprovalService struct {
	mu       sync.Mutex
	requests map[string]*approvalEntry

	clk     clock.Clock
	timeout time.Duration
}

// approvalEntry pairs a request with the channel its waiter blocks on.
type approvalEntry struct {
	request domain.ApprovalRequest
	done    chan struct{}
}

// NewApprovalService creates a new ApprovalService. timeout is how long
// a request may stay pending before CheckTimeouts resolves it.
func NewApprovalService(clk clock.Clock, timeout time.Duration) *ApprovalService {
	return &ApprovalService{
		requests: make(map[string]*approvalEntry),
		clk:      clk,
		timeout:  timeout,
	}
}

// Request creates a pending approval for the intercepted action.
func (s *ApprovalService) Request(action domain.ActionDescriptor) *domain.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	request := domain.ApprovalRequest{
		ID:        ulid.Make().String(),
		Action:    action,
		State:     domain.ApprovalPending,
		CreatedAt: s.clk.Now().UTC(),
	}
	s.requests[request.ID] = &approvalEntry{
		request: request,
		done:    make(chan struct{}),
	}

	logging.Logger.Info("Approval requested",
		"request", request.ID,
		"tool", action.Tool,
		"target", action.Target)

	return &request
}

// Approve resolves the request as approved. Approving an already
// approved request is an idempotent success; approving a rejected or
// timed-out request fails with a StateTransitionError.
func (s *ApprovalService) Approve(id string) (*domain.ApprovalRequest, error) {
	return s.resolve(id, domain.ApprovalApproved)
}

// Reject resolves the request as rejected.
func (s *ApprovalService) Reject(id string) (*domain.ApprovalRequest, error) {
	return s.resolve(id, domain.ApprovalRejected)
}

// ApproveAll approves every request pending at the moment of the call.
// The batch is a snapshot, not a transaction: a request created while
// the batch runs is not included. Returns the approved requests.
func (s *ApprovalService) ApproveAll() []domain.ApprovalRequest {
	s.mu.Lock()
	var pending []string
	for id, entry := range s.requests {
		if entry.request.State == domain.ApprovalPending {
			pending = append(pending, id)
		}
	}
	s.mu.Unlock()

	approved := make([]domain.ApprovalRequest, 0, len(pending))
	for _, id := range pending {
		request, err := s.Approve(id)
		if err != nil {
			// Resolved concurrently between snapshot and approve.
			continue
		}
		approved = append(approved, *request)
	}
	return approved
}

// CheckTimeouts resolves every pending request older than the timeout
// threshold as timed out. Called by the daemon's periodic sweep, not by
// per-request timers. Returns the requests it resolved.
func (s *ApprovalService) CheckTimeouts() []domain.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clk.Now().UTC().Add(-s.timeout)
	var timedOut []domain.ApprovalRequest
	for _, entry := range s.requests {
		if entry.request.State != domain.ApprovalPending {
			continue
		}
		if entry.request.CreatedAt.After(cutoff) {
			continue
		}
		entry.request.State = domain.ApprovalTimedOut
		entry.request.ResolvedAt = s.clk.Now().UTC()
		close(entry.done)
		timedOut = append(timedOut, entry.request)

		logging.Logger.Info("Approval timed out",
			"request", entry.request.ID,
			"tool", entry.request.Action.Tool)
	}
	return timedOut
}

// Await blocks until the request is resolved or ctx is cancelled, and
// returns the final state. This is the one place a single logical
// operation suspends for an unbounded (timeout-capped) duration.
func (s *ApprovalService) Await(ctx context.Context, id string) (domain.ApprovalState, error) {
	s.mu.Lock()
	entry, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("approval %s: %w", id, domain.ErrApprovalNotFound)
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return entry.request.State, nil
}

// Get returns the request by id
func (s *ApprovalService) Get(id string) (*domain.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, domain.ErrApprovalNotFound)
	}
	request := entry.request
	return &request, nil
}

// Pending returns all currently pending requests, oldest first.
func (s *ApprovalService) Pending() []domain.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.ApprovalRequest
	for _, entry := range s.requests {
		if entry.request.State == domain.ApprovalPending {
			pending = append(pending, entry.request)
		}
	}
	// ULIDs sort lexicographically by creation time.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID < pending[j].ID
	})
	return pending
}

// resolve applies the kernel's transition rule and settles the request.
func (s *ApprovalService) resolve(id string, to domain.ApprovalState) (*domain.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", id, domain.ErrApprovalNotFound)
	}

	from := entry.request.State
	if err := domain.ApprovalMachine.Check(string(from), string(to)); err != nil {
		return nil, err
	}
	if from == to {
		// Idempotent re-resolution, already settled.
		request := entry.request
		return &request, nil
	}

	entry.request.State = to
	entry.request.ResolvedAt = s.clk.Now().UTC()
	close(entry.done)

	logging.Logger.Info("Approval resolved",
		"request", id,
		"state", to)

	request := entry.request
	return &request, nil
}
