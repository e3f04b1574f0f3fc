package services

import (
	"context"
	"sync"

	"tether/internal/clock"
	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// ConnectionManager owns the daemon's gateway link: the reconnection
// state machine, the attempt counter driving backoff, the outbound
// buffer, and the post-reconnect context sync. All of that state lives
// behind this type so tests inject a fresh instance with a fake
// transport and clock.
type ConnectionManager struct {
	mu       sync.Mutex
	state    domain.ConnectionState
	attempts int

	transport    ports.Transport
	sessionRepo  ports.SessionRepository
	synchronizer *Synchronizer
	buffer       *MessageBuffer
	clk          clock.Clock

	// faultWake nudges the run loop when Send detects a dead link.
	faultWake chan struct{}

	// OnStateChange, when set before Run, observes every state change.
	OnStateChange func(domain.ConnectionState)
}

// NewConnectionManager creates a new ConnectionManager. The link
// starts disconnected; Run establishes it.
func NewConnectionManager(
	transport ports.Transport,
	sessionRepo ports.SessionRepository,
	buffer *MessageBuffer,
	clk clock.Clock,
) *ConnectionManager {
	return &ConnectionManager{
		state:        domain.ConnDisconnected,
		transport:    transport,
		sessionRepo:  sessionRepo,
		synchronizer: NewSynchronizer(),
		buffer:       buffer,
		clk:          clk,
		faultWake:    make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (m *ConnectionManager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the current reconnect attempt count.
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Send delivers text to the thread through the gateway, buffering it
// when the link is down. Transport faults are routed into the
// reconnection machine and never returned as command failures.
func (m *ConnectionManager) Send(ctx context.Context, threadID, text string) {
	if m.State() != domain.ConnConnected {
		m.buffer.Enqueue(OutboundMessage{ThreadID: threadID, Text: text})
		return
	}

	if err := m.transport.Send(ctx, threadID, text); err != nil {
		logging.Logger.Warn("Send failed, buffering message",
			"thread", threadID,
			"error", err)
		m.buffer.Enqueue(OutboundMessage{ThreadID: threadID, Text: text})
		m.NotifyFault(err)
	}
}

// NotifyFault drives connected -> disconnected and wakes the reconnect
// loop. Faults reported while already reconnecting are ignored.
func (m *ConnectionManager) NotifyFault(err error) {
	m.mu.Lock()
	if m.state != domain.ConnConnected {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(domain.ConnDisconnected)
	m.mu.Unlock()

	logging.Logger.Warn("Gateway connection lost", "error", err)

	select {
	case m.faultWake <- struct{}{}:
	default:
	}
}

// Run drives the connection until ctx is cancelled: establish the
// link, then watch for faults and re-establish with backoff. The
// first attempt after startup or a fault waits BackoffDelay(1).
func (m *ConnectionManager) Run(ctx context.Context) error {
	for {
		// Drop any stale wake token; the fault behind it already put
		// the state machine in disconnected and we reconnect now.
		select {
		case <-m.faultWake:
		default:
		}

		if err := m.reconnect(ctx); err != nil {
			return err
		}

		// Connected. Wait for the next fault.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-m.transport.Faults():
			m.NotifyFault(err)
		case <-m.faultWake:
		}
	}
}

// reconnect loops reconnect attempts until one succeeds and the sync
// completes, or ctx is cancelled.
func (m *ConnectionManager) reconnect(ctx context.Context) error {
	for {
		m.mu.Lock()
		m.attempts++
		attempt := m.attempts
		m.setStateLocked(domain.ConnReconnecting)
		m.mu.Unlock()

		delay := domain.BackoffDelay(attempt)
		logging.Logger.Info("Reconnect attempt scheduled",
			"attempt", attempt,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clk.After(delay):
		}

		if err := m.transport.Connect(ctx); err != nil {
			logging.Logger.Warn("Reconnect attempt failed",
				"attempt", attempt,
				"error", err)
			continue
		}

		m.mu.Lock()
		m.setStateLocked(domain.ConnSyncing)
		m.mu.Unlock()

		// Reconciliation is mandatory before new traffic: there is no
		// path from reconnecting straight to connected.
		m.syncSessions(ctx)

		if !m.replayBuffered(ctx) {
			m.mu.Lock()
			m.setStateLocked(domain.ConnDisconnected)
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		m.attempts = 0
		m.setStateLocked(domain.ConnConnected)
		m.mu.Unlock()

		logging.Logger.Info("Gateway connection established")
		return nil
	}
}

// syncSessions reconciles context for every live session against the
// gateway's last-known copy. Sync failures are logged per session and
// never abort the reconnect.
func (m *ConnectionManager) syncSessions(ctx context.Context) {
	sessions, err := m.sessionRepo.List(ctx)
	if err != nil {
		logging.Logger.Error("Sync skipped, failed to list sessions", "error", err)
		return
	}

	for _, session := range sessions {
		if session.Terminated() {
			continue
		}

		remote, err := m.transport.Fetch(ctx, session.ThreadID)
		if err != nil {
			logging.Logger.Warn("Failed to fetch remote context",
				"session", session.ID,
				"thread", session.ThreadID,
				"error", err)
			continue
		}
		if remote == nil {
			continue
		}

		diff := m.synchronizer.Diff(session.Context, remote)
		if diff.LocalWins {
			continue
		}

		if _, err := m.sessionRepo.MergeContext(ctx, session.ID, func(local map[string]any) map[string]any {
			return m.synchronizer.Merge(local, diff)
		}); err != nil {
			logging.Logger.Error("Failed to apply synced context",
				"session", session.ID,
				"error", err)
		}
	}
}

// replayBuffered drains the outbound buffer and sends every entry in
// FIFO order. On a send failure the unsent tail is re-buffered and the
// replay reports failure so the caller backs off again.
func (m *ConnectionManager) replayBuffered(ctx context.Context) bool {
	drained := m.buffer.Drain()
	for i, msg := range drained {
		if err := m.transport.Send(ctx, msg.ThreadID, msg.Text); err != nil {
			logging.Logger.Warn("Replay failed, re-buffering remaining messages",
				"sent", i,
				"remaining", len(drained)-i,
				"error", err)
			for _, rest := range drained[i:] {
				m.buffer.Enqueue(rest)
			}
			return false
		}
	}
	if len(drained) > 0 {
		logging.Logger.Info("Replayed buffered messages", "count", len(drained))
	}
	return true
}

// setStateLocked validates and applies a state change. Invalid
// transitions indicate a bug in the loop, not user input: they are
// logged and refused.
func (m *ConnectionManager) setStateLocked(to domain.ConnectionState) {
	if m.state == to {
		return
	}
	if err := domain.ConnectionMachine.Check(string(m.state), string(to)); err != nil {
		logging.Logger.Error("Refused connection state change",
			"from", m.state,
			"to", to)
		return
	}
	m.state = to
	if m.OnStateChange != nil {
		m.OnStateChange(to)
	}
}
