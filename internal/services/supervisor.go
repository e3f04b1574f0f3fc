package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// Messenger delivers user-facing text to a conversation thread. The
// ConnectionManager satisfies it; tests substitute a recorder.
type Messenger interface {
	Send(ctx context.Context, threadID, text string)
}

// Supervisor owns one agent subprocess per active session: spawning,
// forwarding prompts, fanning agent events to the user, and gating
// sensitive tool invocations behind the approval workflow.
type Supervisor struct {
	mu    sync.Mutex
	procs map[string]ports.AgentProcess

	runner    ports.AgentRunner
	approvals *ApprovalService
	sessions  *SessionService
	messenger Messenger
	grace     time.Duration
}

// NewSupervisor creates a new Supervisor. grace is the SIGTERM grace
// period applied when stopping an agent.
func NewSupervisor(
	runner ports.AgentRunner,
	approvals *ApprovalService,
	sessions *SessionService,
	messenger Messenger,
	grace time.Duration,
) *Supervisor {
	return &Supervisor{
		procs:     make(map[string]ports.AgentProcess),
		runner:    runner,
		approvals: approvals,
		sessions:  sessions,
		messenger: messenger,
		grace:     grace,
	}
}

// Start spawns the agent for the session and begins pumping its
// events. At most one process per session.
func (s *Supervisor) Start(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	if _, running := s.procs[session.ID]; running {
		s.mu.Unlock()
		return fmt.Errorf("agent already running for session %s", session.ID)
	}
	s.mu.Unlock()

	proc, err := s.runner.Spawn(ctx, session.ProjectPath)
	if err != nil {
		return fmt.Errorf("failed to spawn agent: %w", err)
	}

	s.mu.Lock()
	s.procs[session.ID] = proc
	s.mu.Unlock()

	logging.Logger.Info("Agent started",
		"session", session.ID,
		"project", session.ProjectPath)

	go s.pumpEvents(ctx, *session, proc)
	return nil
}

// Stop terminates the session's agent, if running. Stopping a session
// without an agent is a no-op.
func (s *Supervisor) Stop(sessionID string) error {
	s.mu.Lock()
	proc, ok := s.procs[sessionID]
	delete(s.procs, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil
	}

	logging.Logger.Info("Stopping agent", "session", sessionID)
	return proc.Terminate(s.grace)
}

// StopAll terminates every supervised agent. Used at daemon shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	procs := make(map[string]ports.AgentProcess, len(s.procs))
	for id, proc := range s.procs {
		procs[id] = proc
	}
	s.procs = make(map[string]ports.AgentProcess)
	s.mu.Unlock()

	for id, proc := range procs {
		if err := proc.Terminate(s.grace); err != nil {
			logging.Logger.Warn("Failed to stop agent", "session", id, "error", err)
		}
	}
}

// Running reports whether the session has a live agent process.
func (s *Supervisor) Running(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[sessionID]
	return ok
}

// WriteLine forwards one line-oriented command to the session's agent.
func (s *Supervisor) WriteLine(sessionID, text string) error {
	s.mu.Lock()
	proc, ok := s.procs[sessionID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no agent running for session %s", sessionID)
	}
	return proc.WriteLine(text)
}

// Prompt forwards user text to the session's agent as a prompt line.
func (s *Supervisor) Prompt(sessionID, text string) error {
	line, err := json.Marshal(agentPrompt{Type: "prompt", Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode prompt: %w", err)
	}
	return s.WriteLine(sessionID, string(line))
}

// agentPrompt is the line carrying user text into the agent.
type agentPrompt struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// pumpEvents forwards agent events in emission order. The loop runs
// one goroutine per agent, so a session's events are never reordered.
func (s *Supervisor) pumpEvents(ctx context.Context, session domain.Session, proc ports.AgentProcess) {
	for event := range proc.Events() {
		switch event.Type {
		case ports.AgentEventTool:
			s.handleTool(ctx, session, proc, event)
		case ports.AgentEventText:
			s.messenger.Send(ctx, session.ThreadID, event.Text)
		case ports.AgentEventProgress:
			if _, err := s.sessions.RecordActivity(ctx, session.ID, event.Text); err != nil {
				logging.Logger.Warn("Failed to record activity",
					"session", session.ID,
					"error", err)
			}
		case ports.AgentEventError:
			s.messenger.Send(ctx, session.ThreadID, fmt.Sprintf("Agent error: %s", event.Text))
		default:
			logging.Logger.Debug("Ignoring unknown agent event",
				"session", session.ID,
				"type", event.Type)
		}
	}

	s.mu.Lock()
	_, stillTracked := s.procs[session.ID]
	delete(s.procs, session.ID)
	s.mu.Unlock()

	// An untracked process was stopped deliberately; a tracked one
	// exiting on its own is worth telling the user about.
	if stillTracked {
		logging.Logger.Info("Agent exited", "session", session.ID)
		s.messenger.Send(ctx, session.ThreadID, "Agent process exited.")
	}
}

// handleTool runs the approval gate for a tool invocation and writes
// the decision back to the agent.
func (s *Supervisor) handleTool(ctx context.Context, session domain.Session, proc ports.AgentProcess, event ports.AgentEvent) {
	if !domain.IsSensitive(event.Tool) {
		s.writeDecision(session.ID, proc, "", true)
		return
	}

	request := s.approvals.Request(domain.ActionDescriptor{
		Tool:   event.Tool,
		Target: event.Target,
		Reason: event.Reason,
	})

	s.messenger.Send(ctx, session.ThreadID, fmt.Sprintf(
		"Approval required: %s %s (%s)\nReply /approve %s or /reject %s",
		event.Tool, event.Target, event.Reason, request.ID, request.ID))

	state, err := s.approvals.Await(ctx, request.ID)
	if err != nil {
		logging.Logger.Warn("Approval wait aborted",
			"session", session.ID,
			"request", request.ID,
			"error", err)
		return
	}

	approved := state == domain.ApprovalApproved
	s.writeDecision(session.ID, proc, request.ID, approved)

	if state == domain.ApprovalTimedOut {
		s.messenger.Send(ctx, session.ThreadID, fmt.Sprintf(
			"Skipped %s %s: approval timed out.", event.Tool, event.Target))
	}
}

// agentDecision is the line written back to the agent after the gate.
type agentDecision struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Approved bool   `json:"approved"`
}

func (s *Supervisor) writeDecision(sessionID string, proc ports.AgentProcess, requestID string, approved bool) {
	line, err := json.Marshal(agentDecision{
		Type:     "decision",
		ID:       requestID,
		Approved: approved,
	})
	if err != nil {
		logging.Logger.Error("Failed to encode decision", "session", sessionID, "error", err)
		return
	}
	if err := proc.WriteLine(string(line)); err != nil {
		logging.Logger.Warn("Failed to write decision to agent",
			"session", sessionID,
			"error", err)
	}
}
