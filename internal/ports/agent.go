package ports

import (
	"context"
	"time"
)

// AgentEvent types emitted by the agent subprocess on its event stream.
const (
	AgentEventTool     = "tool"
	AgentEventProgress = "progress"
	AgentEventError    = "error"
	AgentEventText     = "text"
)

// AgentEvent is one structured line read from the agent subprocess.
type AgentEvent struct {
	Type   string `json:"type"`
	Tool   string `json:"tool,omitempty"`
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"text,omitempty"`
}

// AgentProcess is one running agent subprocess attached to a session.
type AgentProcess interface {
	// WriteLine sends one line-oriented command to the agent's stdin.
	WriteLine(text string) error

	// Events streams decoded agent events. The channel closes when the
	// process exits or its output is exhausted.
	Events() <-chan AgentEvent

	// Terminate asks the agent to exit, escalating to a kill after the
	// grace period.
	Terminate(grace time.Duration) error
}

// AgentRunner spawns agent subprocesses.
type AgentRunner interface {
	Spawn(ctx context.Context, workdir string) (AgentProcess, error)
}
