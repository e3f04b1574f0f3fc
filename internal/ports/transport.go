package ports

import (
	"context"
	"fmt"
)

// InboundMessage is one user message received from the gateway.
type InboundMessage struct {
	ThreadID string
	Sender   string
	Text     string
}

// Transport is the messaging gateway collaborator. Implementations own
// the wire; the daemon only sees connect/send/receive plus fault
// signals that feed the reconnection state machine.
type Transport interface {
	// Connect establishes the gateway link. Called once at startup and
	// again for every reconnect attempt.
	Connect(ctx context.Context) error

	// Send delivers text to the thread. A *TransportError return means
	// the link is gone, not that the command failed.
	Send(ctx context.Context, threadID, text string) error

	// Inbound streams user messages. The channel stays open across
	// reconnects.
	Inbound() <-chan InboundMessage

	// Faults signals connectivity loss detected outside Send (read
	// loop errors, gateway hangups).
	Faults() <-chan error

	// Fetch returns the gateway's last-known session context for the
	// thread, used by the synchronizer during the syncing state.
	Fetch(ctx context.Context, threadID string) (map[string]any, error)

	Close() error
}

// TransportError wraps a send/receive failure on the gateway link. It
// drives the connection machine to disconnected and is never surfaced
// as a fatal daemon error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
