package domain

import "time"

// ConnectionState represents the gateway link state of the daemon
type ConnectionState string

const (
	ConnConnected    ConnectionState = "connected"
	ConnDisconnected ConnectionState = "disconnected"
	ConnReconnecting ConnectionState = "reconnecting"
	ConnSyncing      ConnectionState = "syncing"
)

// ConnectionMachine is the transition graph for the reconnection loop.
// There is no edge from reconnecting straight to connected: a
// successful attempt must pass through syncing so session context is
// reconciled before new traffic flows.
var ConnectionMachine = NewMachine("connection",
	[][2]string{
		{string(ConnConnected), string(ConnDisconnected)},
		{string(ConnDisconnected), string(ConnReconnecting)},
		{string(ConnReconnecting), string(ConnDisconnected)},
		{string(ConnReconnecting), string(ConnSyncing)},
		{string(ConnSyncing), string(ConnConnected)},
		{string(ConnSyncing), string(ConnDisconnected)},
	},
	nil,
)

// BackoffCap bounds the delay between reconnect attempts.
const BackoffCap = 60 * time.Second

// BackoffDelay returns the delay before reconnect attempt n (1-based):
// min(2^(n-1), 60) seconds, giving 1, 2, 4, 8, 16, 32, 60, 60, ...
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// 1<<6 already exceeds the cap; avoid shifting past it.
	if attempt > 7 {
		return BackoffCap
	}
	delay := time.Duration(1<<(attempt-1)) * time.Second
	if delay > BackoffCap {
		return BackoffCap
	}
	return delay
}
