package services

import (
	"sync"

	"tether/internal/logging"
)

// OutboundMessage is one payload waiting for the gateway link.
type OutboundMessage struct {
	ThreadID string
	Text     string
}

// MessageBuffer is a bounded FIFO of outbound payloads accumulated
// while the gateway link is down. On overflow the oldest entry is
// dropped, never the newest: the most recent message is the one the
// user still cares about. Drain is atomic with respect to Enqueue.
type MessageBuffer struct {
	mu       sync.Mutex
	entries  []OutboundMessage
	capacity int
}

// NewMessageBuffer creates a buffer holding at most capacity entries.
func NewMessageBuffer(capacity int) *MessageBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageBuffer{capacity: capacity}
}

// Enqueue appends the payload, evicting the oldest entry first when
// the buffer is full. Overflow is logged, not escalated.
func (b *MessageBuffer) Enqueue(msg OutboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.capacity {
		dropped := b.entries[0]
		b.entries = b.entries[1:]
		logging.Logger.Warn("Outbound buffer full, dropped oldest message",
			"thread", dropped.ThreadID)
	}
	b.entries = append(b.entries, msg)
}

// Drain returns all buffered entries in insertion order and empties
// the buffer in one step. Used exactly once per successful reconnect.
func (b *MessageBuffer) Drain() []OutboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.entries
	b.entries = nil
	return drained
}

// Len returns the number of buffered entries.
func (b *MessageBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
