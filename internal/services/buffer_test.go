package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuffer_PreservesFIFOOrder(t *testing.T) {
	buffer := NewMessageBuffer(10)

	buffer.Enqueue(OutboundMessage{ThreadID: "t1", Text: "first"})
	buffer.Enqueue(OutboundMessage{ThreadID: "t1", Text: "second"})
	buffer.Enqueue(OutboundMessage{ThreadID: "t2", Text: "third"})

	drained := buffer.Drain()

	require.Len(t, drained, 3)
	assert.Equal(t, "first", drained[0].Text)
	assert.Equal(t, "second", drained[1].Text)
	assert.Equal(t, "third", drained[2].Text)
}

func TestMessageBuffer_OverflowDropsOldest(t *testing.T) {
	const capacity = 5
	buffer := NewMessageBuffer(capacity)

	for i := 0; i < capacity+3; i++ {
		buffer.Enqueue(OutboundMessage{Text: fmt.Sprintf("msg-%d", i)})
	}

	assert.Equal(t, capacity, buffer.Len())

	drained := buffer.Drain()
	require.Len(t, drained, capacity)

	// msg-0 through msg-2 were evicted, the newest survived in order.
	assert.Equal(t, "msg-3", drained[0].Text)
	assert.Equal(t, "msg-7", drained[capacity-1].Text)
}

func TestMessageBuffer_DrainEmpties(t *testing.T) {
	buffer := NewMessageBuffer(4)
	buffer.Enqueue(OutboundMessage{Text: "queued"})

	require.Len(t, buffer.Drain(), 1)
	assert.Zero(t, buffer.Len())
	assert.Empty(t, buffer.Drain())
}

func TestMessageBuffer_MinimumCapacity(t *testing.T) {
	buffer := NewMessageBuffer(0)

	buffer.Enqueue(OutboundMessage{Text: "a"})
	buffer.Enqueue(OutboundMessage{Text: "b"})

	drained := buffer.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "b", drained[0].Text)
}
