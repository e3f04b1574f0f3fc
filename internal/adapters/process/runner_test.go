package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/ports"
)

// cat echoes stdin to stdout, which makes it a perfect line-protocol
// agent stand-in.
func spawnEchoAgent(t *testing.T) ports.AgentProcess {
	t.Helper()
	runner := NewExecRunner("cat", nil)
	proc, err := runner.Spawn(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { proc.Terminate(time.Second) })
	return proc
}

func TestExecRunner_SpawnFailsForMissingCommand(t *testing.T) {
	runner := NewExecRunner("definitely-not-a-command-7d1a", nil)
	_, err := runner.Spawn(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestExecRunner_RoundTripsEvents(t *testing.T) {
	proc := spawnEchoAgent(t)

	require.NoError(t, proc.WriteLine(`{"type":"tool","tool":"write_file","target":"main.go","reason":"fix"}`))

	select {
	case event := <-proc.Events():
		assert.Equal(t, ports.AgentEventTool, event.Type)
		assert.Equal(t, "write_file", event.Tool)
		assert.Equal(t, "main.go", event.Target)
		assert.Equal(t, "fix", event.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("no event decoded")
	}
}

func TestExecRunner_SkipsMalformedOutput(t *testing.T) {
	proc := spawnEchoAgent(t)

	require.NoError(t, proc.WriteLine("this is not json"))
	require.NoError(t, proc.WriteLine(`{"type":"text","text":"after noise"}`))

	select {
	case event := <-proc.Events():
		// The garbage line was skipped, not surfaced.
		assert.Equal(t, ports.AgentEventText, event.Type)
		assert.Equal(t, "after noise", event.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("no event decoded")
	}
}

func TestExecRunner_TerminateClosesEvents(t *testing.T) {
	proc := spawnEchoAgent(t)

	require.NoError(t, proc.Terminate(2*time.Second))

	select {
	case _, open := <-proc.Events():
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel did not close after terminate")
	}

	assert.Error(t, proc.WriteLine("too late"))
}
