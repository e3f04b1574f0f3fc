package process

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"tether/internal/logging"
	"tether/internal/ports"
)

// ExecRunner spawns agent subprocesses with os/exec, speaking
// newline-delimited JSON over stdin/stdout.
type ExecRunner struct {
	command string
	args    []string
}

// Compile-time interface verification
var _ ports.AgentRunner = (*ExecRunner)(nil)

// NewExecRunner creates a runner for the given agent command line.
func NewExecRunner(command string, args []string) *ExecRunner {
	return &ExecRunner{command: command, args: args}
}

// Spawn starts the agent in workdir and begins decoding its event
// stream. The returned process is live until Terminate or exit.
func (r *ExecRunner) Spawn(ctx context.Context, workdir string) (ports.AgentProcess, error) {
	cmd := exec.Command(r.command, r.args...)
	cmd.Dir = workdir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open agent stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open agent stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent %q: %w", r.command, err)
	}

	logging.Logger.Info("Agent process started",
		"command", r.command,
		"pid", cmd.Process.Pid,
		"workdir", workdir)

	proc := &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan ports.AgentEvent, 16),
		done:   make(chan struct{}),
	}

	go proc.decodeEvents(stdout)
	go proc.waitExit()

	return proc, nil
}

// execProcess wraps one running agent subprocess.
type execProcess struct {
	cmd    *exec.Cmd
	events chan ports.AgentEvent
	done   chan struct{}

	mu    sync.Mutex
	stdin io.WriteCloser
}

func (p *execProcess) WriteLine(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin == nil {
		return fmt.Errorf("agent stdin closed")
	}
	if _, err := io.WriteString(p.stdin, text+"\n"); err != nil {
		return fmt.Errorf("failed to write to agent: %w", err)
	}
	return nil
}

func (p *execProcess) Events() <-chan ports.AgentEvent {
	return p.events
}

// Terminate sends SIGTERM, waits out the grace period, then kills.
func (p *execProcess) Terminate(grace time.Duration) error {
	p.mu.Lock()
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	p.mu.Unlock()

	pid := p.cmd.Process.Pid
	if err := unix.Kill(pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return fmt.Errorf("failed to signal agent: %w", err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	logging.Logger.Warn("Agent did not exit in time, killing", "pid", pid)
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill agent: %w", err)
	}
	<-p.done
	return nil
}

// decodeEvents reads stdout line by line, forwarding well-formed
// events and logging anything it cannot parse.
func (p *execProcess) decodeEvents(stdout io.Reader) {
	defer close(p.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event ports.AgentEvent
		if err := json.Unmarshal(line, &event); err != nil {
			logging.Logger.Debug("Skipping malformed agent output", "line", string(line))
			continue
		}
		if event.Type == "" {
			continue
		}
		p.events <- event
	}

	if err := scanner.Err(); err != nil {
		logging.Logger.Warn("Agent output read failed", "error", err)
	}
}

func (p *execProcess) waitExit() {
	err := p.cmd.Wait()
	if err != nil {
		logging.Logger.Debug("Agent exited", "error", err)
	}
	close(p.done)
}
