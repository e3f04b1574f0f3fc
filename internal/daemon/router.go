package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tether/internal/domain"
	"tether/internal/logging"
	"tether/internal/ports"
)

// routeInbound dispatches gateway messages until ctx is cancelled.
// Every command produces a reply on the originating thread.
func (d *Daemon) routeInbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.transport.Inbound():
			d.handleMessage(ctx, msg)
		}
	}
}

func (d *Daemon) handleMessage(ctx context.Context, msg ports.InboundMessage) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	logging.Logger.Debug("Inbound message",
		"thread", msg.ThreadID,
		"sender", msg.Sender)

	if !strings.HasPrefix(text, "/") {
		d.handlePrompt(ctx, msg.ThreadID, text)
		return
	}

	command, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/start":
		d.handleStart(ctx, msg.ThreadID)
	case "/stop":
		d.handleStop(ctx, msg.ThreadID)
	case "/pause":
		d.handlePause(ctx, msg.ThreadID)
	case "/resume":
		d.handleResume(ctx, msg.ThreadID)
	case "/approve":
		d.handleApprove(ctx, msg.ThreadID, arg)
	case "/reject":
		d.handleReject(ctx, msg.ThreadID, arg)
	case "/link":
		d.handleLink(ctx, msg.ThreadID, arg)
	case "/unlink":
		d.handleUnlink(ctx, msg.ThreadID)
	case "/status":
		d.handleStatus(ctx, msg.ThreadID)
	case "/sessions":
		d.handleSessions(ctx, msg.ThreadID)
	default:
		d.reply(ctx, msg.ThreadID, fmt.Sprintf("Unknown command %s", command))
	}
}

func (d *Daemon) reply(ctx context.Context, threadID, text string) {
	d.conn.Send(ctx, threadID, text)
}

// handlePrompt forwards free text to the thread's active agent.
func (d *Daemon) handlePrompt(ctx context.Context, threadID, text string) {
	session, err := d.sessions.FindActiveByThread(ctx, threadID)
	if err != nil {
		d.reply(ctx, threadID, "No session on this thread. Reply /start to begin.")
		return
	}
	if session.Status != domain.StatusActive {
		d.reply(ctx, threadID, "Session is paused. Reply /resume first.")
		return
	}

	if err := d.supervisor.Prompt(session.ID, text); err != nil {
		logging.Logger.Warn("Failed to forward prompt",
			"session", session.ID,
			"error", err)
		d.reply(ctx, threadID, "Could not reach the agent. Try /stop and /start.")
	}
}

func (d *Daemon) handleStart(ctx context.Context, threadID string) {
	if existing, err := d.sessions.FindActiveByThread(ctx, threadID); err == nil {
		d.reply(ctx, threadID, fmt.Sprintf(
			"Session %s already exists (%s). Use /stop to end it first.",
			existing.ID, existing.Status))
		return
	}

	mapping, err := d.mappings.Resolve(ctx, threadID)
	if err != nil {
		d.reply(ctx, threadID, "This thread is not linked to a project. Reply /link <path> first.")
		return
	}

	session, err := d.sessions.Create(ctx, mapping.ProjectPath, threadID)
	if err != nil {
		d.reply(ctx, threadID, fmt.Sprintf("Could not create session: %v", err))
		return
	}

	session, err = d.sessions.Transition(ctx, session.ID, domain.StatusCreated, domain.StatusActive)
	if err != nil {
		d.reply(ctx, threadID, fmt.Sprintf("Could not activate session: %v", err))
		return
	}

	if err := d.supervisor.Start(ctx, session); err != nil {
		logging.Logger.Error("Failed to start agent", "session", session.ID, "error", err)
		if _, terr := d.sessions.Transition(ctx, session.ID, domain.StatusActive, domain.StatusPaused); terr != nil {
			logging.Logger.Warn("Failed to park session after spawn failure",
				"session", session.ID,
				"error", terr)
		}
		d.reply(ctx, threadID, fmt.Sprintf("Could not start the agent: %v", err))
		return
	}

	d.reply(ctx, threadID, fmt.Sprintf("Session %s started in %s", session.ID, session.ProjectPath))
}

func (d *Daemon) handleStop(ctx context.Context, threadID string) {
	session, err := d.sessions.FindActiveByThread(ctx, threadID)
	if err != nil {
		d.reply(ctx, threadID, "No session on this thread.")
		return
	}

	if err := d.supervisor.Stop(session.ID); err != nil {
		logging.Logger.Warn("Failed to stop agent", "session", session.ID, "error", err)
	}

	if _, err := d.sessions.Transition(ctx, session.ID, session.Status, domain.StatusTerminated); err != nil {
		d.reply(ctx, threadID, fmt.Sprintf("Could not terminate session: %v", err))
		return
	}

	d.reply(ctx, threadID, fmt.Sprintf("Session %s terminated.", session.ID))
}

func (d *Daemon) handlePause(ctx context.Context, threadID string) {
	session, err := d.sessions.FindActiveByThread(ctx, threadID)
	if err != nil {
		d.reply(ctx, threadID, "No session on this thread.")
		return
	}

	if _, err := d.sessions.Transition(ctx, session.ID, domain.StatusActive, domain.StatusPaused); err != nil {
		d.replyTransitionError(ctx, threadID, err)
		return
	}

	if err := d.supervisor.Stop(session.ID); err != nil {
		logging.Logger.Warn("Failed to stop agent on pause", "session", session.ID, "error", err)
	}

	d.reply(ctx, threadID, fmt.Sprintf("Session %s paused.", session.ID))
}

func (d *Daemon) handleResume(ctx context.Context, threadID string) {
	session, err := d.sessions.FindActiveByThread(ctx, threadID)
	if err != nil {
		d.reply(ctx, threadID, "No session on this thread.")
		return
	}

	session, err = d.sessions.Transition(ctx, session.ID, domain.StatusPaused, domain.StatusActive)
	if err != nil {
		d.replyTransitionError(ctx, threadID, err)
		return
	}

	if err := d.supervisor.Start(ctx, session); err != nil {
		logging.Logger.Error("Failed to restart agent", "session", session.ID, "error", err)
		if _, terr := d.sessions.Transition(ctx, session.ID, domain.StatusActive, domain.StatusPaused); terr != nil {
			logging.Logger.Warn("Failed to park session after spawn failure",
				"session", session.ID,
				"error", terr)
		}
		d.reply(ctx, threadID, fmt.Sprintf("Could not restart the agent: %v", err))
		return
	}

	d.reply(ctx, threadID, fmt.Sprintf("Session %s resumed.", session.ID))
}

func (d *Daemon) handleApprove(ctx context.Context, threadID, arg string) {
	if arg == "" {
		d.reply(ctx, threadID, "Usage: /approve <id> or /approve all")
		return
	}

	if arg == "all" {
		approved := d.approvals.ApproveAll()
		d.reply(ctx, threadID, fmt.Sprintf("Approved %d pending request(s).", len(approved)))
		return
	}

	request, err := d.approvals.Approve(arg)
	if err != nil {
		d.replyApprovalError(ctx, threadID, arg, err)
		return
	}
	d.reply(ctx, threadID, fmt.Sprintf("Approved %s %s", request.Action.Tool, request.Action.Target))
}

func (d *Daemon) handleReject(ctx context.Context, threadID, arg string) {
	if arg == "" {
		d.reply(ctx, threadID, "Usage: /reject <id>")
		return
	}

	request, err := d.approvals.Reject(arg)
	if err != nil {
		d.replyApprovalError(ctx, threadID, arg, err)
		return
	}
	d.reply(ctx, threadID, fmt.Sprintf("Rejected %s %s", request.Action.Tool, request.Action.Target))
}

func (d *Daemon) handleLink(ctx context.Context, threadID, path string) {
	if path == "" {
		d.reply(ctx, threadID, "Usage: /link <project path>")
		return
	}

	mapping, err := d.mappings.Link(ctx, threadID, path)
	if err != nil {
		if errors.Is(err, domain.ErrMappingConflict) {
			d.reply(ctx, threadID, "Thread or project is already linked. Use /unlink first.")
			return
		}
		d.reply(ctx, threadID, fmt.Sprintf("Could not link: %v", err))
		return
	}

	d.reply(ctx, threadID, fmt.Sprintf("Linked to %s", mapping.ProjectPath))
}

func (d *Daemon) handleUnlink(ctx context.Context, threadID string) {
	if err := d.mappings.Unlink(ctx, threadID); err != nil {
		d.reply(ctx, threadID, fmt.Sprintf("Could not unlink: %v", err))
		return
	}
	d.reply(ctx, threadID, "Thread unlinked.")
}

func (d *Daemon) handleStatus(ctx context.Context, threadID string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Link: %s", d.conn.State())
	if attempts := d.conn.Attempts(); attempts > 0 {
		fmt.Fprintf(&b, " (attempt %d)", attempts)
	}

	if session, err := d.sessions.FindActiveByThread(ctx, threadID); err == nil {
		fmt.Fprintf(&b, "\nSession %s: %s in %s", session.ID, session.Status, session.ProjectPath)
		if d.supervisor.Running(session.ID) {
			b.WriteString(" (agent running)")
		}
	} else {
		b.WriteString("\nNo session on this thread.")
	}

	if pending := d.approvals.Pending(); len(pending) > 0 {
		fmt.Fprintf(&b, "\nPending approvals: %d", len(pending))
	}

	d.reply(ctx, threadID, b.String())
}

func (d *Daemon) handleSessions(ctx context.Context, threadID string) {
	sessions, err := d.sessions.List(ctx)
	if err != nil {
		d.reply(ctx, threadID, fmt.Sprintf("Could not list sessions: %v", err))
		return
	}
	if len(sessions) == 0 {
		d.reply(ctx, threadID, "No sessions.")
		return
	}

	var b strings.Builder
	for _, session := range sessions {
		fmt.Fprintf(&b, "%s  %s  %s\n", session.ID, session.Status, session.ProjectPath)
	}
	d.reply(ctx, threadID, strings.TrimRight(b.String(), "\n"))
}

func (d *Daemon) replyTransitionError(ctx context.Context, threadID string, err error) {
	var transitionErr *domain.StateTransitionError
	if errors.As(err, &transitionErr) {
		d.reply(ctx, threadID, fmt.Sprintf(
			"Cannot go from %s to %s.", transitionErr.From, transitionErr.To))
		return
	}
	d.reply(ctx, threadID, fmt.Sprintf("Command failed: %v", err))
}

func (d *Daemon) replyApprovalError(ctx context.Context, threadID, id string, err error) {
	if errors.Is(err, domain.ErrApprovalNotFound) {
		d.reply(ctx, threadID, fmt.Sprintf("No approval request %s", id))
		return
	}
	var transitionErr *domain.StateTransitionError
	if errors.As(err, &transitionErr) {
		d.reply(ctx, threadID, fmt.Sprintf("Request %s is already %s.", id, transitionErr.From))
		return
	}
	d.reply(ctx, threadID, fmt.Sprintf("Command failed: %v", err))
}
