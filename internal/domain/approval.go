package domain

import "time"

// ApprovalState represents the resolution state of an approval request
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
	ApprovalTimedOut ApprovalState = "timed_out"
)

// ApprovalMachine is the transition graph for approval requests.
// Pending is the only non-terminal state. Approved allows the
// idempotent self-transition the kernel grants every state; rejected
// and timed_out reject any later approve call the same way.
var ApprovalMachine = NewMachine("approval",
	[][2]string{
		{string(ApprovalPending), string(ApprovalApproved)},
		{string(ApprovalPending), string(ApprovalRejected)},
		{string(ApprovalPending), string(ApprovalTimedOut)},
	},
	[]string{string(ApprovalApproved), string(ApprovalRejected), string(ApprovalTimedOut)},
)

// ActionDescriptor describes an intercepted agent action awaiting a
// user decision.
type ActionDescriptor struct {
	Tool   string
	Target string
	Reason string
}

// ApprovalRequest tracks one sensitive action from interception to
// resolution. Requests are never reused.
type ApprovalRequest struct {
	ID         string
	Action     ActionDescriptor
	State      ApprovalState
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// Resolved reports whether the request left the pending state.
func (r *ApprovalRequest) Resolved() bool {
	return r.State != ApprovalPending
}

// sensitiveTools is the static classification of agent tools that
// mutate state and therefore require explicit user approval. Read-only
// tools are safe and pass through without a request.
var sensitiveTools = map[string]struct{}{
	"write_file":  {},
	"edit_file":   {},
	"delete_file": {},
	"move_file":   {},
	"run_command": {},
	"git_commit":  {},
	"git_push":    {},
}

// IsSensitive reports whether the named tool requires user approval
// before execution.
func IsSensitive(tool string) bool {
	_, ok := sensitiveTools[tool]
	return ok
}
