package domain

import "strings"

// MessageRole identifies the author of a thread message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Title returns the role with its first letter upper-cased ("User", "Assistant")
func (r MessageRole) Title() string {
	if r == "" {
		return ""
	}
	s := string(r)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ThreadMessage is one message of a conversation thread.
// Text holds the last text segment of the message.
type ThreadMessage struct {
	ID   string      `json:"id,omitempty"`
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// SortOrder for listing thread messages
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// RunStatus is the lifecycle state of an agent run
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal reports whether the run will not change state anymore.
// requires_action counts as terminal: no tools are registered, so nothing resolves it.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusRequiresAction:
		return true
	}
	return false
}

// Run is a single synchronous agent invocation against a thread
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError string    `json:"last_error,omitempty"`
}

// Succeeded reports whether the run completed
func (r *Run) Succeeded() bool {
	return r != nil && r.Status == RunStatusCompleted
}

// FailureDetail returns the last error, or a status-derived message when none was reported
func (r *Run) FailureDetail() string {
	if r == nil {
		return "agent run failed"
	}
	if r.LastError != "" {
		return r.LastError
	}
	return "run ended with status " + string(r.Status)
}
