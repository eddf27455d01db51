// Package checkpoint implements the split-file session/checkpoint layout
// and append-only event log of SPEC_FULL §4.2, over an
// internal/storage.Backend. It is grounded on the reference repository's
// internal/domain/agent/react/checkpoint.go (Checkpoint/MessageState/
// ToolCallState/CheckpointStore shape), rebuilt to satisfy the spec's
// split three-file-per-checkpoint layout and crash-safe save ordering
// that the reference implementation's single-file-per-session
// FileCheckpointStore did not provide.
package checkpoint

import "time"

// MessageState is the durable form of one conversation message.
type MessageState struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	ToolCallID  string         `json:"tool_call_id,omitempty"`
	ToolName    string         `json:"tool_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToolCallState is the durable form of one in-flight or completed tool
// call.
type ToolCallState struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Arguments string  `json:"arguments"`
	Status    string  `json:"status"` // pending|succeeded|failed
	Result    *string `json:"result,omitempty"`
}

// WorkflowStep is the session's coarse state, per SPEC_FULL §3.
type WorkflowStep string

const (
	StepAnalyze  WorkflowStep = "analyze"
	StepPlan     WorkflowStep = "plan"
	StepExecute  WorkflowStep = "execute"
	StepReview   WorkflowStep = "review"
	StepComplete WorkflowStep = "complete"
	StepError    WorkflowStep = "error"
	StepPaused   WorkflowStep = "paused"
)

// CheckpointMetadata is the "<NNN>_metadata.json" file: the workflow step,
// iteration, and pointers to the two companion files.
type CheckpointMetadata struct {
	ID               string       `json:"id"`
	WorkflowStep     WorkflowStep `json:"workflow_step"`
	Iteration        int          `json:"iteration"`
	MessageCount     int          `json:"message_count"`
	TokenCount       int          `json:"token_count"`
	CreatedAt        time.Time    `json:"created_at"`
	AgentFile        string       `json:"agent_file"`
	ConversationFile string       `json:"conversation_file"`
}

// AgentState is the "<NNN>_agent.json" file.
type AgentState struct {
	MaxIterations int             `json:"max_iterations"`
	PendingTools  []ToolCallState `json:"pending_tools,omitempty"`
	Mode          string          `json:"mode,omitempty"`
}

// Conversation is the "<NNN>_conversation.json" file.
type Conversation struct {
	Messages []MessageState `json:"messages"`
}

// IndexEntry is one row of checkpoints.json, the authoritative enumeration
// of a session's checkpoints in creation order.
type IndexEntry struct {
	ID           string       `json:"id"`
	WorkflowStep WorkflowStep `json:"workflow_step"`
	Iteration    int          `json:"iteration"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Index is the "checkpoints.json" file.
type Index struct {
	Entries []IndexEntry `json:"entries"`
}

// SessionMetadata is the "session_metadata.json" file.
type SessionMetadata struct {
	SessionID       string       `json:"session_id"`
	ProjectHash     string       `json:"project_hash"`
	TaskDescription string       `json:"task_description"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	WorkflowStep    WorkflowStep `json:"workflow_step"`
	Iteration       int          `json:"iteration"`
	Mode            string       `json:"mode"`
	CheckpointCount int          `json:"checkpoint_count"`
	TotalEvents     int          `json:"total_events"`
	Status          string       `json:"status"`
}
