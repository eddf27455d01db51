package orchestrator

import (
	"encoding/json"
	"time"

	"agentcore/internal/agenterrors"
	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
)

func toMessageState(m core.Message) checkpoint.MessageState {
	content := m.Text
	if content == "" && len(m.Blocks) > 0 {
		if data, err := json.Marshal(m.Blocks); err == nil {
			content = string(data)
		}
	}
	return checkpoint.MessageState{
		Role:       string(m.Role),
		Content:    content,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	}
}

func fromMessageState(ms checkpoint.MessageState) core.Message {
	return core.Message{
		Role:       core.Role(ms.Role),
		Text:       ms.Content,
		ToolCallID: ms.ToolCallID,
		ToolName:   ms.ToolName,
	}
}

func toConversation(messages []core.Message) checkpoint.Conversation {
	conv := checkpoint.Conversation{Messages: make([]checkpoint.MessageState, len(messages))}
	for i, m := range messages {
		conv.Messages[i] = toMessageState(m)
	}
	return conv
}

func fromConversation(conv checkpoint.Conversation) []core.Message {
	messages := make([]core.Message, len(conv.Messages))
	for i, ms := range conv.Messages {
		messages[i] = fromMessageState(ms)
	}
	return messages
}

func toPendingTools(calls []core.ToolCall) []checkpoint.ToolCallState {
	pending := make([]checkpoint.ToolCallState, len(calls))
	for i, c := range calls {
		argsJSON, _ := json.Marshal(c.Arguments)
		pending[i] = checkpoint.ToolCallState{ID: c.ID, Name: c.Name, Arguments: string(argsJSON), Status: "pending"}
	}
	return pending
}

func fromPendingTools(pending []checkpoint.ToolCallState) []core.ToolCall {
	calls := make([]core.ToolCall, len(pending))
	for i, p := range pending {
		var args map[string]any
		_ = json.Unmarshal([]byte(p.Arguments), &args)
		calls[i] = core.ToolCall{ID: p.ID, Name: p.Name, Arguments: args}
	}
	return calls
}

// MessagesFromConversation exposes fromConversation to session resume:
// translating a loaded checkpoint's durable conversation shape back into
// the loop's in-memory core.Message slice.
func MessagesFromConversation(conv checkpoint.Conversation) []core.Message {
	return fromConversation(conv)
}

// ToolCallsFromPending exposes fromPendingTools to session resume: the
// inverse of the pre-dispatch checkpoint save in iteration.go's tool
// dispatch step.
func ToolCallsFromPending(pending []checkpoint.ToolCallState) []core.ToolCall {
	return fromPendingTools(pending)
}

// saveCheckpoint writes a full checkpoint for state's current step and
// iteration. Storage failures during checkpoint are fatal per spec.md §7
// ("storage failures during checkpoint are fatal and propagate") and are
// returned wrapped as agenterrors.KindResource for the caller to surface. A second save within the same iteration (the pre-dispatch save
// followed by the end-of-iteration save) reuses state.checkpointID so it
// overwrites rather than appending a second index entry for the same
// iteration.
func (l *Loop) saveCheckpoint(state *State) error {
	start := time.Now()
	id := state.checkpointID
	if id == "" {
		newID, err := l.store.NextCheckpointID(state.ProjectHash, state.SessionID)
		if err != nil {
			return agenterrors.Wrap(agenterrors.KindResource, err)
		}
		id = newID
	}

	conv := toConversation(state.Messages)
	agent := checkpoint.AgentState{
		MaxIterations: l.cfg.MaxIterations,
		PendingTools:  toPendingTools(state.PendingTools),
		Mode:          state.Mode,
	}
	meta := checkpoint.CheckpointMetadata{
		WorkflowStep: state.Step,
		Iteration:    state.Iteration,
		TokenCount:   state.TokenCount,
	}

	if err := l.store.SaveCheckpoint(state.ProjectHash, state.SessionID, id, meta, agent, conv); err != nil {
		return agenterrors.Wrap(agenterrors.KindResource, err)
	}
	state.checkpointID = id
	l.metrics.checkpointLatency(l.cfg.Backend, time.Since(start).Seconds())
	return nil
}

// maybeCheckpoint saves a checkpoint every CheckpointInterval iterations,
// and unconditionally when force is true (terminal exit, per spec.md §4.7
// step 7).
func (l *Loop) maybeCheckpoint(state *State, force bool) error {
	interval := l.cfg.CheckpointInterval
	if interval <= 0 {
		interval = 1
	}
	if force || state.Iteration%interval == 0 {
		return l.saveCheckpoint(state)
	}
	return nil
}

func (l *Loop) appendEvent(state *State, kind checkpoint.EventKind, payload any) error {
	_, err := l.store.AppendEvent(state.ProjectHash, state.SessionID, kind, payload)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindResource, err)
	}
	return nil
}
