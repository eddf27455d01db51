// Package session implements the external API of SPEC_FULL §4.8: new,
// resume, step, run, stop, delete, list_sessions. It is grounded on the
// reference repository's react/solve.go (constructing a runtime from
// config + checkpoint store + registry + provider, then driving it to
// completion or pause) and react/factory.go (defaulted construction),
// generalized to this spec's narrower surface: multi-agent team/
// coordinator wiring is dropped per the same Non-goal as the
// orchestration loop.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"agentcore/internal/agenterrors"
	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
	"agentcore/internal/orchestrator"
)

// Session wraps one orchestrator.Loop run over a durable checkpoint store.
// It is not safe for concurrent Step/Run calls on the same Session, mirroring
// the loop's own single-threaded-per-session contract (spec.md §5).
type Session struct {
	projectHash string
	sessionID   string

	store checkpoint.Store
	loop  *orchestrator.Loop
	state *orchestrator.State

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a fresh session: it registers the session record in the
// store, seeds the conversation with systemPrompt and the task as the
// first user turn, and returns a Session ready for Step/Run. Per spec.md
// §4.8's `new(task, config)`.
func New(projectHash, task, systemPrompt string, loop *orchestrator.Loop, store checkpoint.Store) (*Session, error) {
	sessionID := uuid.NewString()
	if _, err := store.CreateSession(projectHash, sessionID, task); err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindResource, err)
	}

	messages := []core.Message{}
	if systemPrompt != "" {
		messages = append(messages, core.Message{Role: core.RoleSystem, Text: systemPrompt})
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Text: task})

	state := &orchestrator.State{
		ProjectHash: projectHash,
		SessionID:   sessionID,
		Messages:    messages,
		Step:        orchestrator.StepAnalyze,
	}

	return &Session{projectHash: projectHash, sessionID: sessionID, store: store, loop: loop, state: state}, nil
}

// Resume restores the latest checkpoint's agent state and conversation for
// an existing session, per spec.md §4.8: "the event log remains
// appended-to; sequence numbers continue monotonically from
// last_sequence+1" — the store's own AppendEvent already reads the log's
// tail sequence on every call, so no sequence bookkeeping is needed here.
func Resume(projectHash, sessionID string, loop *orchestrator.Loop, store checkpoint.Store) (*Session, error) {
	meta, err := store.LoadSession(projectHash, sessionID)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindResource, err)
	}
	if meta == nil {
		return nil, agenterrors.New(agenterrors.KindLogical, fmt.Sprintf("no such session: %s/%s", projectHash, sessionID), nil)
	}

	latest, err := store.LatestCheckpoint(projectHash, sessionID)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindResource, err)
	}

	state := &orchestrator.State{
		ProjectHash: projectHash,
		SessionID:   sessionID,
		Step:        meta.WorkflowStep,
		Iteration:   meta.Iteration,
		Mode:        meta.Mode,
	}

	if latest != nil {
		cpMeta, agent, conv, err := store.LoadCheckpoint(projectHash, sessionID, latest.ID)
		if err != nil {
			return nil, agenterrors.Wrap(agenterrors.KindResource, err)
		}
		state.Step = cpMeta.WorkflowStep
		state.Iteration = cpMeta.Iteration
		state.TokenCount = cpMeta.TokenCount
		state.Mode = agent.Mode
		state.Messages = orchestrator.MessagesFromConversation(*conv)
		state.PendingTools = orchestrator.ToolCallsFromPending(agent.PendingTools)
	}

	return &Session{projectHash: projectHash, sessionID: sessionID, store: store, loop: loop, state: state}, nil
}

// ID is the session's identifier.
func (s *Session) ID() string { return s.sessionID }

// State exposes the live in-memory state for transcript inspection; callers
// must not mutate it directly.
func (s *Session) State() *orchestrator.State { return s.state }

// Step runs exactly one iteration, per spec.md §4.8's `step()`.
func (s *Session) Step(ctx context.Context) (*orchestrator.Result, bool, error) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	return s.loop.Step(ctx, s.state)
}

// Run drives the session to a terminal step, per spec.md §4.8's `run()`.
func (s *Session) Run(ctx context.Context) (*orchestrator.Result, error) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	return s.loop.Run(ctx, s.state)
}

// Stop cancels any in-flight Step/Run call, per spec.md §4.8's `stop()` and
// §5's cancellation semantics: the in-flight tool call is allowed to finish,
// and the loop writes a paused checkpoint before returning.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Delete removes a session and all its checkpoints, per spec.md §4.8's
// `delete(session_id)`.
func Delete(store checkpoint.Store, projectHash, sessionID string) error {
	if err := store.DeleteSession(projectHash, sessionID); err != nil {
		return agenterrors.Wrap(agenterrors.KindResource, err)
	}
	return nil
}

// List enumerates sessions for a project, per spec.md §4.8's
// `list_sessions()`.
func List(store checkpoint.Store, projectHash string) ([]checkpoint.SessionMetadata, error) {
	sessions, err := store.ListSessions(projectHash)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindResource, err)
	}
	return sessions, nil
}
