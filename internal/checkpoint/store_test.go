package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/storage"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return NewFileStore(backend)
}

// Scenario 4 from SPEC_FULL §8: after save_checkpoint("001", ...) on a
// fresh session, the session directory contains exactly the five expected
// files and list_checkpoints returns one entry with id "001".
func TestSaveCheckpointProducesExactSplitFiles(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.CreateSession("proj1", "sess1", "fix the bug")
	require.NoError(t, err)

	id, err := store.NextCheckpointID("proj1", "sess1")
	require.NoError(t, err)
	require.Equal(t, "001", id)

	err = store.SaveCheckpoint("proj1", "sess1", id,
		CheckpointMetadata{WorkflowStep: StepExecute, Iteration: 1},
		AgentState{MaxIterations: 20},
		Conversation{Messages: []MessageState{{Role: "user", Content: "hi"}}},
	)
	require.NoError(t, err)

	dir := sessionDir("proj1", "sess1")
	listing, err := store.backend.List(dir, 0, "")
	require.NoError(t, err)
	require.Equal(t, []string{
		dir + "/001_agent.json",
		dir + "/001_conversation.json",
		dir + "/001_metadata.json",
		dir + "/checkpoints.json",
		dir + "/session_metadata.json",
	}, listing.Items)

	entries, err := store.ListCheckpoints("proj1", "sess1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "001", entries[0].ID)

	meta, agent, conv, err := store.LoadCheckpoint("proj1", "sess1", "001")
	require.NoError(t, err)
	require.Equal(t, StepExecute, meta.WorkflowStep)
	require.Equal(t, 20, agent.MaxIterations)
	require.Len(t, conv.Messages, 1)
}

func TestSaveCheckpointRoundTripIsStructurallyEqual(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("proj1", "sess1", "task")
	require.NoError(t, err)

	want := Conversation{Messages: []MessageState{{Role: "assistant", Content: "done"}}}
	err = store.SaveCheckpoint("proj1", "sess1", "001",
		CheckpointMetadata{WorkflowStep: StepComplete, Iteration: 2}, AgentState{}, want)
	require.NoError(t, err)

	_, _, got, err := store.LoadCheckpoint("proj1", "sess1", "001")
	require.NoError(t, err)
	require.Equal(t, want, *got)
}

func TestNextCheckpointIDIsGapFreePrefix(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("proj1", "sess1", "task")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		id, err := store.NextCheckpointID("proj1", "sess1")
		require.NoError(t, err)
		err = store.SaveCheckpoint("proj1", "sess1", id, CheckpointMetadata{Iteration: i}, AgentState{}, Conversation{})
		require.NoError(t, err)
	}
	entries, err := store.ListCheckpoints("proj1", "sess1")
	require.NoError(t, err)
	require.Equal(t, []string{"001", "002", "003"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestDeleteCheckpointRemovesAllThreeFiles(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("proj1", "sess1", "task")
	require.NoError(t, err)
	require.NoError(t, store.SaveCheckpoint("proj1", "sess1", "001", CheckpointMetadata{}, AgentState{}, Conversation{}))

	require.NoError(t, store.DeleteCheckpoint("proj1", "sess1", "001"))

	entries, err := store.ListCheckpoints("proj1", "sess1")
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = store.LoadCheckpointMetadata("proj1", "sess1", "001")
	require.Error(t, err)
}

// Scenario 5 from SPEC_FULL §8: appending five events with sequences 1..5
// and reading with read_filtered(limit=2, offset=1) returns events 2 and 3.
func TestReadEventsFilteredWindow(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("proj1", "sess1", "task")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.AppendEvent("proj1", "sess1", EventMessage, map[string]any{"i": i})
		require.NoError(t, err)
	}

	window, err := store.ReadEventsFiltered("proj1", "sess1", 2, 1)
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.Equal(t, 2, window[0].Sequence)
	require.Equal(t, 3, window[1].Sequence)
}

func TestAppendEventsAreDenseAndOrdered(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("proj1", "sess1", "task")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		ev, err := store.AppendEvent("proj1", "sess1", EventToolCall, nil)
		require.NoError(t, err)
		require.Equal(t, i+1, ev.Sequence)
	}

	last, err := store.LastSequence("proj1", "sess1")
	require.NoError(t, err)
	require.Equal(t, 4, last)
}

func TestEventsLogToleratesBlankLines(t *testing.T) {
	t.Parallel()
	backend, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := NewFileStore(backend)
	_, err = store.CreateSession("p", "s", "t")
	require.NoError(t, err)

	require.NoError(t, backend.AppendLine(store.eventsKey("p", "s"), []byte(`{"sequence":1,"kind":"message"}`)))
	require.NoError(t, backend.AppendLine(store.eventsKey("p", "s"), []byte("")))
	require.NoError(t, backend.AppendLine(store.eventsKey("p", "s"), []byte(`{"sequence":2,"kind":"message"}`)))

	events, err := store.ReadEvents("p", "s")
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestForEveryToolResultThereIsAPriorToolCall(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.CreateSession("p", "s", "t")
	require.NoError(t, err)

	_, err = store.AppendEvent("p", "s", EventToolCall, map[string]string{"call_id": "call_1"})
	require.NoError(t, err)
	_, err = store.AppendEvent("p", "s", EventToolResult, map[string]string{"call_id": "call_1"})
	require.NoError(t, err)

	events, err := store.ReadEvents("p", "s")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, EventToolCall, events[0].Kind)
	require.Equal(t, EventToolResult, events[1].Kind)
}
