package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/internal/agenterrors"
	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
	"agentcore/internal/orchestrator"
	"agentcore/internal/storage"
)

type scriptedProvider struct {
	responses []core.GenerateResult
	calls     int
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (core.GenerateResult, error) {
	i := p.calls
	p.calls++
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return core.GenerateResult{Content: "task_completed"}, nil
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (<-chan core.StreamChunk, error) {
	return nil, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(call core.ToolCall) (string, error) { return "", nil }

type noopTools struct{}

func (noopTools) List() []core.InvokerDefinition { return nil }

func (noopTools) Find(string) (core.InvokerDefinition, bool) { return core.InvokerDefinition{}, false }

func newTestStore(t *testing.T) checkpoint.Store {
	t.Helper()
	backend, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return checkpoint.NewFileStore(backend)
}

func TestNewSeedsSystemAndUserMessages(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	loop := orchestrator.New(orchestrator.DefaultConfig(), &scriptedProvider{}, noopDispatcher{}, noopTools{}, store, nil)

	sess, err := New("proj", "fix the bug", "you are an agent", loop, store)
	require.NoError(t, err)

	require.Len(t, sess.State().Messages, 2)
	assert.Equal(t, core.RoleSystem, sess.State().Messages[0].Role)
	assert.Equal(t, core.RoleUser, sess.State().Messages[1].Role)
	assert.Equal(t, "fix the bug", sess.State().Messages[1].Text)
}

func TestRunThenResumeRestoresConversationAndStep(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	cfg := orchestrator.DefaultConfig()
	provider := &scriptedProvider{responses: []core.GenerateResult{{Content: "task_completed"}}}
	loop := orchestrator.New(cfg, provider, noopDispatcher{}, noopTools{}, store, nil)

	sess, err := New("proj", "fix the bug", "you are an agent", loop, store)
	require.NoError(t, err)

	result, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StepComplete, result.Step)

	resumed, err := Resume("proj", sess.ID(), loop, store)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StepComplete, resumed.State().Step)
	assert.Equal(t, sess.State().Messages, resumed.State().Messages)
}

// blockingProvider blocks Generate until its context is cancelled, so a
// concurrent Stop() has something to cancel mid-flight.
type blockingProvider struct {
	started chan struct{}
}

func (p *blockingProvider) Generate(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (core.GenerateResult, error) {
	close(p.started)
	<-ctx.Done()
	return core.GenerateResult{}, agenterrors.New(agenterrors.KindCancellation, "cancelled", ctx.Err())
}

func (p *blockingProvider) GenerateStream(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (<-chan core.StreamChunk, error) {
	return nil, nil
}

func TestStopCancelsInFlightRun(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	cfg := orchestrator.DefaultConfig()
	provider := &blockingProvider{started: make(chan struct{})}
	loop := orchestrator.New(cfg, provider, noopDispatcher{}, noopTools{}, store, nil)

	sess, err := New("proj", "fix the bug", "", loop, store)
	require.NoError(t, err)

	type runOutcome struct {
		result *orchestrator.Result
		err    error
	}
	done := make(chan runOutcome, 1)
	go func() {
		r, err := sess.Run(context.Background())
		done <- runOutcome{r, err}
	}()

	<-provider.started
	sess.Stop()

	outcome := <-done
	require.NoError(t, outcome.err)
	require.NotNil(t, outcome.result)
	assert.Equal(t, orchestrator.StepPaused, outcome.result.Step)
}

func TestDeleteRemovesSession(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	loop := orchestrator.New(orchestrator.DefaultConfig(), &scriptedProvider{}, noopDispatcher{}, noopTools{}, store, nil)

	sess, err := New("proj", "fix the bug", "", loop, store)
	require.NoError(t, err)

	require.NoError(t, Delete(store, "proj", sess.ID()))

	_, err = Resume("proj", sess.ID(), loop, store)
	require.Error(t, err)
}

func TestListSessionsReturnsCreated(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	loop := orchestrator.New(orchestrator.DefaultConfig(), &scriptedProvider{}, noopDispatcher{}, noopTools{}, store, nil)

	sess, err := New("proj", "fix the bug", "", loop, store)
	require.NoError(t, err)

	sessions, err := List(store, "proj")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sess.ID(), sessions[0].SessionID)
}
