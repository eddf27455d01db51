package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/agenterrors"
	"agentcore/internal/core"
)

type stubExecutor struct {
	result string
	err    error
}

func (s stubExecutor) Execute(map[string]any) (string, error) { return s.result, s.err }

func TestRegisterRejectsInvalidName(t *testing.T) {
	t.Parallel()
	r := New()
	err := r.Register(core.InvokerDefinition{Name: "bad name!"}, stubExecutor{})
	require.Error(t, err)
	var invalid *ErrInvalidName
	require.ErrorAs(t, err, &invalid)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	t.Parallel()
	r := New()
	def := core.InvokerDefinition{Name: "run_command", Source: core.SourceNative}
	require.NoError(t, r.Register(def, stubExecutor{}))

	err := r.Register(def, stubExecutor{})
	require.Error(t, err)
	var dup *ErrDuplicateName
	require.ErrorAs(t, err, &dup)
}

func TestListIsSortedAndCached(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Register(core.InvokerDefinition{Name: "zeta"}, stubExecutor{}))
	require.NoError(t, r.Register(core.InvokerDefinition{Name: "alpha"}, stubExecutor{}))

	names := r.ToolNames()
	require.Equal(t, []string{"alpha", "zeta"}, names)
	require.False(t, r.defsDirty)
}

func TestListBySourceFilters(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Register(core.InvokerDefinition{Name: "native_tool", Source: core.SourceNative}, stubExecutor{}))
	require.NoError(t, r.Register(core.InvokerDefinition{Name: "mcp_tool", Source: core.SourceMCP}, stubExecutor{}))

	mcpOnly := r.ListBySource(core.SourceMCP)
	require.Len(t, mcpOnly, 1)
	require.Equal(t, "mcp_tool", mcpOnly[0].Name)
}

func TestRegisterAllSkipDuplicatesCountsOnlyNew(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Register(core.InvokerDefinition{Name: "shared"}, stubExecutor{}))

	adapter := NewStaticAdapter(core.SourceNative,
		DiscoveredCapability{Definition: core.InvokerDefinition{Name: "shared"}, Executor: stubExecutor{}},
		DiscoveredCapability{Definition: core.InvokerDefinition{Name: "fresh"}, Executor: stubExecutor{}},
	)

	count, err := RegisterAllSkipDuplicates(r, adapter)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDispatchUnknownToolIsLogicalNotFatal(t *testing.T) {
	t.Parallel()
	r := New()
	d := NewDispatcher(r, false)

	_, err := d.Dispatch(core.ToolCall{Name: "missing"})
	require.Error(t, err)
	require.Equal(t, agenterrors.KindLogical, agenterrors.KindOf(err))
}

func TestDispatchValidatesArgumentsAgainstSchema(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Register(core.InvokerDefinition{
		Name: "needs_path",
		Parameters: map[string]any{
			"type":                 "object",
			"required":             []any{"path"},
			"additionalProperties": true,
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
			},
		},
	}, stubExecutor{result: "ok"}))
	d := NewDispatcher(r, true)

	_, err := d.Dispatch(core.ToolCall{Name: "needs_path", Arguments: map[string]any{}})
	require.Error(t, err)

	result, err := d.Dispatch(core.ToolCall{Name: "needs_path", Arguments: map[string]any{"path": "/tmp"}})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
}
