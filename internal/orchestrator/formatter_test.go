package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/internal/core"
)

func TestEstimateTokensGrowsWithContent(t *testing.T) {
	t.Parallel()
	f := newFormatter()

	short := []core.Message{{Role: core.RoleUser, Text: "hi"}}
	long := []core.Message{{Role: core.RoleUser, Text: "this is a much longer message with many more tokens in it"}}

	require.Less(t, f.estimateTokens(short), f.estimateTokens(long))
}

func TestEstimateTokensCountsToolResultBlocks(t *testing.T) {
	t.Parallel()
	f := newFormatter()

	messages := []core.Message{{
		Role: core.RoleTool,
		Blocks: []core.ContentBlock{
			{Kind: core.BlockToolResult, ToolResultText: "some tool output text here"},
		},
	}}
	assert.Greater(t, f.estimateTokens(messages), 0)
}

func TestTrimPreservesSystemPromptAndMostRecent(t *testing.T) {
	t.Parallel()

	messages := []core.Message{
		{Role: core.RoleSystem, Text: "system"},
		{Role: core.RoleUser, Text: "1"},
		{Role: core.RoleAssistant, Text: "2"},
		{Role: core.RoleUser, Text: "3"},
		{Role: core.RoleAssistant, Text: "4"},
	}

	out := trim(messages, 2)

	require.Len(t, out, 3)
	assert.Equal(t, "system", out[0].Text)
	assert.Equal(t, "3", out[1].Text)
	assert.Equal(t, "4", out[2].Text)
}

func TestTrimNoopWhenUnderBudget(t *testing.T) {
	t.Parallel()

	messages := []core.Message{
		{Role: core.RoleSystem, Text: "system"},
		{Role: core.RoleUser, Text: "1"},
	}
	out := trim(messages, 10)
	assert.Equal(t, messages, out)
}

func TestTrimWithoutLeadingSystemMessage(t *testing.T) {
	t.Parallel()

	messages := []core.Message{
		{Role: core.RoleUser, Text: "1"},
		{Role: core.RoleAssistant, Text: "2"},
		{Role: core.RoleUser, Text: "3"},
	}
	out := trim(messages, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].Text)
}
