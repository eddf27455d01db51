// Package core holds the cross-component data model of SPEC_FULL §3: the
// conversation message shape, capability/invoker definitions, and the
// generate config, all of which the registry, provider, toolcall, and
// orchestrator packages share. Grounded on the reference repository's
// internal/domain/agent/ports/{llm.go,tools.go}.
package core

// Role is a conversation message's role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockKind discriminates a ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockImage      BlockKind = "image"
)

// ContentBlock is one element of a message's content list. Exactly the
// fields relevant to Kind are populated.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// BlockToolResult
	ToolResultForID string `json:"tool_result_for_id,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`

	// BlockImage
	ImageMediaType string `json:"image_media_type,omitempty"`
	ImageData      string `json:"image_data,omitempty"`
}

// Message is one turn of a conversation. Content is either a plain string
// (Text) or a list of typed Blocks; exactly one is populated.
type Message struct {
	Role       Role           `json:"role"`
	Text       string         `json:"text,omitempty"`
	Blocks     []ContentBlock `json:"blocks,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
}

// ToolUseIDs returns the tool_use block ids present in m, for the
// "id unique within a conversation" invariant check.
func (m Message) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}
