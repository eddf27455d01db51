package core

import "regexp"

// InvokerSource tags where a capability entry came from. Per SPEC_FULL §3
// this replaces the reference repository's mcp__-name-prefix heuristic
// with an explicit field (Design Note (c), spec.md §9).
type InvokerSource string

const (
	SourceNative InvokerSource = "native"
	SourceMCP    InvokerSource = "mcp"
	SourceA2A    InvokerSource = "a2a"
)

var validCapabilityName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidCapabilityName reports whether name satisfies the registry's name
// invariant: non-empty and matching [A-Za-z0-9_-]+.
func ValidCapabilityName(name string) bool {
	return name != "" && validCapabilityName.MatchString(name)
}

// InvokerDefinition is a registered capability entry.
type InvokerDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON-Schema
	Source      InvokerSource  `json:"source"`
	// SourceMetadata carries source-addressable data, e.g. a remote MCP
	// server URL.
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

// OpenAIFunctionSchema renders def in the OpenAI tools wire format per
// SPEC_FULL §4.3.
func (d InvokerDefinition) OpenAIFunctionSchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters,
		},
	}
}
