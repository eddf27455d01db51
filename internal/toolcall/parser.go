// Package toolcall implements the model-output tool-call extractor of
// SPEC_FULL §4.6. No reference-repository file implements this exact
// extractor (a stray test, internal/infra/llm/tool_call_parsing_client_test.go,
// references a parser.New()/<tool_call>...</tool_call> decorator shape that
// never shipped a non-test implementation in the retrieved pack); the
// algorithm here follows SPEC_FULL's own description and original_source's
// equivalent Rust module. Malformed JSON objects are repaired with
// github.com/kaptinlin/jsonrepair before being given up on, following the
// repair-then-fallback pattern in the reference repo's
// internal/agent/tool_executor.go.
package toolcall

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"agentcore/internal/core"
)

// Result is everything the parser extracts from one model response.
type Result struct {
	Calls      []core.ToolCall
	Thought    string
	Completed  bool
}

var completionMarkers = []string{
	"task_completed",
	"task completed",
	"implementation complete",
	"solution verified",
	"all tests passing",
	"task finished",
	"✓ complete",
	"complete_task_and_submit_final_output",
}

var submitNamePattern = regexp.MustCompile(`"name"\s*:\s*"submit"`)

var gotoPattern = regexp.MustCompile(`^goto\(?\s*(\d+)\s*\)?$`)

// Parse extracts zero or more tool calls, an optional thought, and a
// completion signal from one raw model response. It never returns an
// error: unparseable regions are skipped.
func Parse(content string) Result {
	calls := parseJSONCalls(content)
	if len(calls) == 0 {
		if shorthand := parseShorthand(content); shorthand != nil {
			calls = append(calls, *shorthand)
		}
	}

	result := Result{
		Calls:   calls,
		Thought: extractThought(content),
	}
	result.Completed = detectCompletion(content, calls)
	return result
}

// parseJSONCalls scans content for top-level JSON objects via a
// balanced-brace walker that respects string literals and escapes. Any
// object with both a "name" and "arguments" field becomes a call.
func parseJSONCalls(content string) []core.ToolCall {
	var calls []core.ToolCall
	idx := 0
	for start := 0; start < len(content); start++ {
		if content[start] != '{' {
			continue
		}
		end := matchBrace(content, start)
		if end < 0 {
			continue
		}
		candidate := content[start : end+1]
		if call, ok := tryParseCandidate(candidate, idx); ok {
			calls = append(calls, call)
			idx++
		}
		start = end
	}
	return calls
}

// matchBrace returns the index of the '{' at open's matching '}',
// respecting string literals and backslash escapes, or -1 if unbalanced.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func tryParseCandidate(candidate string, index int) (core.ToolCall, bool) {
	var generic map[string]any
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return core.ToolCall{}, false
		}
		if err := json.Unmarshal([]byte(repaired), &generic); err != nil {
			return core.ToolCall{}, false
		}
	}

	nameVal, hasName := generic["name"]
	argsVal, hasArgs := generic["arguments"]
	if !hasName || !hasArgs {
		return core.ToolCall{}, false
	}
	name, ok := nameVal.(string)
	if !ok || name == "" {
		return core.ToolCall{}, false
	}

	var args map[string]any
	switch v := argsVal.(type) {
	case map[string]any:
		args = v
	default:
		// Non-object arguments are stringified verbatim under a single
		// "value" key so callers always see a map.
		raw, err := json.Marshal(v)
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", v))
		}
		args = map[string]any{"value": string(raw)}
	}

	return core.ToolCall{
		ID:        fmt.Sprintf("call_%d", index),
		Name:      name,
		Arguments: args,
	}, true
}

// parseShorthand recognizes the fixed shorthand command forms. At most one
// call is emitted, per SPEC_FULL §4.6.
func parseShorthand(content string) *core.ToolCall {
	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimSpace(rawLine)
		switch {
		case line == "scroll_down" || line == "scroll_down()":
			return &core.ToolCall{ID: "call_0", Name: "scroll_down", Arguments: map[string]any{}}
		case line == "scroll_up" || line == "scroll_up()":
			return &core.ToolCall{ID: "call_0", Name: "scroll_up", Arguments: map[string]any{}}
		}
		if m := gotoPattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return &core.ToolCall{ID: "call_0", Name: "goto", Arguments: map[string]any{"line": n}}
		}
	}
	return nil
}

// extractThought returns the text following "THOUGHT:" up to the next
// blank line, fenced code block, or end-of-input.
func extractThought(content string) string {
	idx := strings.Index(content, "THOUGHT:")
	if idx < 0 {
		return ""
	}
	rest := content[idx+len("THOUGHT:"):]
	lines := strings.Split(rest, "\n")
	var collected []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			break
		}
		collected = append(collected, trimmed)
	}
	return strings.TrimSpace(strings.Join(collected, " "))
}

func detectCompletion(content string, calls []core.ToolCall) bool {
	lower := strings.ToLower(content)
	for _, marker := range completionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, call := range calls {
		if call.Name == "submit" {
			return true
		}
	}
	return submitNamePattern.MatchString(content)
}
