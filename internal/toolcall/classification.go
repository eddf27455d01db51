package toolcall

import "strings"

const fallbackClassification = "fallback"

// ClassifyTask extracts the value of a "TASK_CLASSIFICATION: <value>"
// marker, per SPEC_FULL §8 scenario 1. The literal value "unknown" maps to
// the fallback classification; an absent marker also falls back.
func ClassifyTask(content string) string {
	const marker = "TASK_CLASSIFICATION:"
	idx := strings.Index(content, marker)
	if idx < 0 {
		return fallbackClassification
	}
	rest := content[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	value := strings.ToLower(strings.TrimSpace(rest))
	if value == "" || value == "unknown" {
		return fallbackClassification
	}
	return value
}
