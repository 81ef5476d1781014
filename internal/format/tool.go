package format

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const toolInputMax = 120

// toolInputKeys names the input field that best summarizes each known tool.
var toolInputKeys = map[string]string{
	"Bash":      "command",
	"Read":      "file_path",
	"Edit":      "file_path",
	"Write":     "file_path",
	"Glob":      "pattern",
	"Grep":      "pattern",
	"WebFetch":  "url",
	"WebSearch": "query",
	"Task":      "prompt",
}

// formatToolInput returns the most telling input field of a known tool, or
// the raw JSON truncated.
func formatToolInput(tool, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "(no input)"
	}
	key, ok := toolInputKeys[tool]
	if !ok {
		return truncate(raw, toolInputMax)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return truncate(raw, toolInputMax)
	}
	if v, ok := fields[key].(string); ok && v != "" {
		return truncate(v, toolInputMax)
	}
	return truncate(raw, toolInputMax)
}

// truncate cuts s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
