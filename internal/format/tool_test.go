package format

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits", "hello", 10, "hello"},
		{"exactly max", "12345", 5, "12345"},
		{"exceeds max", "hello world", 5, "hello..."},
		{"empty", "", 10, ""},
		{"multibyte runes stay whole", "héllo wörld", 7, "héllo w..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestFormatToolInput_WhenToolIsKnown_ShouldExtractItsKeyField(t *testing.T) {
	tests := []struct {
		tool string
		raw  string
		want string
	}{
		{"Bash", `{"command":"ls -la","timeout":30}`, "ls -la"},
		{"Read", `{"file_path":"/tmp/test.go","offset":0}`, "/tmp/test.go"},
		{"Edit", `{"file_path":"/tmp/main.go","old_string":"foo","new_string":"bar"}`, "/tmp/main.go"},
		{"Write", `{"file_path":"/tmp/output.txt","content":"data"}`, "/tmp/output.txt"},
		{"Glob", `{"pattern":"**/*.go"}`, "**/*.go"},
		{"Grep", `{"pattern":"func main","path":"/tmp"}`, "func main"},
		{"WebFetch", `{"url":"https://example.com","prompt":"summarize"}`, "https://example.com"},
		{"WebSearch", `{"query":"golang duckdb"}`, "golang duckdb"},
		{"Task", `{"prompt":"find the bug","description":"debug"}`, "find the bug"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if got := formatToolInput(tt.tool, tt.raw); got != tt.want {
				t.Errorf("formatToolInput(%s) = %q, want %q", tt.tool, got, tt.want)
			}
		})
	}
}

func TestFormatToolInput_WhenInputIsBlank_ShouldSayNoInput(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		if got := formatToolInput("Bash", raw); got != "(no input)" {
			t.Errorf("formatToolInput(%q) = %q, want (no input)", raw, got)
		}
	}
}

func TestFormatToolInput_WhenKeyFieldUnavailable_ShouldFallBackToRaw(t *testing.T) {
	tests := []struct {
		name string
		tool string
		raw  string
	}{
		{"unknown tool", "mcp__db__query", `{"sql":"select 1"}`},
		{"invalid json", "Bash", `{not json`},
		{"missing field", "Bash", `{"timeout":30}`},
		{"empty field", "Read", `{"file_path":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatToolInput(tt.tool, tt.raw); got != tt.raw {
				t.Errorf("formatToolInput(%s, %q) = %q, want raw input", tt.tool, tt.raw, got)
			}
		})
	}
}

func TestFormatToolInput_WhenInputIsLong_ShouldTruncate(t *testing.T) {
	long := strings.Repeat("x", 300)

	raw := formatToolInput("Unknown", `{"data":"`+long+`"}`)
	field := formatToolInput("Bash", `{"command":"`+long+`"}`)

	for _, got := range []string{raw, field} {
		if len(got) != toolInputMax+3 || !strings.HasSuffix(got, "...") {
			t.Errorf("expected %d chars ending in ..., got %d: %q", toolInputMax+3, len(got), got)
		}
	}
}

func TestOneLine_ShouldCollapseWhitespace(t *testing.T) {
	if got := oneLine("  first\n\tsecond   third \n"); got != "first second third" {
		t.Errorf("oneLine = %q", got)
	}
}
