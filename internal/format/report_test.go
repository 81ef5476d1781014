package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sessionlog/internal/importer"
	"sessionlog/internal/model"
	"sessionlog/internal/transcript"
)

func TestWriteImportReport_ShouldShowCountsAndFirstFiveErrors(t *testing.T) {
	r := &importer.Report{Created: 3, Updated: 1, Skipped: 7, Failed: 1, Events: 120, ToolUses: 14, ToolUsesSkipped: 2}
	for i := range 8 {
		r.Errors = append(r.Errors, fmt.Errorf("problem %d", i))
	}
	var buf bytes.Buffer

	WriteImportReport(&buf, r)

	out := buf.String()
	for _, want := range []string{"Import statistics", "Sessions created", "Sessions skipped", "120", "Tool uses skipped (duplicate id)", "First 5 of 8 errors:", "problem 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "problem 5") {
		t.Errorf("expected only five errors listed:\n%s", out)
	}
}

func TestWriteImportReport_WhenNoErrors_ShouldOmitErrorList(t *testing.T) {
	var buf bytes.Buffer
	WriteImportReport(&buf, &importer.Report{})
	if strings.Contains(buf.String(), "errors:") {
		t.Errorf("unexpected error list:\n%s", buf.String())
	}
}

func TestWriteSchemaReport_ShouldListFacetsAndFields(t *testing.T) {
	s := transcript.NewSchema()
	for _, line := range []string{
		`{"type":"user","uuid":"u1","message":{"content":"hi"}}`,
		`{"type":"assistant","uuid":"a1","message":{"model":"m1","stop_reason":"end_turn","content":[{"type":"tool_use","name":"Grep","id":"t"}]}}`,
	} {
		ev, _, err := transcript.Classify([]byte(line))
		if err != nil {
			t.Fatal(err)
		}
		s.Observe(&ev)
	}
	var buf bytes.Buffer

	WriteSchemaReport(&buf, s.Snapshot(time.Now()), []error{errors.New("bad line")})

	out := buf.String()
	for _, want := range []string{"Discovered schema", "Grep", "m1", "end_turn", "Fields by event type", "assistant", "Parsing statistics", "bad line"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteSessions_WhenEmpty_ShouldShowPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	WriteSessions(&buf, "Recent sessions", nil)
	if !strings.Contains(buf.String(), "(no sessions)") {
		t.Errorf("expected placeholder:\n%s", buf.String())
	}
}

func TestWriteSessionDetail_ShouldShowMetadataAndRecentEvents(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := SessionDetail{
		Record:     model.SessionRecord{SessionID: "s-123", ProjectPath: "-p", IsAgent: true, AgentID: "7f", EventCount: 2, Model: "m1"},
		Timeline:   model.Timeline{Start: start, End: start.Add(90 * time.Second)},
		EventTypes: []model.NameCount{{Name: "user", Count: 1}, {Name: "assistant", Count: 1}},
		Recent:     []model.EventPreview{{Type: "user", Timestamp: start, Preview: "hello\nworld"}},
	}
	var buf bytes.Buffer

	WriteSessionDetail(&buf, d)

	out := buf.String()
	for _, want := range []string{"Session s-123", "yes (7f)", "1m30s", "hello world", "(none)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_ShouldNumberMatchesAndShortenSessionID(t *testing.T) {
	var buf bytes.Buffer
	WriteSearchResults(&buf, []model.SearchResult{{SessionID: "0123456789abcdef", Type: "assistant", Content: "found it"}})

	out := buf.String()
	if !strings.Contains(out, "[1] -  [assistant]  session=01234567\n    found it\n") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWriteToolResults_ShouldSummarizeInput(t *testing.T) {
	var buf bytes.Buffer
	WriteToolResults(&buf, []model.ToolResult{{SessionID: "s1", ToolName: "Bash", ToolInput: `{"command":"go test ./..."}`}})

	if !strings.Contains(buf.String(), "    go test ./...\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWriteSearchResults_WhenEmpty_ShouldSayNoResults(t *testing.T) {
	var buf bytes.Buffer
	WriteSearchResults(&buf, nil)
	if buf.String() != "No results.\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
