package live

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"sessionlog/internal/model"
)

// IsTerminal reports whether w is a terminal, the only case where the
// transcript is colored.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	system, user, tool, toolName, dim, result, bad, good *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		system:   mk(color.FgMagenta),
		user:     mk(color.FgBlue),
		tool:     mk(color.FgYellow),
		toolName: mk(color.FgHiYellow),
		dim:      mk(color.FgHiBlack),
		result:   mk(color.FgCyan),
		bad:      mk(color.FgRed),
		good:     mk(color.FgGreen),
	}
}

// Renderer writes a human-readable transcript of live events.
// Write errors are ignored; the transcript is best effort.
type Renderer struct {
	w io.Writer
	p palette
}

// NewRenderer writes to w, with ANSI colors when colored is set.
func NewRenderer(w io.Writer, colored bool) *Renderer {
	return &Renderer{w: w, p: newPalette(colored)}
}

// Event renders one classified event.
func (r *Renderer) Event(ev *model.NormalizedEvent) {
	switch ev.Kind {
	case model.KindSystem:
		r.system(ev)
	case model.KindUser:
		r.user(ev)
	case model.KindAssistant:
		r.assistant(ev)
	case model.KindResult:
		r.result(ev)
	case model.KindTool:
		r.toolExecution(ev)
	default:
		preview, _ := clip(compact(ev.Raw), 100)
		r.printf("%s %s...\n", r.p.dim.Sprintf("[Unknown: %s]", ev.Type), preview)
	}
}

// Raw renders a line that could not be decoded.
func (r *Renderer) Raw(line string) {
	r.printf("%s\n", r.p.dim.Sprintf("[Raw] %s", line))
}

// Diagnostic renders a trailing problem report, such as an abnormal exit.
func (r *Renderer) Diagnostic(msg string) {
	r.printf("%s %s\n", r.p.bad.Sprint("[Error]"), msg)
}

func (r *Renderer) system(ev *model.NormalizedEvent) {
	if ev.Subtype == "init" {
		cwd := ev.CWD
		if cwd == "" {
			cwd = "unknown"
		}
		r.printf("%s Working directory: %s\n", r.p.system.Sprint("[System: Initializing]"), r.p.dim.Sprint(cwd))
		return
	}
	sub := ev.Subtype
	if sub == "" {
		sub = "message"
	}
	r.printf("%s\n", r.p.system.Sprintf("[System: %s]", sub))
}

func (r *Renderer) user(ev *model.NormalizedEvent) {
	r.toolUses("User", ev.ToolUses)
	if text := ev.Text(); text != "" {
		r.printf("%s %s\n", r.p.user.Sprint("[User]"), text)
	}
	if ev.Message != nil && ev.Message.ToolResults > 0 {
		r.printf("%s\n", r.p.tool.Sprintf("[Tool Results: %d]", ev.Message.ToolResults))
	}
}

func (r *Renderer) assistant(ev *model.NormalizedEvent) {
	r.toolUses("Assistant", ev.ToolUses)
	if text := ev.Text(); text != "" {
		r.printf("%s\n", text)
	}
}

// toolUses lists the tool invocations carried by a user or assistant event.
func (r *Renderer) toolUses(role string, uses []model.ToolUseRecord) {
	if n := len(uses); n > 0 {
		r.printf("%s\n", r.p.tool.Sprintf("[%s: Using %d tool(s)]", role, n))
		for i, tu := range uses {
			id := tu.ToolCallID
			if id == "" {
				id = fmt.Sprintf("tool_%d", i)
			}
			id, _ = clip(id, 20)
			r.printf("%s%s%s\n",
				r.p.tool.Sprint("  → Tool: "),
				r.p.toolName.Sprint(tu.ToolName),
				r.p.tool.Sprintf(" (ID: %s...)", id))
			if in := displayJSON(tu.Input); in != "" {
				r.printf("%s\n", r.p.dim.Sprintf("    Input: %s", ellipsize(in, 150)))
			}
		}
	}
}

func (r *Renderer) result(ev *model.NormalizedEvent) {
	res := ev.Result
	if res == nil {
		res = &model.ResultInfo{}
	}
	if res.SessionID != "" {
		r.printf("%s\n", r.p.result.Sprintf("[Session ID: %s]", res.SessionID))
	}

	r.printf("%s ", r.p.result.Sprint("[Result]"))
	if res.TotalCostUSD != 0 {
		r.printf("%s ", r.p.dim.Sprintf("Cost: $%.4f", res.TotalCostUSD))
	}
	if res.DurationMS != 0 {
		api := "N/A"
		if res.DurationAPIMS != 0 {
			api = fmt.Sprint(res.DurationAPIMS)
		}
		r.printf("%s ", r.p.dim.Sprintf("Duration: %dms (API: %sms)", res.DurationMS, api))
	}
	if res.NumTurns != 0 {
		r.printf("%s", r.p.dim.Sprintf("Turns: %d", res.NumTurns))
	}
	r.printf("\n")
	if res.Error != "" {
		r.printf("%s %s\n", r.p.bad.Sprint("[Error]"), res.Error)
	}
	r.printf("\n\n")
}

func (r *Renderer) toolExecution(ev *model.NormalizedEvent) {
	t := ev.Tool
	if t == nil {
		t = &model.ToolExecution{}
	}
	name, id := t.Name, t.CallID
	if name == "" {
		name = "unknown"
	}
	if id == "" {
		id = "unknown"
	}

	r.printf("%s%s%s\n", r.p.tool.Sprint("[Tool Execution: "), r.p.toolName.Sprint(name), r.p.tool.Sprint("]"))
	r.printf("%s\n", r.p.dim.Sprintf("  Call ID: %s", id))
	if in := displayJSON(t.Input); in != "" {
		r.printf("%s\n", r.p.dim.Sprintf("  Input: %s", ellipsize(in, 200)))
	}
	if out := displayJSON(t.Output); out != "" {
		r.printf("%s\n", r.p.dim.Sprintf("  Output: %s", ellipsize(out, 200)))
	}
	if t.Status != "" {
		c := r.p.bad
		if t.Status == "success" {
			c = r.p.good
		}
		r.printf("  %s\n", c.Sprintf("Status: %s", t.Status))
	}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// displayJSON shows a JSON string value unquoted and anything else as
// compact JSON. Absent, null, false and empty-string values render as "".
func displayJSON(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", `""`:
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return compact(trimmed)
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// clip returns at most n runes of s and whether anything was cut.
func clip(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// ellipsize clips s to n runes, marking a cut with "...".
func ellipsize(s string, n int) string {
	if out, cut := clip(s, n); cut {
		return out + "..."
	}
	return s
}

// lockedWriter serializes writes from the stdout and stderr pumps.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
