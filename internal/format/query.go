package format

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"sessionlog/internal/model"
)

// WriteProjects writes sessions per project.
func WriteProjects(w io.Writer, stats []model.ProjectStat) {
	tw := newTable(w, "Projects")
	tw.AppendHeader(table.Row{"Project", "Sessions", "Last active"})
	tw.SetColumnConfigs([]table.ColumnConfig{countColumn(2)})
	for _, p := range stats {
		tw.AppendRow(table.Row{p.ProjectPath, p.SessionCount, formatTime(p.LastActive)})
	}
	if len(stats) == 0 {
		tw.AppendRow(table.Row{"(no projects)", 0, "-"})
	}
	tw.Render()
}

// WriteSessions writes a session listing.
func WriteSessions(w io.Writer, title string, sessions []model.SessionRecord) {
	tw := newTable(w, title)
	tw.AppendHeader(table.Row{"Session", "Project", "Agent", "Events", "Model", "Last active"})
	tw.SetColumnConfigs([]table.ColumnConfig{countColumn(4)})
	for _, s := range sessions {
		agent := ""
		if s.IsAgent {
			agent = "yes"
		}
		tw.AppendRow(table.Row{s.SessionID, s.ProjectPath, agent, s.EventCount, orDash(s.Model), formatTime(s.LastActive)})
	}
	if len(sessions) == 0 {
		tw.AppendRow(table.Row{"(no sessions)", "-", "", 0, "-", "-"})
	}
	tw.Render()
}

// WriteCounts writes a two-column name/count aggregate.
func WriteCounts(w io.Writer, title, nameHeader string, rows []model.NameCount) {
	tw := newTable(w, title)
	tw.AppendHeader(table.Row{nameHeader, "Count"})
	tw.SetColumnConfigs([]table.ColumnConfig{countColumn(2)})
	for _, r := range rows {
		tw.AppendRow(table.Row{orDash(r.Name), r.Count})
	}
	if len(rows) == 0 {
		tw.AppendRow(table.Row{"(none)", 0})
	}
	tw.Render()
}

// SessionDetail is everything shown for one session.
type SessionDetail struct {
	Record     model.SessionRecord
	Timeline   model.Timeline
	EventTypes []model.NameCount
	Tools      []model.NameCount
	Recent     []model.EventPreview
}

// WriteSessionDetail writes the metadata, breakdowns and latest events of a session.
func WriteSessionDetail(w io.Writer, d SessionDetail) {
	r := d.Record
	tw := newTable(w, "Session "+r.SessionID)
	tw.AppendRows([]table.Row{
		{"Project", r.ProjectPath},
		{"Agent", agentLabel(r)},
		{"Model", orDash(r.Model)},
		{"Events", r.EventCount},
		{"Started", formatTime(d.Timeline.Start)},
		{"Ended", formatTime(d.Timeline.End)},
		{"Duration", d.Timeline.Duration().String()},
		{"Source", orDash(r.SourcePath)},
		{"Imported", formatTime(r.LastImportedAt)},
	})
	tw.Render()

	WriteCounts(w, "Event types", "Type", d.EventTypes)
	WriteCounts(w, "Tools", "Tool", d.Tools)

	et := newTable(w, "Recent events")
	et.AppendHeader(table.Row{"Time", "Type", "Preview"})
	et.SetColumnConfigs([]table.ColumnConfig{wrapColumn(3, 100)})
	for _, e := range d.Recent {
		et.AppendRow(table.Row{formatTime(e.Timestamp), e.Type, oneLine(e.Preview)})
	}
	et.Render()
}

func agentLabel(r model.SessionRecord) string {
	if !r.IsAgent {
		return "no"
	}
	return "yes (" + r.AgentID + ")"
}

// WriteSearchResults writes text search matches, one block per event.
func WriteSearchResults(w io.Writer, results []model.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "[%d] %s  [%s]  session=%s\n", i+1, formatTime(r.Timestamp), r.Type, shortID(r.SessionID))
		fmt.Fprintf(w, "    %s\n\n", truncate(oneLine(r.Content), 200))
	}
}

// WriteToolResults writes tool search matches with a summarized input.
func WriteToolResults(w io.Writer, results []model.ToolResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "[%d] %s  [%s]  session=%s\n", i+1, formatTime(r.Timestamp), r.ToolName, shortID(r.SessionID))
		fmt.Fprintf(w, "    %s\n\n", oneLine(formatToolInput(r.ToolName, r.ToolInput)))
	}
}
