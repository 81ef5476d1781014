package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"sessionlog/internal/importer"
	"sessionlog/internal/transcript"
)

// MaxReportedErrors caps the errors listed under a report.
const MaxReportedErrors = 5

// WriteImportReport writes the batch statistics and the first few errors.
func WriteImportReport(w io.Writer, r *importer.Report) {
	tw := newTable(w, "Import statistics")
	tw.AppendHeader(table.Row{"", "Count"})
	tw.SetColumnConfigs([]table.ColumnConfig{countColumn(2)})
	tw.AppendRows([]table.Row{
		{"Sessions created", r.Created},
		{"Sessions updated", r.Updated},
		{"Sessions skipped", r.Skipped},
		{"Sessions failed", r.Failed},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Events stored", r.Events},
		{"Tool uses stored", r.ToolUses},
		{"Tool uses skipped (duplicate id)", r.ToolUsesSkipped},
	})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Errors", len(r.Errors)})
	tw.Render()

	writeErrors(w, r.Errors, MaxReportedErrors)
}

// WriteSchemaReport writes the schema facts and parse statistics of a survey.
func WriteSchemaReport(w io.Writer, snap transcript.SchemaSnapshot, errs []error) {
	facts := snap.Schema
	tw := newTable(w, "Discovered schema")
	tw.AppendHeader(table.Row{"Facet", "Values"})
	tw.SetColumnConfigs([]table.ColumnConfig{wrapColumn(2, 80)})
	tw.AppendRows([]table.Row{
		{"Event types", joinOrDash(facts.EventTypes)},
		{"Content types", joinOrDash(facts.MessageContentTypes)},
		{"Tool names", joinOrDash(facts.ToolNames)},
		{"Models", joinOrDash(facts.Models)},
		{"Stop reasons", joinOrDash(facts.StopReasons)},
	})
	tw.Render()

	ft := newTable(w, "Fields by event type")
	ft.AppendHeader(table.Row{"Type", "Fields"})
	ft.SetColumnConfigs([]table.ColumnConfig{wrapColumn(2, 80)})
	for _, typ := range facts.EventTypes {
		ft.AppendRow(table.Row{typ, joinOrDash(facts.FieldsByType[typ])})
	}
	ft.Render()

	st := newTable(w, "Parsing statistics")
	st.SetColumnConfigs([]table.ColumnConfig{countColumn(2)})
	st.AppendRows([]table.Row{
		{"Files", snap.Statistics.TotalFiles},
		{"Events", snap.Statistics.TotalEvents},
		{"Errors", snap.Statistics.ErrorCount},
	})
	st.Render()

	writeErrors(w, errs, 10)
}

func writeErrors(w io.Writer, errs []error, max int) {
	if len(errs) == 0 {
		return
	}
	n := min(len(errs), max)
	fmt.Fprintf(w, "\nFirst %d of %d errors:\n", n, len(errs))
	for _, err := range errs[:n] {
		fmt.Fprintf(w, "  %s\n", truncate(oneLine(err.Error()), 200))
	}
}

func joinOrDash(vals []string) string {
	if len(vals) == 0 {
		return "-"
	}
	return strings.Join(vals, ", ")
}
