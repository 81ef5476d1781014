package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionlog/internal/model"
	"sessionlog/internal/store"
	"sessionlog/internal/transcript"
)

const (
	userLine      = `{"type":"user","uuid":"u1","timestamp":"2025-03-01T10:00:00Z","message":{"content":"hi"}}`
	assistantLine = `{"type":"assistant","uuid":"a1","timestamp":"2025-03-01T10:00:05Z","message":{"model":"m1","content":[{"type":"text","text":"hello"},{"type":"tool_use","name":"search","id":"t1","input":{"q":"x"}}]}}`
)

var ctx = context.Background()

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	require.NoError(t, err)
	require.NoError(t, st.InitSchema(ctx))
	t.Cleanup(func() { st.Close() })
	return st
}

// writeLog writes lines into root/project/name and returns its Source.
func writeLog(t *testing.T, root, project, name string, lines ...string) Source {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return SourceFromPath(path)
}

// touch moves a file's mtime past any watermark written so far.
func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

// --- Source ---

func TestSourceFromPath_WhenAgentLog_ShouldDeriveAgentID(t *testing.T) {
	src := SourceFromPath("/x/projects/-home-me-proj/agent-1a2b3c.jsonl")

	assert.Equal(t, "agent-1a2b3c", src.SessionID)
	assert.Equal(t, "-home-me-proj", src.ProjectPath)
	assert.True(t, src.IsAgent)
	assert.Equal(t, "1a2b3c", src.AgentID)
}

func TestDiscover_ShouldFindLogFilesInProjectDirectories(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p1", "s1.jsonl", userLine)
	writeLog(t, root, "p2", "agent-x.jsonl", userLine)
	writeLog(t, root, "p2", "notes.txt", "ignored")

	sources, errs := Discover(root)

	assert.Empty(t, errs)
	require.Len(t, sources, 2)
	assert.Equal(t, "s1", sources[0].SessionID)
	assert.Equal(t, "agent-x", sources[1].SessionID)

	only, _ := Discover(filepath.Join(root, "p2"))
	assert.Len(t, only, 1)
}

func TestDiscover_WhenRootMissing_ShouldReportSourceUnreadable(t *testing.T) {
	sources, errs := Discover(filepath.Join(t.TempDir(), "nope"))

	assert.Empty(t, sources)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], model.ErrSourceUnreadable)
}

// --- Sync ---

func TestSync_WhenGivenUserAndAssistantLines_ShouldCreateSessionWithToolUse(t *testing.T) {
	st := openStore(t)
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl", userLine, assistantLine)

	res := New(st, zerolog.Nop()).Sync(ctx, src)

	require.NoError(t, res.Err)
	assert.Equal(t, Created, res.Outcome)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 1, res.ToolUses)

	rec, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.EventCount)
	assert.Equal(t, "m1", rec.Model)
	assert.Equal(t, "proj", rec.ProjectPath)
	assert.True(t, rec.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)), "created_at %v", rec.CreatedAt)
	assert.True(t, rec.LastActive.Equal(time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC)), "last_active %v", rec.LastActive)

	tools, err := st.ToolSearch(ctx, "*", 10, nil)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].ToolName)
}

func TestSync_WhenSourceUnchanged_ShouldSkipSecondImport(t *testing.T) {
	st := openStore(t)
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl", userLine, assistantLine)
	im := New(st, zerolog.Nop())

	first := im.Sync(ctx, src)
	second := im.Sync(ctx, src)

	assert.Equal(t, Created, first.Outcome)
	assert.Equal(t, Skipped, second.Outcome)
	assert.Equal(t, "not modified", second.Reason)

	rec, _ := st.GetSession(ctx, "s1")
	assert.Equal(t, 2, rec.EventCount)
	tools, _ := st.ToolSearch(ctx, "*", 10, nil)
	assert.Len(t, tools, 1)
}

func TestSync_WhenSourceRewritten_ShouldReplaceEvents(t *testing.T) {
	st := openStore(t)
	root := t.TempDir()
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	im := New(st, zerolog.Nop(), WithClock(func() time.Time { return clock }))

	src := writeLog(t, root, "proj", "s1.jsonl", userLine, assistantLine)
	touch(t, src.Path, clock.Add(-time.Minute))
	require.Equal(t, Created, im.Sync(ctx, src).Outcome)

	writeLog(t, root, "proj", "s1.jsonl", `{"type":"user","uuid":"u9","message":{"content":"rewritten"}}`)
	touch(t, src.Path, clock.Add(time.Minute))
	clock = clock.Add(2 * time.Minute)
	res := im.Sync(ctx, src)

	assert.Equal(t, Updated, res.Outcome)
	assert.Equal(t, 1, res.Events)
	rec, _ := st.GetSession(ctx, "s1")
	assert.Equal(t, 1, rec.EventCount)
	assert.True(t, rec.LastImportedAt.Equal(clock), "last_imported_at %v", rec.LastImportedAt)
	tools, _ := st.ToolSearch(ctx, "*", 10, nil)
	assert.Empty(t, tools)
}

func TestSync_WhenOneOfHundredOneLinesIsCorrupt_ShouldImportHundredAndReportOne(t *testing.T) {
	st := openStore(t)
	lines := make([]string, 0, 101)
	for i := range 100 {
		if i == 42 {
			lines = append(lines, `{"type":"user","uuid":`)
		}
		lines = append(lines, fmt.Sprintf(`{"type":"user","uuid":"u%d","message":{"content":"m%d"}}`, i, i))
	}
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl", lines...)

	res := New(st, zerolog.Nop()).Sync(ctx, src)

	assert.Equal(t, Created, res.Outcome)
	assert.Equal(t, 100, res.Events)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], model.ErrLineParse)
	var se *SourceError
	require.ErrorAs(t, res.Errors[0], &se)
	assert.Equal(t, 43, se.Line)
}

func TestSync_WhenSourceIsEmptyOrUnparseable_ShouldSkipWithoutRecording(t *testing.T) {
	st := openStore(t)
	root := t.TempDir()
	im := New(st, zerolog.Nop())

	empty := im.Sync(ctx, writeLog(t, root, "proj", "empty.jsonl"))
	garbage := im.Sync(ctx, writeLog(t, root, "proj", "garbage.jsonl", "not json", "[1,2]"))

	assert.Equal(t, Skipped, empty.Outcome)
	assert.Equal(t, Skipped, garbage.Outcome)
	assert.Equal(t, "no events", garbage.Reason)
	assert.Len(t, garbage.Errors, 2)

	rec, err := st.GetSession(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSync_WhenSourceMissing_ShouldFailWithSourceUnreadable(t *testing.T) {
	st := openStore(t)

	res := New(st, zerolog.Nop()).Sync(ctx, SourceFromPath(filepath.Join(t.TempDir(), "p", "gone.jsonl")))

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, model.ErrSourceUnreadable)
}

func TestSync_WhenToolUseLacksNameOrOwner_ShouldKeepEventAndReportMismatch(t *testing.T) {
	st := openStore(t)
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl",
		`{"type":"assistant","uuid":"a1","message":{"content":[{"type":"tool_use","id":"t1"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","id":"t2"}]}}`,
	)

	res := New(st, zerolog.Nop()).Sync(ctx, src)

	assert.Equal(t, Created, res.Outcome)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 0, res.ToolUses)
	require.Len(t, res.Errors, 2)
	for _, err := range res.Errors {
		assert.ErrorIs(t, err, model.ErrSchemaMismatch)
	}
}

func TestSync_WhenSchemaObserverConfigured_ShouldFeedIt(t *testing.T) {
	st := openStore(t)
	schema := transcript.NewSchema()
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl", userLine, assistantLine)

	New(st, zerolog.Nop(), WithSchema(schema)).Sync(ctx, src)

	snap := schema.Snapshot(time.Now())
	assert.Equal(t, []string{"search"}, snap.Schema.ToolNames)
	assert.Equal(t, 1, snap.Statistics.TotalFiles)
	assert.Equal(t, 2, snap.Statistics.TotalEvents)
}

// failingStore rejects every write.
type failingStore struct {
	*store.Store
}

func (f failingStore) ReplaceSession(context.Context, model.SessionRecord, []model.NormalizedEvent) (store.ReplaceStats, error) {
	return store.ReplaceStats{}, fmt.Errorf("%w: disk full", model.ErrStoreWrite)
}

func TestSync_WhenStoreRejectsWrite_ShouldFailAndKeepWatermark(t *testing.T) {
	st := openStore(t)
	src := writeLog(t, t.TempDir(), "proj", "s1.jsonl", userLine)

	res := New(failingStore{st}, zerolog.Nop()).Sync(ctx, src)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, model.ErrStoreWrite)
	rec, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, rec, "a rejected import must not record a watermark")

	retry := New(st, zerolog.Nop()).Sync(ctx, src)
	assert.Equal(t, Created, retry.Outcome)
}

// --- SyncAll ---

func TestSyncAll_ShouldAggregateOutcomesAndContinuePastFailures(t *testing.T) {
	st := openStore(t)
	root := t.TempDir()
	writeLog(t, root, "p", "a.jsonl", userLine, assistantLine)
	writeLog(t, root, "p", "b.jsonl", `{"type":"user","uuid":"u2","message":{"content":"x"}}`, "oops")
	writeLog(t, root, "p", "c.jsonl")
	sources, _ := Discover(root)
	sources = append(sources, SourceFromPath(filepath.Join(root, "p", "missing.jsonl")))

	var calls int
	report, err := New(st, zerolog.Nop()).SyncAll(ctx, sources, func(done, total int) {
		calls++
		assert.Equal(t, 4, total)
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 1, report.ToolUses)
	assert.Len(t, report.Errors, 2)
}

func TestSyncAll_WhenContextCancelled_ShouldStop(t *testing.T) {
	st := openStore(t)
	root := t.TempDir()
	writeLog(t, root, "p", "a.jsonl", userLine)
	sources, _ := Discover(root)
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	report, err := New(st, zerolog.Nop()).SyncAll(cctx, sources, nil)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, report.Results)
}

// --- Survey ---

func TestSurvey_WhenSampling_ShouldLimitLinesPerFile(t *testing.T) {
	root := t.TempDir()
	lines := make([]string, 0, 150)
	for i := range 150 {
		lines = append(lines, fmt.Sprintf(`{"type":"user","uuid":"u%d"}`, i))
	}
	writeLog(t, root, "p", "a.jsonl", lines...)
	sources, _ := Discover(root)
	schema := transcript.NewSchema()

	errs := Survey(ctx, sources, schema, SampleSurvey)

	assert.Empty(t, errs)
	assert.Equal(t, 100, schema.Snapshot(time.Now()).Statistics.TotalEvents)
}
