package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"sessionlog/internal/jsonl"
	"sessionlog/internal/model"
	"sessionlog/internal/store"
	"sessionlog/internal/transcript"
)

// Outcome is the result class of one source sync.
type Outcome int

const (
	Created Outcome = iota
	Updated
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// SourceError ties an error to the source and, when known, the line it came from.
type SourceError struct {
	SessionID string
	Line      int // 0 when the error concerns the whole source
	Err       error
}

func (e *SourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.SessionID, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.SessionID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result reports one Sync call.
type Result struct {
	Source          Source
	Outcome         Outcome
	Reason          string // why a source was skipped
	Events          int    // events stored for the session
	ToolUses        int
	ToolUsesSkipped int
	Errors          []error // per-line and per-event problems, never fatal
	Err             error   // set when Outcome is Failed
}

// SessionStore is the persistence the importer needs.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error)
	ReplaceSession(ctx context.Context, rec model.SessionRecord, events []model.NormalizedEvent) (store.ReplaceStats, error)
}

// Importer synchronizes sources into a SessionStore one at a time.
type Importer struct {
	store  SessionStore
	log    zerolog.Logger
	schema *transcript.Schema
	now    func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithSchema feeds every classified event into s.
func WithSchema(s *transcript.Schema) Option {
	return func(im *Importer) { im.schema = s }
}

// WithClock overrides the clock used for import watermarks.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// New creates an Importer writing to st.
func New(st SessionStore, log zerolog.Logger, opts ...Option) *Importer {
	im := &Importer{store: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Sync imports one source unless its stored watermark is at or past the
// file's modification time. The watermark is the time this pass started, so
// a write racing the read is picked up by the next pass.
func (im *Importer) Sync(ctx context.Context, src Source) Result {
	res := Result{Source: src}
	started := im.now().UTC()
	log := im.log.With().Str("session", src.SessionID).Logger()

	fail := func(err error) Result {
		res.Outcome = Failed
		res.Err = &SourceError{SessionID: src.SessionID, Err: err}
		log.Error().Err(err).Str("path", src.Path).Msg("import failed")
		return res
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", model.ErrSourceUnreadable, err))
	}

	existing, err := im.store.GetSession(ctx, src.SessionID)
	if err != nil {
		return fail(err)
	}
	if existing != nil && !existing.LastImportedAt.IsZero() && !existing.LastImportedAt.Before(info.ModTime()) {
		res.Outcome = Skipped
		res.Reason = "not modified"
		res.Events = existing.EventCount
		log.Debug().Msg("skipped, not modified")
		return res
	}

	events, lineErrs, err := im.readEvents(src)
	res.Errors = lineErrs
	if err != nil {
		return fail(err)
	}
	if len(events) == 0 {
		res.Outcome = Skipped
		res.Reason = "no events"
		log.Debug().Int("errors", len(lineErrs)).Msg("skipped, no events")
		return res
	}

	created, last := timeBounds(events)
	rec := model.SessionRecord{
		SessionID:      src.SessionID,
		ProjectPath:    src.ProjectPath,
		IsAgent:        src.IsAgent,
		AgentID:        src.AgentID,
		CreatedAt:      created,
		LastActive:     last,
		EventCount:     len(events),
		Model:          transcript.FirstModel(events),
		SourcePath:     src.Path,
		SourceSize:     info.Size(),
		LastImportedAt: started,
	}

	stats, err := im.store.ReplaceSession(ctx, rec, events)
	if err != nil {
		return fail(err)
	}

	res.Outcome = Created
	if existing != nil {
		res.Outcome = Updated
	}
	res.Events = stats.EventsStored
	res.ToolUses = stats.ToolUsesInserted
	res.ToolUsesSkipped = stats.ToolUsesSkipped
	for i := 0; i < stats.ToolUsesSkipped; i++ {
		res.Errors = append(res.Errors, &SourceError{SessionID: src.SessionID, Err: errDuplicateToolUse})
	}

	log.Info().
		Stringer("outcome", res.Outcome).
		Int("events", res.Events).
		Int("previous", stats.PreviousEvents).
		Int("tool_uses", res.ToolUses).
		Int("errors", len(res.Errors)).
		Msg("imported")
	return res
}

var errDuplicateToolUse = errors.New("duplicate tool use id skipped")

// readEvents decodes and classifies the whole source. Only an unreadable
// source returns an error; everything else is collected per line.
func (im *Importer) readEvents(src Source) ([]model.NormalizedEvent, []error, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", model.ErrSourceUnreadable, err)
	}
	defer f.Close()

	if im.schema != nil {
		im.schema.CountFile()
	}

	var (
		events []model.NormalizedEvent
		errs   []error
	)
	lineErr := func(line int, err error) {
		errs = append(errs, &SourceError{SessionID: src.SessionID, Line: line, Err: err})
		if im.schema != nil {
			im.schema.CountError()
		}
	}

	for line, err := range jsonl.Lines(f) {
		if err != nil {
			var pe *jsonl.ParseError
			if errors.As(err, &pe) {
				lineErr(pe.Line, err)
				continue
			}
			return nil, errs, fmt.Errorf("%w: read %s: %w", model.ErrSourceUnreadable, src.Path, err)
		}

		ev, mismatches, err := transcript.Classify(line.Data)
		if err != nil {
			lineErr(line.Number, fmt.Errorf("%w: %w", model.ErrLineParse, err))
			continue
		}
		for _, mm := range mismatches {
			errs = append(errs, &SourceError{SessionID: src.SessionID, Line: line.Number, Err: mm})
		}

		ev.SessionID = src.SessionID
		ev.ToolUses = linkedToolUses(&ev, func(mm *model.SchemaMismatch) {
			errs = append(errs, &SourceError{SessionID: src.SessionID, Line: line.Number, Err: mm})
		})

		if im.schema != nil {
			im.schema.Observe(&ev)
		}
		events = append(events, ev)
	}
	return events, errs, nil
}

// linkedToolUses drops tool uses whose owning event has no uuid; they could
// not be linked back to a stored event.
func linkedToolUses(ev *model.NormalizedEvent, report func(*model.SchemaMismatch)) []model.ToolUseRecord {
	if ev.UUID != "" || len(ev.ToolUses) == 0 {
		return ev.ToolUses
	}
	for _, tu := range ev.ToolUses {
		report(&model.SchemaMismatch{
			Type:   ev.Type,
			Detail: fmt.Sprintf("tool_use %q (%s) on event without uuid dropped", tu.ToolName, tu.ToolCallID),
		})
	}
	return nil
}

// timeBounds returns the timestamps of the first and last events. When
// either lacks one, the nearest known timestamp inward is used; both stay
// zero when no event has a timestamp.
func timeBounds(events []model.NormalizedEvent) (first, last time.Time) {
	for i := range events {
		if ts := events[i].Timestamp; !ts.IsZero() {
			first = ts
			break
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		if ts := events[i].Timestamp; !ts.IsZero() {
			last = ts
			break
		}
	}
	return first, last
}

// Report aggregates the results of a batch.
type Report struct {
	Created         int
	Updated         int
	Skipped         int
	Failed          int
	Events          int
	ToolUses        int
	ToolUsesSkipped int
	Errors          []error
	Results         []Result
}

// Add folds one result into the report.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case Created:
		r.Created++
	case Updated:
		r.Updated++
	case Skipped:
		r.Skipped++
	case Failed:
		r.Failed++
		r.Errors = append(r.Errors, res.Err)
	}
	if res.Outcome == Created || res.Outcome == Updated {
		r.Events += res.Events
		r.ToolUses += res.ToolUses
		r.ToolUsesSkipped += res.ToolUsesSkipped
	}
	r.Errors = append(r.Errors, res.Errors...)
}

// SyncAll imports sources strictly one after another. It stops early only
// when ctx is cancelled; a failed source never stops the batch.
func (im *Importer) SyncAll(ctx context.Context, sources []Source, progress func(done, total int)) (*Report, error) {
	report := &Report{}
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Add(im.Sync(ctx, src))
		if progress != nil {
			progress(i+1, len(sources))
		}
	}
	return report, nil
}
