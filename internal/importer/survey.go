package importer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"sessionlog/internal/jsonl"
	"sessionlog/internal/model"
	"sessionlog/internal/transcript"
)

// SurveyOptions bounds a schema discovery pass. Zero values mean no limit.
type SurveyOptions struct {
	MaxFiles int
	MaxLines int // lines read per file
}

// SampleSurvey reads the first 10 files and the first 100 lines of each.
var SampleSurvey = SurveyOptions{MaxFiles: 10, MaxLines: 100}

// Survey classifies sources into schema without touching any store and
// returns every per-line problem it met.
func Survey(ctx context.Context, sources []Source, schema *transcript.Schema, opts SurveyOptions) []error {
	if opts.MaxFiles > 0 && len(sources) > opts.MaxFiles {
		sources = sources[:opts.MaxFiles]
	}

	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		errs = append(errs, surveySource(src, schema, opts.MaxLines)...)
	}
	return errs
}

func surveySource(src Source, schema *transcript.Schema, maxLines int) []error {
	f, err := os.Open(src.Path)
	if err != nil {
		schema.CountError()
		return []error{&SourceError{SessionID: src.SessionID, Err: fmt.Errorf("%w: %w", model.ErrSourceUnreadable, err)}}
	}
	defer f.Close()
	schema.CountFile()

	var errs []error
	for line, err := range jsonl.Lines(f) {
		if err != nil {
			var pe *jsonl.ParseError
			if !errors.As(err, &pe) {
				errs = append(errs, &SourceError{SessionID: src.SessionID, Err: err})
				schema.CountError()
				break
			}
			errs = append(errs, &SourceError{SessionID: src.SessionID, Line: pe.Line, Err: err})
			schema.CountError()
			if maxLines > 0 && pe.Line >= maxLines {
				break
			}
			continue
		}

		ev, _, err := transcript.Classify(line.Data)
		if err != nil {
			errs = append(errs, &SourceError{SessionID: src.SessionID, Line: line.Number, Err: fmt.Errorf("%w: %w", model.ErrLineParse, err)})
			schema.CountError()
		} else {
			schema.Observe(&ev)
		}
		if maxLines > 0 && line.Number >= maxLines {
			break
		}
	}
	return errs
}
