// Package jsonl decodes newline-delimited JSON from files and pipes that
// deliver data in arbitrary chunks.
package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"sessionlog/internal/model"
)

const (
	// DefaultMaxLineSize bounds a single pending line.
	DefaultMaxLineSize = 16 << 20

	maxErrorContent = 200
	readChunkSize   = 32 << 10
)

// ErrLineTooLong is the cause of a ParseError for a line exceeding the
// decoder's MaxLineSize.
var ErrLineTooLong = errors.New("line exceeds maximum size")

// Line is one complete, syntactically valid JSON line.
type Line struct {
	Number int   // 1-based, counting blank lines
	Offset int64 // byte offset of the line start
	Data   json.RawMessage
}

// ParseError reports a line that could not be decoded. Decoding continues
// with the next line.
type ParseError struct {
	Line    int
	Offset  int64
	Content string // at most 200 bytes of the offending line
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %v: %q", e.Line, e.Offset, e.Err, e.Content)
}

func (e *ParseError) Unwrap() []error { return []error{model.ErrLineParse, e.Err} }

// Result is either a decoded Line or a *ParseError in Err.
type Result struct {
	Line Line
	Err  error
}

// Decoder turns chunks into lines. A line is only parsed once its
// terminating newline has arrived, or on Flush. Not safe for concurrent use.
type Decoder struct {
	MaxLineSize int

	buf        []byte
	line       int   // number of the pending line
	lineStart  int64 // offset of the pending line
	pending    int64 // bytes of the pending line seen so far, discarded ones included
	discarding bool
}

// NewDecoder returns a Decoder positioned at line 1, offset 0.
func NewDecoder() *Decoder {
	return &Decoder{MaxLineSize: DefaultMaxLineSize, line: 1}
}

func (d *Decoder) maxLine() int {
	if d.MaxLineSize <= 0 {
		return DefaultMaxLineSize
	}
	return d.MaxLineSize
}

// Feed consumes one chunk and returns the results of every line it completed.
func (d *Decoder) Feed(chunk []byte) []Result {
	if d.line == 0 {
		d.line = 1
	}
	var out []Result
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			out = d.accumulate(chunk, out)
			return out
		}
		out = d.accumulate(chunk[:i], out)
		chunk = chunk[i+1:]

		if !d.discarding {
			if r, ok := d.parse(d.buf); ok {
				out = append(out, r)
			}
		}
		d.endLine(1)
	}
	return out
}

// Flush makes one final attempt on the pending buffer at end of input.
func (d *Decoder) Flush() []Result {
	var out []Result
	if !d.discarding && len(d.buf) > 0 {
		if r, ok := d.parse(d.buf); ok {
			out = append(out, r)
		}
	}
	d.endLine(0)
	return out
}

func (d *Decoder) accumulate(seg []byte, out []Result) []Result {
	d.pending += int64(len(seg))
	if d.discarding {
		return out
	}
	d.buf = append(d.buf, seg...)
	if len(d.buf) > d.maxLine() {
		out = append(out, Result{Err: &ParseError{
			Line:    d.line,
			Offset:  d.lineStart,
			Content: truncate(d.buf),
			Err:     ErrLineTooLong,
		}})
		d.buf = d.buf[:0]
		d.discarding = true
	}
	return out
}

func (d *Decoder) endLine(terminator int64) {
	d.lineStart += d.pending + terminator
	d.pending = 0
	d.line++
	d.buf = d.buf[:0]
	d.discarding = false
}

func (d *Decoder) parse(data []byte) (Result, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Result{}, false
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{Err: &ParseError{
			Line:    d.line,
			Offset:  d.lineStart,
			Content: truncate(data),
			Err:     err,
		}}, true
	}
	return Result{Line: Line{Number: d.line, Offset: d.lineStart, Data: raw}}, true
}

func truncate(b []byte) string {
	if len(b) > maxErrorContent {
		b = b[:maxErrorContent]
	}
	return string(b)
}

// Lines lazily decodes a finite source. Parse errors are yielded as
// *ParseError and iteration continues; a read error is yielded once and ends
// the sequence.
func Lines(r io.Reader) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		dec := NewDecoder()
		buf := make([]byte, readChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, res := range dec.Feed(buf[:n]) {
					if !yield(res.Line, res.Err) {
						return
					}
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				yield(Line{}, err)
				return
			}
		}
		for _, res := range dec.Flush() {
			if !yield(res.Line, res.Err) {
				return
			}
		}
	}
}

// Stream decodes r until EOF and sends every result on out, closing it on
// return. It is meant to run on its own goroutine; a full out channel blocks
// reading from r. Returns the read error, or ctx.Err() if cancelled.
func Stream(ctx context.Context, r io.Reader, out chan<- Result) error {
	defer close(out)

	send := func(results []Result) error {
		for _, res := range results {
			select {
			case out <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	dec := NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if serr := send(dec.Feed(buf[:n])); serr != nil {
				return serr
			}
		}
		if err == io.EOF {
			return send(dec.Flush())
		}
		if err != nil {
			return err
		}
	}
}
