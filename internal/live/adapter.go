package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sessionlog/internal/jsonl"
	"sessionlog/internal/model"
	"sessionlog/internal/transcript"
)

var (
	// ErrBusy is returned when a submission is already running. Requests
	// are not queued.
	ErrBusy = errors.New("a submission is already running")
	// ErrEmptyPrompt rejects blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// State is the adapter's lifecycle position.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Run records one submission.
type Run struct {
	ID          string
	Prompt      string
	Continued   bool   // invoked in continuation mode
	SessionID   string // the id continued from, replaced by any id observed during the run
	StartedAt   time.Time
	EndedAt     time.Time
	Events      int
	ParseErrors int
	Mismatches  int
	Err         error
}

// Adapter drives one agent CLI conversation. It holds the session id to
// continue and allows one submission at a time.
type Adapter struct {
	launcher Launcher
	log      zerolog.Logger
	sessions *SessionLog
	schema   *transcript.Schema
	colored  bool
	now      func() time.Time

	mu        sync.Mutex
	state     State
	sessionID string
	pinned    bool // sessionID was chosen with SwitchSession
	last      *Run
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithSessionLog records observed ids in l and resumes from its last entry.
func WithSessionLog(l *SessionLog) AdapterOption {
	return func(a *Adapter) { a.sessions = l }
}

// WithLiveSchema feeds every live event into s.
func WithLiveSchema(s *transcript.Schema) AdapterOption {
	return func(a *Adapter) { a.schema = s }
}

// WithColor enables ANSI colors in the transcript.
func WithColor(on bool) AdapterOption {
	return func(a *Adapter) { a.colored = on }
}

// NewAdapter creates an idle adapter. With a session log, the most recent
// recorded id becomes the session to continue.
func NewAdapter(l Launcher, log zerolog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{launcher: l, log: log, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.sessions != nil {
		id, err := a.sessions.Last()
		if err != nil {
			a.log.Warn().Err(err).Str("path", a.sessions.Path()).Msg("cannot load last session id")
		}
		a.sessionID = id
	}
	return a
}

// SessionID returns the id the next submission continues, or "".
func (a *Adapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastRun returns the most recently finished run, or nil.
func (a *Adapter) LastRun() *Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// ResetSession makes the next submission start a new session.
func (a *Adapter) ResetSession() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Running {
		return ErrBusy
	}
	a.sessionID = ""
	a.pinned = false
	a.state = Idle
	return nil
}

// SwitchSession makes the next submissions resume id explicitly and
// records it. The choice holds until ResetSession.
func (a *Adapter) SwitchSession(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("session id required")
	}
	a.mu.Lock()
	if a.state == Running {
		a.mu.Unlock()
		return ErrBusy
	}
	a.sessionID = id
	a.pinned = true
	a.mu.Unlock()
	a.record(id)
	return nil
}

// Submit runs prompt to completion, writing the transcript and the
// process's stderr to out. It continues the held session when there is
// one. The returned Run is never nil.
func (a *Adapter) Submit(ctx context.Context, prompt string, out io.Writer) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Prompt: prompt, StartedAt: a.now()}
	if strings.TrimSpace(prompt) == "" {
		run.Err = ErrEmptyPrompt
		return run, ErrEmptyPrompt
	}

	a.mu.Lock()
	if a.state == Running {
		a.mu.Unlock()
		run.Err = ErrBusy
		return run, ErrBusy
	}
	a.state = Running
	inv := Invocation{Prompt: prompt, SessionID: a.sessionID, Pinned: a.pinned}
	a.mu.Unlock()

	run.Continued = inv.Continues()
	run.SessionID = inv.SessionID
	log := a.log.With().Str("run", run.ID).Logger()
	log.Info().Bool("continue", run.Continued).Bool("pinned", inv.Pinned).Str("session", inv.SessionID).Msg("submitting prompt")

	err := a.execute(ctx, inv, run, out, log)
	run.EndedAt = a.now()
	run.Err = err

	a.mu.Lock()
	a.state = Completed
	a.last = run
	a.mu.Unlock()

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Err(err).
		Int("events", run.Events).
		Int("parse_errors", run.ParseErrors).
		Str("session", run.SessionID).
		Dur("took", run.EndedAt.Sub(run.StartedAt)).
		Msg("submission finished")
	return run, err
}

func (a *Adapter) execute(ctx context.Context, inv Invocation, run *Run, out io.Writer, log zerolog.Logger) error {
	proc, err := a.launcher.Launch(ctx, inv)
	if err != nil {
		if !errors.Is(err, model.ErrProcessSpawn) {
			err = fmt.Errorf("%w: %w", model.ErrProcessSpawn, err)
		}
		return err
	}

	w := &lockedWriter{w: out}
	r := NewRenderer(w, a.colored)
	results := make(chan jsonl.Result, 64)

	var g errgroup.Group
	g.Go(func() error {
		return jsonl.Stream(ctx, proc.Stdout(), results)
	})
	g.Go(func() error {
		_, err := io.Copy(w, proc.Stderr())
		return err
	})

	for res := range results {
		a.handle(res, run, r, log)
	}
	streamErr := g.Wait()
	waitErr := proc.Wait()

	switch {
	case ctx.Err() != nil:
		r.Diagnostic("cancelled")
		return fmt.Errorf("%w: %w", model.ErrProcessRuntime, ctx.Err())
	case waitErr != nil:
		r.Diagnostic(fmt.Sprintf("process exited: %v", waitErr))
		return fmt.Errorf("%w: %w", model.ErrProcessRuntime, waitErr)
	case streamErr != nil:
		r.Diagnostic(fmt.Sprintf("output stream failed: %v", streamErr))
		return fmt.Errorf("%w: read output: %w", model.ErrProcessRuntime, streamErr)
	}
	return nil
}

func (a *Adapter) handle(res jsonl.Result, run *Run, r *Renderer, log zerolog.Logger) {
	if res.Err != nil {
		run.ParseErrors++
		var pe *jsonl.ParseError
		if errors.As(res.Err, &pe) {
			r.Raw(pe.Content)
		}
		log.Debug().Err(res.Err).Msg("undecodable output line")
		return
	}

	ev, mismatches, err := transcript.Classify(res.Line.Data)
	if err != nil {
		run.ParseErrors++
		r.Raw(string(res.Line.Data))
		return
	}
	run.Events++
	run.Mismatches += len(mismatches)
	for _, mm := range mismatches {
		log.Debug().Err(mm).Int("line", res.Line.Number).Msg("schema mismatch")
	}
	if a.schema != nil {
		a.schema.Observe(&ev)
	}

	if id := ev.SessionIDHint(); id != "" {
		a.adopt(id, run, log)
	}
	r.Event(&ev)
}

// adopt makes id the session to continue.
func (a *Adapter) adopt(id string, run *Run, log zerolog.Logger) {
	a.mu.Lock()
	changed := a.sessionID != id
	a.sessionID = id
	a.mu.Unlock()

	run.SessionID = id
	if changed {
		log.Info().Str("session", id).Msg("session id observed")
	}
	a.record(id)
}

func (a *Adapter) record(id string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Record(id); err != nil {
		a.log.Warn().Err(err).Str("session", id).Msg("cannot record session id")
	}
}
