// Package live runs the agent CLI as a subprocess, renders its stream-json
// output as a transcript and carries session identity across invocations.
package live

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"sessionlog/internal/config"
	"sessionlog/internal/model"
)

// Invocation is one request to the agent CLI.
type Invocation struct {
	Prompt string
	// SessionID is the session to continue. Empty starts a new session.
	SessionID string
	// Pinned marks a session chosen by id rather than observed. It is
	// always resumed by id, whatever the continue mode.
	Pinned bool
}

// Continues reports whether the invocation resumes an earlier session.
func (inv Invocation) Continues() bool { return inv.SessionID != "" }

// Process is a started invocation. Both streams must be drained before Wait.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// Launcher starts invocations. Implementations must stop the process when
// ctx is cancelled.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (Process, error)
}

// ExecLauncher runs the agent CLI binary with stream-json output.
type ExecLauncher struct {
	Binary          string
	Args            []string // placed before the generated arguments
	SkipPermissions bool
	ContinueMode    string // config.ContinueImplicit or config.ContinueExplicit
	Dir             string
	Env             []string // appended to the current environment
	// StopGrace bounds how long the output pipes stay open after
	// cancellation. Zero means defaultStopGrace.
	StopGrace time.Duration
}

// NewExecLauncher builds a launcher from cfg.
func NewExecLauncher(cfg config.Config) *ExecLauncher {
	return &ExecLauncher{
		Binary:          cfg.ClaudeBinary,
		Args:            cfg.ClaudeArgs,
		SkipPermissions: cfg.SkipPermissions,
		ContinueMode:    cfg.ContinueMode,
	}
}

const defaultStopGrace = 5 * time.Second

// Launch starts the binary in its own process group. Failure to start wraps
// model.ErrProcessSpawn. Cancelling ctx kills the whole group, and the
// output pipes are closed after StopGrace even if a descendant that
// escaped the group still holds them.
func (l *ExecLauncher) Launch(ctx context.Context, inv Invocation) (Process, error) {
	binary := l.Binary
	if binary == "" {
		binary = "claude"
	}
	grace := l.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}

	cmd := exec.CommandContext(ctx, binary, l.buildArgs(inv)...)
	cmd.Dir = l.Dir
	cmd.Env = append(os.Environ(), l.Env...)
	cmd.WaitDelay = grace
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", model.ErrProcessSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %w", model.ErrProcessSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", model.ErrProcessSpawn, binary, err)
	}

	p := &execProcess{cmd: cmd, stdout: stdout, stderr: stderr, done: make(chan struct{})}
	go p.closeOnCancel(ctx, grace)
	return p, nil
}

func (l *ExecLauncher) buildArgs(inv Invocation) []string {
	args := append([]string{}, l.Args...)
	args = append(args, "-p", inv.Prompt, "--output-format", "stream-json", "--verbose")
	if l.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if inv.Continues() {
		if inv.Pinned || l.ContinueMode == config.ContinueExplicit {
			args = append(args, "--resume", inv.SessionID)
		} else {
			args = append(args, "--continue")
		}
	}
	return args
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	done     chan struct{}
	doneOnce sync.Once
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() error {
	defer p.doneOnce.Do(func() { close(p.done) })
	return p.cmd.Wait()
}

// closeOnCancel closes the output pipes once ctx is done and the process
// has not been waited for within grace. Readers blocked on a pipe that a
// surviving descendant keeps open then return.
func (p *execProcess) closeOnCancel(ctx context.Context, grace time.Duration) {
	select {
	case <-p.done:
		return
	case <-ctx.Done():
	}

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.done:
	case <-t.C:
		p.stdout.Close()
		p.stderr.Close()
	}
}
