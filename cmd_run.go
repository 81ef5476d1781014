package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sessionlog/internal/live"
)

// newAdapter wires the live adapter to the configured binary and session log.
func (a *app) newAdapter(out io.Writer) *live.Adapter {
	return live.NewAdapter(live.NewExecLauncher(a.cfg), a.log,
		live.WithSessionLog(live.NewSessionLog(a.cfg.SessionsPath())),
		live.WithColor(live.IsTerminal(out)),
	)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		fresh     bool
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "run PROMPT...",
		Short: "Send one prompt to claude and stream the transcript",
		Long: `Run claude with the prompt and render its stream-json output. The most
recently observed session is continued unless --new or --session is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ad := a.newAdapter(out)
			switch {
			case fresh && sessionID != "":
				return errors.New("--new and --session are mutually exclusive")
			case fresh:
				if err := ad.ResetSession(); err != nil {
					return err
				}
			case sessionID != "":
				if err := ad.SwitchSession(sessionID); err != nil {
					return err
				}
			}
			_, err := ad.Submit(cmd.Context(), strings.Join(args, " "), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new session")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume this session id")
	return cmd
}

const chatHelp = `commands:
  /new        start a new session
  /switch ID  continue session ID
  /session    show the current session id
  /last       show the last run's counts
  /exit       quit`

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive prompt loop over one continued session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return chatLoop(cmd.Context(), a.newAdapter(out), cmd.InOrStdin(), out)
		},
	}
	return cmd
}

func chatLoop(ctx context.Context, ad *live.Adapter, in io.Reader, out io.Writer) error {
	interactive := in == os.Stdin && live.IsTerminal(os.Stdin)
	if interactive {
		fmt.Fprintln(out, chatHelp)
	}

	sc := bufio.NewScanner(in)
	for {
		if interactive {
			if id := ad.SessionID(); id != "" {
				fmt.Fprintf(out, "[%s]> ", shortSession(id))
			} else {
				fmt.Fprint(out, "> ")
			}
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/new":
			if err := ad.ResetSession(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Starting a new session.")
			continue
		case line == "/session":
			fmt.Fprintln(out, sessionOrNone(ad.SessionID()))
			continue
		case line == "/last":
			printRun(out, ad.LastRun())
			continue
		case strings.HasPrefix(line, "/switch"):
			if err := ad.SwitchSession(strings.TrimSpace(strings.TrimPrefix(line, "/switch"))); err != nil {
				fmt.Fprintf(out, "switch: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Switched to %s.\n", ad.SessionID())
			continue
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(out, chatHelp)
			continue
		}

		if _, err := ad.Submit(ctx, line, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, live.ErrEmptyPrompt) {
				continue
			}
			fmt.Fprintf(out, "sessionlog: %v\n", err)
		}
	}
}

// printRun writes a one-line summary of run.
func printRun(w io.Writer, run *live.Run) {
	if run == nil {
		fmt.Fprintln(w, "(no runs yet)")
		return
	}
	status := "ok"
	if run.Err != nil {
		status = run.Err.Error()
	}
	fmt.Fprintf(w, "run %s: %d events, %d parse errors, session %s, took %s, %s\n",
		shortSession(run.ID), run.Events, run.ParseErrors, sessionOrNone(run.SessionID),
		run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond), status)
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionOrNone(id string) string {
	if id == "" {
		return "(no session)"
	}
	return id
}
