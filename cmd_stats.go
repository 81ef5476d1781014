package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sessionlog/internal/format"
)

func newStatsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize projects, recent sessions, tools and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			projects, err := st.ProjectStats(ctx, limit)
			if err != nil {
				return fmt.Errorf("project stats: %w", err)
			}
			recent, err := st.RecentSessions(ctx, limit, nil)
			if err != nil {
				return fmt.Errorf("recent sessions: %w", err)
			}
			tools, err := st.ToolUsage(ctx, limit)
			if err != nil {
				return fmt.Errorf("tool usage: %w", err)
			}
			models, err := st.ModelUsage(ctx)
			if err != nil {
				return fmt.Errorf("model usage: %w", err)
			}

			out := cmd.OutOrStdout()
			format.WriteProjects(out, projects)
			format.WriteSessions(out, "Recent sessions", recent)
			format.WriteCounts(out, "Most used tools", "Tool", tools)
			format.WriteCounts(out, "Models", "Model", models)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "rows per table")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var events int

	cmd := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Show one imported session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			id := args[0]
			rec, err := st.GetSession(ctx, id)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("session %s not found", id)
			}

			d := format.SessionDetail{Record: *rec}
			if d.Timeline, err = st.SessionTimeline(ctx, id); err != nil {
				return fmt.Errorf("timeline: %w", err)
			}
			if d.EventTypes, err = st.SessionEventTypes(ctx, id); err != nil {
				return fmt.Errorf("event types: %w", err)
			}
			if d.Tools, err = st.SessionTools(ctx, id); err != nil {
				return fmt.Errorf("tools: %w", err)
			}
			if d.Recent, err = st.RecentEvents(ctx, id, events); err != nil {
				return fmt.Errorf("recent events: %w", err)
			}

			format.WriteSessionDetail(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().IntVarP(&events, "events", "n", 10, "recent events to show")
	return cmd
}
