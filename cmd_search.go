package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sessionlog/internal/format"
	"sessionlog/internal/model"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		text  string
		tool  string
		since string
		until string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search imported events by text or tool name",
		Long: `Search event text case-insensitively (-t) or list invocations of a tool
(--tool, "*" for all). --since and --until take RFC3339 times, dates, or
relative durations such as 2h, 3d or 1w.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (text == "") == (tool == "") {
				return errors.New("specify exactly one of -t/--text or --tool")
			}
			tf, err := model.ParseTimeFilter(since, until, time.Now())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			if text != "" {
				results, err := st.TextSearch(ctx, text, limit, tf)
				if err != nil {
					return fmt.Errorf("text search: %w", err)
				}
				format.WriteSearchResults(cmd.OutOrStdout(), results)
				return nil
			}

			results, err := st.ToolSearch(ctx, tool, limit, tf)
			if err != nil {
				return fmt.Errorf("tool search: %w", err)
			}
			format.WriteToolResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&text, "text", "t", "", "case-insensitive substring to find in event text")
	flags.StringVar(&tool, "tool", "", "tool name to list invocations of")
	flags.StringVar(&since, "since", "", "only events at or after this time")
	flags.StringVar(&until, "until", "", "only events at or before this time")
	flags.IntVarP(&limit, "limit", "n", 20, "max results")
	return cmd
}
