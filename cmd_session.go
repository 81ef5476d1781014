package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sessionlog/internal/live"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the session the next run continues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := live.NewSessionLog(a.cfg.SessionsPath()).Last()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sessionOrNone(id))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every recorded session id, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := live.NewSessionLog(a.cfg.SessionsPath()).IDs()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})
	return cmd
}
