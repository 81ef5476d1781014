package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sessionlog/internal/format"
	"sessionlog/internal/importer"
	"sessionlog/internal/transcript"
)

func newSchemaCmd(a *app) *cobra.Command {
	var (
		sample  bool
		out     string
		cwdOnly bool
		project string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Survey session logs and report the event shapes found",
		Long: `Classify session logs without importing them and report event types,
fields per type, content part types, tool names, models and stop reasons.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.sourceRoot(cwdOnly, project)
			if err != nil {
				return err
			}
			sources, discoverErrs := importer.Discover(root)

			opts := importer.SurveyOptions{}
			mode := "full scan"
			if sample {
				opts = importer.SampleSurvey
				mode = fmt.Sprintf("sample, first %d files and %d lines each", opts.MaxFiles, opts.MaxLines)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d session logs under %s (%s)\n", len(sources), root, mode)

			schema := transcript.NewSchema()
			errs := importer.Survey(cmd.Context(), sources, schema, opts)
			errs = append(discoverErrs, errs...)
			format.WriteSchemaReport(cmd.OutOrStdout(), schema.Snapshot(time.Now()), errs)

			if out != "" {
				if err := writeSchemaFile(out, schema); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", out)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&sample, "sample", false, "read only the first 10 files and 100 lines of each")
	flags.StringVarP(&out, "out", "o", "", "write the schema as JSON to this file")
	flags.BoolVar(&cwdOnly, "cwd", false, "only survey the project of the current directory")
	flags.StringVar(&project, "project", "", "only survey this encoded project directory")
	return cmd
}
