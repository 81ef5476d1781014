package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sessionlog/internal/format"
	"sessionlog/internal/importer"
	"sessionlog/internal/live"
	"sessionlog/internal/transcript"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		watch     bool
		cwdOnly   bool
		project   string
		schemaOut string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import session logs into the database",
		Long: `Import every session log under the projects directory. Sessions whose
log has not changed since the last import are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root, err := a.sourceRoot(cwdOnly, project)
			if err != nil {
				return err
			}

			sources, errs := importer.Discover(root)
			for _, err := range errs {
				a.log.Warn().Err(err).Msg("discovery")
			}
			if len(sources) == 0 && !watch {
				fmt.Fprintf(cmd.OutOrStdout(), "No session logs under %s.\n", root)
				return nil
			}

			st, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer st.Close()

			var opts []importer.Option
			var schema *transcript.Schema
			if schemaOut != "" {
				schema = transcript.NewSchema()
				opts = append(opts, importer.WithSchema(schema))
			}
			im := importer.New(st, a.log, opts...)

			fmt.Fprintf(cmd.OutOrStdout(), "Found %d session logs under %s\n", len(sources), root)
			report, err := im.SyncAll(ctx, sources, progressPrinter(cmd.ErrOrStderr()))
			if report != nil {
				format.WriteImportReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}

			if schema != nil {
				if err := writeSchemaFile(schemaOut, schema); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOut)
			}

			if watch {
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", root)
				return im.Watch(ctx, root, importer.DefaultDebounce, func(res importer.Result) {
					printResult(cmd.OutOrStdout(), res)
				})
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&watch, "watch", "w", false, "keep running and re-import logs as they change")
	flags.BoolVar(&cwdOnly, "cwd", false, "only import the project of the current directory")
	flags.StringVar(&project, "project", "", "only import this encoded project directory")
	flags.StringVar(&schemaOut, "schema-out", "", "also write the discovered schema as JSON to this file")
	return cmd
}

// sourceRoot picks the directory to scan.
func (a *app) sourceRoot(cwdOnly bool, project string) (string, error) {
	switch {
	case project != "":
		return filepath.Join(a.cfg.ProjectsDir, project), nil
	case cwdOnly:
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get cwd: %w", err)
		}
		return a.cfg.ProjectDir(wd), nil
	}
	return a.cfg.ProjectsDir, nil
}

// progressPrinter redraws a counter on terminals and stays quiet elsewhere.
func progressPrinter(w io.Writer) func(done, total int) {
	if !live.IsTerminal(w) {
		return nil
	}
	return func(done, total int) {
		fmt.Fprintf(w, "\rImporting %d/%d", done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func printResult(w io.Writer, res importer.Result) {
	switch res.Outcome {
	case importer.Failed:
		fmt.Fprintf(w, "%s  %s: %v\n", res.Outcome, res.Source.SessionID, res.Err)
	case importer.Skipped:
		fmt.Fprintf(w, "%s  %s (%s)\n", res.Outcome, res.Source.SessionID, res.Reason)
	default:
		fmt.Fprintf(w, "%s  %s: %d events, %d tool uses, %d problems\n",
			res.Outcome, res.Source.SessionID, res.Events, res.ToolUses, len(res.Errors))
	}
}

func writeSchemaFile(path string, schema *transcript.Schema) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create schema file: %w", err)
	}
	if err := schema.WriteJSON(f, time.Now()); err != nil {
		f.Close()
		return fmt.Errorf("write schema: %w", err)
	}
	return f.Close()
}
