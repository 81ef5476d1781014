package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sessionlog/internal/config"
	"sessionlog/internal/logging"
	"sessionlog/internal/store"
)

// app is the state shared by subcommands once flags are parsed.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sessionlog: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		a           = &app{}
		configPath  string
		logLevel    string
		dbPath      string
		projectsDir string
	)

	root := &cobra.Command{
		Use:   "sessionlog",
		Short: "Import and stream Claude Code session logs",
		Long: `sessionlog keeps Claude Code session logs in a DuckDB store and runs the
claude CLI live, carrying the session across invocations.

environment:
  SESSIONLOG_DATA_DIR      data directory (default ~/.sessionlog)
  SESSIONLOG_PROJECTS_DIR  session log root (default ~/.claude/projects)
  SESSIONLOG_DB            database file
  SESSIONLOG_LOG_LEVEL     debug, info, warn, error
  CLAUDE_BINARY            claude executable`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBFile = dbPath
			}
			if projectsDir != "" {
				cfg.ProjectsDir = projectsDir
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.log = logging.Init(logging.Config{
				Level:  logging.ParseLevel(cfg.LogLevel),
				Output: cmd.ErrOrStderr(),
				Pretty: cfg.LogPretty,
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.sessionlog/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&dbPath, "db", "", "database file")
	flags.StringVar(&projectsDir, "projects-dir", "", "session log root")

	root.AddCommand(
		newImportCmd(a),
		newSchemaCmd(a),
		newRunCmd(a),
		newChatCmd(a),
		newSessionCmd(a),
		newStatsCmd(a),
		newShowCmd(a),
		newSearchCmd(a),
	)
	return root
}

// openStore opens the database, creating it and its schema when create is set.
func (a *app) openStore(ctx context.Context, create bool) (*store.Store, error) {
	path := a.cfg.DBPath()
	if !create && !fileExists(path) {
		return nil, fmt.Errorf("no database found at %s; run 'sessionlog import' first", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
