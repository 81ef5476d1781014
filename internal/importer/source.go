// Package importer synchronizes Claude Code session log files into the store.
package importer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sessionlog/internal/model"
)

const (
	logExt      = ".jsonl"
	agentPrefix = "agent-"
)

// Source describes one session log file.
type Source struct {
	Path        string
	SessionID   string // file name without extension
	ProjectPath string // name of the containing project directory
	IsAgent     bool
	AgentID     string
}

// SourceFromPath derives a Source from a log file path.
func SourceFromPath(path string) Source {
	name := filepath.Base(path)
	id := strings.TrimSuffix(name, logExt)
	src := Source{
		Path:        path,
		SessionID:   id,
		ProjectPath: filepath.Base(filepath.Dir(path)),
	}
	if strings.HasPrefix(id, agentPrefix) {
		src.IsAgent = true
		src.AgentID = strings.TrimPrefix(id, agentPrefix)
	}
	return src
}

func isLogFile(name string) bool {
	return strings.HasSuffix(name, logExt)
}

// Discover walks root and returns every log file below it, sorted by path.
// Unreadable directories are reported and skipped.
func Discover(root string) ([]Source, []error) {
	var (
		sources []Source
		errs    []error
	)

	if _, err := os.Stat(root); err != nil {
		return nil, []error{fmt.Errorf("%w: %s: %w", model.ErrSourceUnreadable, root, err)}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			errs = append(errs, fmt.Errorf("%w: walk %s: %w", model.ErrSourceUnreadable, path, walkErr))
			return nil
		}
		if d.IsDir() || !isLogFile(d.Name()) {
			return nil
		}
		sources = append(sources, SourceFromPath(path))
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, errs
}
