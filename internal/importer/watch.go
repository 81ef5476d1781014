package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a log file must stay quiet before it is re-synced.
const DefaultDebounce = 500 * time.Millisecond

// Watch re-syncs log files under root as they are written, until ctx is
// done. Changes are debounced and synced from a single goroutine, so
// sources are still processed one at a time. fn receives every result.
func (im *Importer) Watch(ctx context.Context, root string, debounce time.Duration, fn func(Result)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := im.watchTree(w, root); err != nil {
		return err
	}
	im.log.Info().Str("root", root).Dur("debounce", debounce).Msg("watching for session log changes")

	pending := map[string]struct{}{}
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := im.watchTree(w, ev.Name); err != nil {
						im.log.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch new directory")
					}
					// Files written before the watch was added would be missed.
					srcs, _ := Discover(ev.Name)
					for _, src := range srcs {
						pending[src.Path] = struct{}{}
					}
					if len(srcs) > 0 {
						timer.Reset(debounce)
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isLogFile(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.log.Error().Err(err).Msg("watcher error")

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				if ctx.Err() != nil {
					return nil
				}
				res := im.Sync(ctx, SourceFromPath(p))
				if fn != nil {
					fn(res)
				}
			}
		}
	}
}

// watchTree adds dir and every directory below it; fsnotify is not recursive.
func (im *Importer) watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			im.log.Warn().Err(err).Str("dir", path).Msg("skipping unreadable directory")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
