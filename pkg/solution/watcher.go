package solution

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/buildsmith/buildsmith/pkg/telemetry"
)

// Watcher observes a solution's configuration files and invokes a callback
// when any of them change. Events are debounced so that editors which write
// a file in several steps trigger one reload.
type Watcher struct {
	log     *telemetry.Logger
	watcher *fsnotify.Watcher
	delay   time.Duration
}

// NewWatcher creates a watcher over the solution file, its referenced project
// files and, when present, the shared defaults file.
func NewWatcher(log *telemetry.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		log:     log.NewComponentLogger("watcher"),
		watcher: w,
		delay:   500 * time.Millisecond,
	}, nil
}

// Watch registers the solution's file set and blocks processing events until
// ctx is cancelled. onChange runs after the debounce window closes; its error
// is logged, not fatal, so a broken intermediate edit does not stop the watch.
func (w *Watcher) Watch(ctx context.Context, sol *Solution, defaultsPath string, onChange func(context.Context) error) error {
	// Watch directories rather than files: most editors replace files on
	// save, which drops a plain file watch.
	dirs := map[string]bool{filepath.Dir(sol.FilePath): true}
	for _, prj := range sol.Projects {
		path := prj
		if !filepath.IsAbs(path) {
			path = filepath.Join(sol.Directory, path)
		}
		dirs[filepath.Dir(path)] = true
	}
	if defaultsPath != "" {
		dirs[filepath.Dir(defaultsPath)] = true
	}

	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.log.Infof("watching %d directories for configuration changes", len(dirs))

	var reloadTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isConfigFile(event.Name) {
				continue
			}
			w.log.WithField("file", event.Name).Debug("configuration file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				if err := onChange(ctx); err != nil {
					w.log.WithError(err).Error("reload after configuration change failed")
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("watcher error")
		}
	}
}

// Close releases the underlying file system watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// isConfigFile reports whether a changed path is part of the configuration
// file set: solution, project or defaults YAML.
func isConfigFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".yml") && !strings.HasSuffix(base, ".yaml") {
		return false
	}
	return strings.Contains(base, ".solution.") ||
		strings.Contains(base, ".project.") ||
		strings.HasPrefix(base, "defaults.")
}
