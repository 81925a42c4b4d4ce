// Package watch turns filesystem events on project manifests into change
// notifications for the engine. It complements the host's own notifications
// for setups where packages are edited outside the IDE.
package watch

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

// projectExtensions are the manifest extensions whose changes mean a
// project's installed packages may have moved.
var projectExtensions = map[string]struct{}{
	".csproj": {},
	".fsproj": {},
	".vbproj": {},
}

const packagesManifest = "packages.config"

// Watcher observes solution directories and emits change events. Debouncing
// is not done here; the engine's batching queue already coalesces.
type Watcher struct {
	watcher  *fsnotify.Watcher
	log      *logging.Logger
	onChange host.ChangeHandler
}

// New creates a watcher over the given directories. Directories that cannot
// be watched are logged and skipped.
func New(dirs []string, log *logging.Logger, onChange host.ChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	return &Watcher{watcher: fw, log: log, onChange: onChange}, nil
}

// Run consumes filesystem events until ctx is cancelled. It blocks; callers
// start it on its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if change, ok := classify(event); ok {
				w.log.Debug("manifest change",
					zap.String("path", event.Name),
					zap.Stringer("kind", change.Kind))
				w.onChange(change)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", zap.Error(err))
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// classify maps one filesystem event to a change event, if it concerns a
// manifest the engine cares about.
func classify(event fsnotify.Event) (host.ChangeEvent, bool) {
	name := filepath.Base(event.Name)
	ext := strings.ToLower(filepath.Ext(name))

	if ext == ".sln" {
		return host.ChangeEvent{Kind: host.EventSolutionChanged}, true
	}

	if _, ok := projectExtensions[ext]; ok {
		kind := host.EventProjectChanged
		switch {
		case event.Op&fsnotify.Create != 0:
			kind = host.EventProjectAdded
		case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			kind = host.EventProjectRemoved
		}
		return host.ChangeEvent{Kind: kind, Project: project.ID(event.Name)}, true
	}

	// An edited packages.config is a change to the project in its directory.
	if name == packagesManifest {
		return host.ChangeEvent{
			Kind:    host.EventProjectChanged,
			Project: project.ID(filepath.Dir(event.Name)),
		}, true
	}

	return host.ChangeEvent{}, false
}
