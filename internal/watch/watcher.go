// Package watch reloads jurisdictions when their data files change.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Invalidator drops a jurisdiction so that it is reloaded on next use.
// *zoning.Engine implements it.
type Invalidator interface {
	Invalidate(name string)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a jurisdiction must be quiet after a change
	// before it is invalidated. Editors and GIS exports often write a file
	// in several steps.
	Debounce time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns a 250ms debounce.
func DefaultOptions() Options {
	return Options{Debounce: 250 * time.Millisecond}
}

// Watcher invalidates jurisdictions whose files are created, written,
// removed or renamed. Directories are watched rather than files so that
// atomic replace-by-rename is seen.
type Watcher struct {
	files    map[string]string // cleaned path -> jurisdiction
	target   Invalidator
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for files, which maps each data file to its
// jurisdiction as returned by zoning.Engine.Files.
func New(files map[string]string, target Invalidator, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cleaned := make(map[string]string, len(files))
	for p, name := range files {
		cleaned[filepath.Clean(p)] = name
	}
	return &Watcher{
		files:    cleaned,
		target:   target,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Dirs returns the directories holding watched files, sorted.
func (w *Watcher) Dirs() []string {
	seen := make(map[string]struct{})
	for p := range w.files {
		seen[filepath.Dir(p)] = struct{}{}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Start begins watching. Directories that do not exist are skipped. It
// returns once the watches are registered; events are handled until Stop
// is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.Dirs() {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Debug("not watching directory", "dir", dir, "error", err)
			continue
		}
		w.logger.Debug("watching directory", "dir", dir)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

func (w *Watcher) loop(ctx context.Context) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(relevantOps) {
				continue
			}
			name, ok := w.files[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			w.logger.Debug("data file changed", "path", event.Name, "op", event.Op.String(), "jurisdiction", name)
			pending[name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)

		case <-timer.C:
			for name := range pending {
				w.target.Invalidate(name)
			}
			clear(pending)
		}
	}
}
