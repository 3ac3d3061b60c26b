// Package watch rebuilds whenever spec-definition files change.
//
// Builds never overlap. Events are debounced, and any number of events
// arriving while a build runs schedule exactly one follow-up build.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/specforge/internal/loader"
)

// DefaultDebounce is the quiet period required before a rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc runs one build. Its error is logged; the watcher keeps going.
type BuildFunc func(ctx context.Context) error

// Watcher monitors a spec tree and runs builds on change.
type Watcher struct {
	root     string
	build    BuildFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	trigger  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Default: DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a watcher for the tree at root.
func New(root string, build BuildFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve specs path: %w", err)
	}

	w := &Watcher{
		root:     abs,
		build:    build,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run builds once, then rebuilds on every debounced change until ctx is
// done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching specs", "root", w.root, "debounce", w.debounce)

	go w.watchLoop(ctx)

	w.runBuild(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
		}
		if !w.settle(ctx) {
			return nil
		}
		w.runBuild(ctx)
	}
}

// Trigger requests a rebuild as if a spec file had changed.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
		// Rebuild already pending
	}
}

// settle waits until no trigger has arrived for the debounce period.
func (w *Watcher) settle(ctx context.Context) bool {
	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-w.trigger:
			timer.Reset(w.debounce)
		case <-timer.C:
			return true
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context) {
	start := time.Now()
	if err := w.build(ctx); err != nil {
		w.logger.Error("build failed", "error", err, "elapsed", time.Since(start))
		return
	}
	w.logger.Debug("build complete", "elapsed", time.Since(start))
}

// watchLoop turns file system events into triggers.
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.logger.Debug("spec change detected", "file", event.Name, "op", event.Op.String())
				w.Trigger()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether event may change the discovered spec set.
// New directories are watched as they appear.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if hidden(w.root, event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err == nil && isDir(event.Name) {
			return true
		}
	}
	if loader.IsSpecFile(filepath.Base(event.Name)) {
		return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
	}
	// A removed or renamed directory may have held specs.
	return event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && !strings.Contains(filepath.Base(event.Name), ".")
}

// addTree watches dir and every non-hidden directory below it. Paths that
// are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	if !isDir(dir) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
