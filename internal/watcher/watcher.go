// Package watcher follows import directories with fsnotify and reports debounced file changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Handler receives file events. FileChanged is debounced per path. DirectoryRemoved is called
// once when a watched directory is deleted or moved away; files inside it get no event of
// their own in the move case.
type Handler interface {
	FileChanged(ctx context.Context, path string)
	FileRemoved(ctx context.Context, path string)
	DirectoryRemoved(ctx context.Context, dir string)
}

// Options selects which files under the watched roots are reported.
type Options struct {
	// Extensions filters files by extension, case-insensitively. Empty matches every file.
	Extensions []string
	Recursive  bool
	Debounce   time.Duration
}

// Watcher watches root directories and forwards file events to a Handler.
type Watcher struct {
	handler Handler
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	fsw     *fsnotify.Watcher
	roots   []string
	watched map[string][]string // root -> directories registered with fsnotify
	pending map[string]*time.Timer
	done    chan struct{}
	stop    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for roots. Nothing is watched until Start.
func New(roots []string, handler Handler, o Options, opts ...Option) *Watcher {
	if o.Debounce <= 0 {
		o.Debounce = defaultDebounce
	}
	w := &Watcher{
		handler: handler,
		opts:    o,
		logger:  zap.NewNop(),
		watched: make(map[string][]string),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the roots, creating missing ones, and processes events until ctx is done or
// Stop is called. Handler calls receive ctx.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.logger.Info("Watching import directories",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.opts.Extensions),
		zap.Bool("recursive", w.opts.Recursive))
	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.isUnderRoot(path) {
		return
	}
	w.logger.Debug("File event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addSubdirectory(path)
			return
		}
		if matchExtension(path, w.opts.Extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		// A rename reports the old name; the new name arrives as a Create.
		w.cancel(path)
		if w.forgetDirectory(path) {
			w.handler.DirectoryRemoved(w.handlerContext(), path)
			return
		}
		if matchExtension(path, w.opts.Extensions) {
			w.handler.FileRemoved(w.handlerContext(), path)
		}
	}
}

// addSubdirectory watches a directory created under a root and imports the files already in it.
func (w *Watcher) addSubdirectory(dir string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	root := w.rootOfLocked(dir)
	if w.opts.Recursive {
		dirs, err := w.addTreeLocked(dir)
		if err != nil {
			w.logger.Warn("Failed to watch new directory", zap.String("path", dir), zap.Error(err))
		}
		w.watched[root] = append(w.watched[root], dirs...)
	}
	w.mu.Unlock()

	if w.opts.Recursive {
		w.syncTree(dir)
	}
}

// forgetDirectory drops dir and everything beneath it from the watch list. It reports whether
// dir was being watched.
func (w *Watcher) forgetDirectory(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	root := w.rootOfLocked(dir)
	dirs := w.watched[root]
	found := false
	kept := dirs[:0]
	for _, d := range dirs {
		if !inDir(dir, d) {
			kept = append(kept, d)
			continue
		}
		if d == dir {
			found = true
		}
		if w.fsw != nil {
			_ = w.fsw.Remove(d)
		}
	}
	if root != "" {
		w.watched[root] = kept
	}
	return found
}

func (w *Watcher) handlerContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

func (w *Watcher) isUnderRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootOfLocked(path) != ""
}

func (w *Watcher) rootOfLocked(path string) string {
	for _, root := range w.roots {
		if inDir(root, path) {
			return root
		}
	}
	return ""
}

// inDir reports whether path is dir or lies beneath it.
func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.handler.FileChanged(w.handlerContext(), path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) watchRootLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.opts.Recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.watched[root] = []string{root}
		return nil
	}
	dirs, err := w.addTreeLocked(root)
	if err != nil {
		for _, d := range dirs {
			_ = w.fsw.Remove(d)
		}
		return err
	}
	w.watched[root] = dirs
	return nil
}

// addTreeLocked registers dir and every directory beneath it. It returns the directories added.
func (w *Watcher) addTreeLocked(dir string) ([]string, error) {
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		added = append(added, path)
		return nil
	})
	return added, err
}

// syncTree reports every matching file under dir as changed, without debouncing.
func (w *Watcher) syncTree(dir string) {
	ctx := w.handlerContext()
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.opts.Extensions) {
			w.handler.FileChanged(ctx, path)
		}
		return nil
	})
}

// AddDirectory starts watching root and, when syncExisting is set, imports its files in the
// background. Adding a watched root again is a no-op.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	for _, r := range w.roots {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if w.fsw != nil {
		if err := w.watchRootLocked(abs); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	w.logger.Info("Import directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncTree(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Nodes already imported from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.roots {
		if r != abs {
			continue
		}
		if w.fsw != nil {
			for _, d := range w.watched[abs] {
				_ = w.fsw.Remove(d)
			}
		}
		delete(w.watched, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.logger.Info("Import directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles reports every matching file under every root as changed. Call it after
// Start to import files that predate the watcher.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncTree(root)
	}
}

// Stop releases the fsnotify watcher and drops pending events. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		w.mu.Unlock()
		close(w.done)
	})
}
