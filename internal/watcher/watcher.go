// Package watcher feeds filesystem changes in watched directories into the
// import pipeline. Changed files are debounced per path so editors that
// write in bursts trigger a single import.
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

	"github.com/hyperjump/mieru/internal/config"
)

// defaultDebounce is how long a path must stay quiet before it is imported.
const defaultDebounce = 400 * time.Millisecond

// extSet holds the watched file extensions, lowercased without the leading
// dot. An empty set matches every file.
type extSet map[string]struct{}

func newExtSet(extensions []string) extSet {
	s := make(extSet, len(extensions))
	for _, e := range extensions {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			s[e] = struct{}{}
		}
	}
	return s
}

func (s extSet) match(path string) bool {
	if len(s) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := s[ext]
	return ok
}

// Watcher mirrors the watch section of the config onto the filesystem: it
// watches the configured roots and reports matching file changes through the
// import and remove callbacks. Roots can be added and removed at runtime,
// which is how the watch API endpoints reconfigure a running server.
type Watcher struct {
	onImport  func(path string)
	onRemove  func(path string)
	recursive bool
	debounce  time.Duration
	exts      extSet
	logger    *zap.Logger

	mu      sync.Mutex
	roots   []string
	fsw     *fsnotify.Watcher
	watched map[string][]string // root -> directories registered with fsnotify
	pending map[string]*time.Timer
	running bool

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger enables debug logging of watch events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the quiet period before a changed file is imported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New builds a watcher from the watch section of the config. onImport and
// onRemove receive the path of a file that appeared or changed, or was
// removed, and may be nil.
func New(cfg *config.WatchConfig, onImport, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		onImport:  onImport,
		onRemove:  onRemove,
		recursive: cfg.RecursiveOrDefault(),
		debounce:  defaultDebounce,
		exts:      newExtSet(cfg.Extensions),
		roots:     append([]string(nil), cfg.Directories...),
		watched:   make(map[string][]string),
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the configured roots and begins dispatching events. It
// returns once the event loop is running; the loop ends when ctx is
// cancelled or Stop is called. Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.running = true
	if w.logger != nil {
		w.logger.Debug("watch starting",
			zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	}
	for _, root := range w.roots {
		if err := w.watchTreeLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.running = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

// dispatch routes one fsnotify event. New directories are adopted into the
// watch set, new or rewritten files are debounced, removals cancel any
// pending import and notify the remove callback.
func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watch event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.adoptDirectory(path)
			return
		}
		if w.exts.match(path) {
			w.schedule(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.discard(path)
		if w.exts.match(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// adoptDirectory starts watching a directory that appeared under a root,
// then imports the matching files it already contains. In non-recursive
// mode subdirectories are ignored.
func (w *Watcher) adoptDirectory(dir string) {
	if !w.recursive {
		return
	}
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil && w.logger != nil {
				w.logger.Debug("watch add failed", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.importTree(dir)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		if within(filepath.Clean(root), path) {
			return true
		}
	}
	return false
}

// within reports whether path is dir itself or inside it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// schedule arms or re-arms the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.Debug("watch import", zap.String("path", path))
		}
		if w.onImport != nil {
			w.onImport(path)
		}
	})
}

// discard drops any pending import for path.
func (w *Watcher) discard(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddDirectory adds a root at runtime. When syncExisting is set, matching
// files already under the root are imported in the background.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == filepath.Clean(abs) {
			return nil
		}
	}
	if err := w.watchTreeLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Debug("watch root added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	}
	if syncExisting && w.onImport != nil {
		go w.importTree(abs)
	}
	return nil
}

// watchTreeLocked registers root (and its subdirectories in recursive mode)
// with fsnotify, creating the root when it does not exist yet. The caller
// holds w.mu.
func (w *Watcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var dirs []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			dirs = append(dirs, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		dirs = append(dirs, root)
	}
	w.watched[root] = dirs
	return nil
}

// importTree synchronously imports every matching file under root.
func (w *Watcher) importTree(root string) {
	if w.onImport == nil {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watch sync", zap.String("root", root))
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.exts.match(path) {
			w.onImport(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching the given root. Records already imported
// from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, dir := range w.watched[abs] {
		_ = w.fsw.Remove(dir)
	}
	delete(w.watched, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.logger != nil {
		w.logger.Debug("watch root removed", zap.String("path", abs))
	}
	return nil
}

// Directories returns a copy of the current watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles imports matching files that were already present when
// the watcher started. Call it once after Start.
func (w *Watcher) SyncExistingFiles() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		w.importTree(root)
	}
}

// Stop closes the fsnotify watcher and cancels pending imports.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.running = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
