// Package watch reports when any of a set of input files changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/pgrepwc/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// DefaultDebounce coalesces editor save bursts into one change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches the directories holding a set of files and delivers the
// changed files, debounced, on Changes. Directories are watched rather than
// files so that editors replacing a file by rename are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	changes  chan []string

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New creates a watcher for paths. Call Run to start delivering changes.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		changes:  make(chan []string, 1),
		pending:  make(map[string]bool),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	watchLog.Debug("watching", slog.Int("files", len(w.files)), slog.Int("dirs", len(dirs)))
	return w, nil
}

// Changes delivers the sorted absolute paths changed since the last delivery.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			w.schedule(name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)

	select {
	case w.changes <- files:
		watchLog.Debug("change_delivered", slog.Int("files", len(files)))
	default:
		// A delivery is already queued; the rerun it triggers reads these files too.
		logging.Aggregate(logging.CompWatch, "change_coalesced", slog.Int("files", len(files)))
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
