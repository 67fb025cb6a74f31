// Package watch reports files that appear or change under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long a file must be quiet before it is reported.
	DefaultDebounce = 500 * time.Millisecond

	eventBuffer = 256
)

// DefaultExtensions are the file extensions watched when none are given.
var DefaultExtensions = []string{".csv", ".txt"}

// Config configures a Watcher.
type Config struct {
	Debounce   time.Duration
	Extensions []string
}

// Watcher emits the paths of files created or written under a directory,
// once per burst of writes.
type Watcher struct {
	dir        string
	debounce   time.Duration
	extensions map[string]bool
	fsw        *fsnotify.Watcher
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	events  chan string
	dropped atomic.Int64
}

// New watches dir and every directory below it. Hidden directories are
// skipped.
func New(dir string, cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}

	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[strings.ToLower(ext)] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:        dir,
		debounce:   cfg.Debounce,
		extensions: extensions,
		fsw:        fsw,
		logger:     logger,
		pending:    make(map[string]time.Time),
		events:     make(chan string, eventBuffer),
	}
	if err := w.addRecursive(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Events returns the channel of ready file paths. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Dropped returns how many paths were discarded because Events was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops a watcher whose Run was never started.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes file system events until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fsw.Close()

	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()

	w.logger.Info("watching for imports", "dir", w.dir, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush emits the files that have been quiet for the debounce period.
func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		select {
		case w.events <- path:
		default:
			n := w.dropped.Add(1)
			w.logger.Warn("event channel full, dropping file", "path", path, "total_dropped", n)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}
