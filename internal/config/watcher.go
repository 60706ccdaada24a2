package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher reports changes to a single config file. It watches the parent
// directory so editors that save by rename are still seen, and falls back to
// mtime polling when fsnotify is unavailable.
type Watcher struct {
	path string

	// events is buffered to 1 so bursts of writes coalesce into one signal.
	events chan struct{}
	done   chan struct{}
	once   sync.Once

	// fsw is only touched by the goroutine that owns it after construction.
	fsw          *fsnotify.Watcher
	polling      atomic.Bool
	pollInterval time.Duration
}

// NewWatcher starts watching the config file at path. The file need not
// exist yet; its directory must.
func NewWatcher(path string) (*Watcher, error) {
	return newWatcher(path, 2*time.Second)
}

func newWatcher(path string, pollInterval time.Duration) (*Watcher, error) {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("config watcher: %s is not a directory", dir)
	}

	w := &Watcher{
		path:         path,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, polling config file", "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch config directory, polling config file", "dir", dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}
	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Events signals after the config file is written, created, or renamed into place.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Polling reports whether the watcher fell back to mtime polling.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil && !w.polling.Load() {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// watch forwards fsnotify events for the config file. On an fsnotify error it
// switches to polling for the rest of the watcher's life.
func (w *Watcher) watch() {
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, polling config file", "error", err)
			w.polling.Store(true)
			w.fsw.Close()
			go w.poll()
			return
		}
	}
}

// poll stats the config file every pollInterval and signals when its
// modification time moves forward.
func (w *Watcher) poll() {
	lastMod := w.modTime()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if mod := w.modTime(); mod.After(lastMod) {
				lastMod = mod
				w.notify()
			}
		}
	}
}

func (w *Watcher) modTime() time.Time {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// notify queues one signal unless one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
