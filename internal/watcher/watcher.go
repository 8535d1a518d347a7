// Package watcher watches a single file for edits and deletion, so that
// cleaning rules and settings can be picked up without a manual restart.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Op is what happened to the watched file.
type Op int

const (
	// Changed means the file was written, created or replaced.
	Changed Op = iota + 1
	// Deleted means the file is gone.
	Deleted
)

func (o Op) String() string {
	switch o {
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Watcher monitors one file and calls onEvent after a quiet period.
// It watches the parent directory since fsnotify cannot watch non-existent
// files and editors often replace files by rename.
type Watcher struct {
	targetPath string
	parentPath string
	onEvent    func(Op)
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a new Watcher for the given target path.
func New(targetPath string, onEvent func(Op)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onEvent:    onEvent,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   200 * time.Millisecond,
	}, nil
}

// SetDebounce changes the quiet period. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

// addWatch adds the parent directory to the watch list.
func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

// watchLoop is the main event loop. Bursts of events collapse into one
// callback carrying the last observed operation.
func (w *Watcher) watchLoop() {
	var (
		debounceTimer *time.Timer
		pending       Op
		pendingMu     sync.Mutex
	)

	schedule := func(op Op) {
		pendingMu.Lock()
		pending = op
		pendingMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.debounce, func() {
			pendingMu.Lock()
			op := pending
			pendingMu.Unlock()
			w.fire(op)
		})
	}

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if _, err := os.Stat(w.targetPath); err == nil {
					// Replaced in place by an atomic rename.
					schedule(Changed)
				} else {
					log.Info().Str("path", w.targetPath).Msg("Watched file removed")
					schedule(Deleted)
				}
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				schedule(Changed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire(op Op) {
	if w.ctx.Err() != nil {
		return
	}
	log.Info().Str("path", w.targetPath).Stringer("op", op).Msg("Watched file event")
	if w.onEvent != nil {
		w.onEvent(op)
	}
}
