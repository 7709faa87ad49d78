// Package watch monitors the records directory for file changes so a
// foreground process can react to edits made by other tether invocations
// or by hand in an editor.
//
// Raw fsnotify events are coalesced: bursts of writes within the debounce
// window collapse into a single notification.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits for a burst of events to
// settle before notifying.
const defaultDebounce = 500 * time.Millisecond

// Watcher watches one records directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	events   chan struct{}
	errors   chan error
	done     chan struct{}
	debounce time.Duration

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates a watcher. Start must be called before events flow.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		events:   make(chan struct{}, 1),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		debounce: defaultDebounce,
	}, nil
}

// Events delivers one value per settled burst of record-file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Errors delivers watcher-level errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching recordsDir for record-file changes.
func (w *Watcher) Start(recordsDir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(recordsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", recordsDir, err)
	}
	w.running = true

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends watching and closes the event channels.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.done)
	_ = w.watcher.Close()
	w.wg.Wait()
	close(w.events)
	close(w.errors)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			// Drop the notification if the consumer is still busy with
			// the previous one; it will re-scan everything anyway.
			select {
			case w.events <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// relevant filters to record files, ignoring editor temp files and the
// atomic-rename staging files the store itself writes.
func relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".md") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
