// Package daemon watches the task store for changes and keeps the
// sqlite query cache in sync, optionally broadcasting updates to the
// dashboard.
package daemon

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates the store file was created.
	OpCreate EventOp = iota
	// OpModify indicates the store file was modified.
	OpModify
	// OpDelete indicates the store file was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// StoreEvent is a change to the watched task store file.
type StoreEvent struct {
	// Path is the absolute path of the file that changed.
	Path string
	// Op is the operation that occurred.
	Op EventOp
}

// StoreWatcher watches the .loom directory for task store changes.
// It uses fsnotify for cross-platform file system event monitoring;
// only events for the named store file are emitted.
type StoreWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan StoreEvent
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	dir      string
	fileName string
}

// NewStoreWatcher creates a watcher for fileName inside dir. The
// watcher must be started with Start() before it emits events.
func NewStoreWatcher(dir, fileName string) (*StoreWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &StoreWatcher{
		watcher:  watcher,
		events:   make(chan StoreEvent, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		dir:      dir,
		fileName: fileName,
	}, nil
}

// Start begins watching the store directory. The directory (not the
// file) is watched so atomic rename-over writes are observed.
func (sw *StoreWatcher) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		return fmt.Errorf("watcher already running")
	}

	if err := sw.watcher.Add(sw.dir); err != nil {
		return fmt.Errorf("failed to watch store directory %s: %w", sw.dir, err)
	}

	sw.running = true
	sw.wg.Add(1)
	go sw.processEvents()

	return nil
}

// Stop stops watching and cleans up resources. It blocks until the
// event processing goroutine has exited.
func (sw *StoreWatcher) Stop() error {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.done)

	if err := sw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	sw.wg.Wait()

	close(sw.events)
	close(sw.errors)
	return nil
}

// Events returns the channel emitting store change notifications.
// Closed when the watcher is stopped.
func (sw *StoreWatcher) Events() <-chan StoreEvent {
	return sw.events
}

// Errors returns the channel emitting watch errors. Closed when the
// watcher is stopped.
func (sw *StoreWatcher) Errors() <-chan error {
	return sw.errors
}

// IsRunning returns true if the watcher is currently running.
func (sw *StoreWatcher) IsRunning() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.running
}

// processEvents converts fsnotify events into StoreEvents.
func (sw *StoreWatcher) processEvents() {
	defer sw.wg.Done()

	for {
		select {
		case <-sw.done:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if storeEvent, ok := sw.convertEvent(event); ok {
				select {
				case sw.events <- storeEvent:
				case <-sw.done:
					return
				}
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case sw.errors <- err:
			case <-sw.done:
				return
			}
		}
	}
}

// convertEvent filters fsnotify events down to changes of the watched
// store file. Returns (StoreEvent, true) for events of interest.
func (sw *StoreWatcher) convertEvent(event fsnotify.Event) (StoreEvent, bool) {
	if filepath.Base(event.Name) != sw.fileName {
		return StoreEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		// Atomic saves rename a temp file over the target, surfacing
		// as Create.
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return StoreEvent{}, false
	}

	return StoreEvent{Path: event.Name, Op: op}, true
}
