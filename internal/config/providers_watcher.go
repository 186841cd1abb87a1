package config

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called when the providers config file is successfully reloaded.
// If the callback returns an error, it is logged but the watcher continues watching.
type ReloadCallback func(config *ProvidersFile) error

// ProvidersWatcherConfig holds configuration for the ProvidersWatcher.
type ProvidersWatcherConfig struct {
	// FilePath is the path to the providers YAML file to watch
	FilePath string

	// DebounceMillis is the debounce period in milliseconds
	// Multiple file change events within this period will be coalesced into a single reload
	// Default: 500ms
	DebounceMillis int
}

// ProvidersWatcher watches an providers config file for changes and triggers
// reload callbacks with debouncing to prevent reload storms from editor save sequences.
//
// Invalid configs during reload are logged but do not crash the watcher - it continues
// watching with the previous valid config.
type ProvidersWatcher struct {
	config   ProvidersWatcherConfig
	callback ReloadCallback
	cancel   context.CancelFunc
	stopped  chan struct{}
	mu       sync.Mutex

	// debounceTimer is used to coalesce multiple file change events
	debounceTimer *time.Timer
}

// NewProvidersWatcher creates a new watcher for the given config file.
// The callback will be invoked when the file changes and the new config is valid.
//
// Returns an error if FilePath is empty.
func NewProvidersWatcher(config ProvidersWatcherConfig, callback ReloadCallback) (*ProvidersWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}

	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	// Set default debounce if not specified
	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}

	return &ProvidersWatcher{
		config:   config,
		callback: callback,
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching the config file for changes.
// It loads the initial config, calls the callback, and then watches for file changes.
//
// It returns once watching has started; the watch loop runs in a goroutine
// until Stop() is called or the context is cancelled.
// Returns an error if initial config load fails or callback returns error.
func (w *ProvidersWatcher) Start(ctx context.Context) error {
	// Load initial config
	initialConfig, err := LoadProvidersFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	// Call callback with initial config (fail fast if callback errors)
	if err := w.callback(initialConfig); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	log.Printf("ProvidersWatcher: loaded initial config from %s", w.config.FilePath)

	// Create watcher context
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	// Start watching in a goroutine
	go w.watchLoop(watchCtx)

	return nil
}

// watchLoop is the main file watching loop
func (w *ProvidersWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)

	// Create fsnotify watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("ProvidersWatcher: failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	// Add file to watcher
	if err := watcher.Add(w.config.FilePath); err != nil {
		log.Printf("ProvidersWatcher: failed to watch file %s: %v", w.config.FilePath, err)
		return
	}

	log.Printf("ProvidersWatcher: watching %s for changes (debounce: %dms)",
		w.config.FilePath, w.config.DebounceMillis)

	for {
		select {
		case <-ctx.Done():
			log.Printf("ProvidersWatcher: context cancelled, stopping")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				log.Printf("ProvidersWatcher: watcher events channel closed")
				return
			}

			// An atomic write (temp file + rename) replaces the file and drops
			// the watch on the old inode: watch the path again, then reload.
			if event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename {
				if err := watcher.Add(w.config.FilePath); err != nil {
					log.Printf("ProvidersWatcher: failed to re-watch file %s: %v", w.config.FilePath, err)
				}
				w.handleFileChange(ctx)
				continue
			}

			// Check if this is a relevant event (Write or Create)
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.handleFileChange(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				log.Printf("ProvidersWatcher: watcher errors channel closed")
				return
			}
			log.Printf("ProvidersWatcher: watcher error: %v", err)
		}
	}
}

// handleFileChange is called when a file change event is detected.
// It implements debouncing by resetting a timer on each event.
func (w *ProvidersWatcher) handleFileChange(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Reset the debounce timer if it exists
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	// Create new timer that will trigger reload after debounce period
	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		func() {
			w.reloadConfig(ctx)
		},
	)
}

// reloadConfig reloads the config file and calls the callback if successful.
// Invalid configs are logged but don't crash the watcher.
func (w *ProvidersWatcher) reloadConfig(ctx context.Context) {
	log.Printf("ProvidersWatcher: reloading config from %s", w.config.FilePath)

	// Load new config
	newConfig, err := LoadProvidersFile(w.config.FilePath)
	if err != nil {
		// Log error but continue watching with previous config
		log.Printf("ProvidersWatcher: failed to load config (keeping previous config): %v", err)
		return
	}

	// Call callback with new config
	if err := w.callback(newConfig); err != nil {
		// Log error but continue watching
		log.Printf("ProvidersWatcher: callback error (continuing to watch): %v", err)
		return
	}

	log.Printf("ProvidersWatcher: config reloaded successfully")
}

// Stop gracefully stops the file watcher.
// Waits for the watch loop to exit with a timeout of 5 seconds.
// Returns an error if the timeout is exceeded.
func (w *ProvidersWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}

	// Wait for stopped signal with timeout
	timeout := time.After(5 * time.Second)
	select {
	case <-w.stopped:
		log.Printf("ProvidersWatcher: stopped gracefully")
		return nil
	case <-timeout:
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
}
