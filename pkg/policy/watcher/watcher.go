package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc performs one reload. trigger names the source ("watch" or
// "poll"). Errors are logged by the caller of ReloadFunc, never returned to
// the event loop.
type ReloadFunc func(ctx context.Context, trigger string)

// Config configures a FileWatcher.
type Config struct {
	// Path is the artifact file.
	Path string

	// Debounce is the quiet period (default: 500ms).
	Debounce time.Duration
}

// FileWatcher reloads the artifact when it is created, written or renamed.
type FileWatcher struct {
	config   Config
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer

	dir  string
	name string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewFileWatcher creates a watcher for config.Path. The directory must exist;
// the file itself may appear later.
func NewFileWatcher(config Config, logger *slog.Logger) (*FileWatcher, error) {
	if config.Path == "" {
		return nil, errors.New("watch path is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", config.Path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		config:   config,
		watcher:  w,
		logger:   logger.With("component", "watcher"),
		debounce: NewDebouncer(config.Debounce),
		dir:      filepath.Dir(abs),
		name:     filepath.Base(abs),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, calling reload after
// each debounced burst of events on the artifact.
func (fw *FileWatcher) Watch(ctx context.Context, reload ReloadFunc) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return errors.New("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()
	defer close(fw.doneCh)

	if err := fw.watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", fw.dir, err)
	}

	fw.logger.Info("File watcher started",
		"path", fw.config.Path,
		"debounce_ms", fw.config.Debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("File watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("File watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !fw.relevant(event) {
				continue
			}

			fw.logger.Debug("File event detected", "path", event.Name, "op", event.Op.String())

			fw.debounce.Trigger(func() {
				fw.logger.Info("Triggering policy reload", "path", fw.config.Path)
				reload(ctx, "watch")
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			// transient; the next event retries
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// relevant keeps create, write and rename events on the artifact itself.
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != fw.name {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

// Stop ends Watch, cancels a pending reload and closes the watcher.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.once.Do(func() {
		fw.mu.Lock()
		running := fw.running
		fw.mu.Unlock()

		close(fw.stopCh)
		if running {
			<-fw.doneCh
		}
		fw.debounce.Stop()
		if cerr := fw.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
	})
	return err
}
