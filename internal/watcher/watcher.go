// Package watcher monitors the ingest directory and enqueues a pipeline for
// every media file that appears.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"substream/internal/config"
	"substream/internal/fileutil"
	"substream/internal/logging"
	"substream/internal/services"
)

// EnqueueFunc starts a pipeline for one discovered file.
type EnqueueFunc func(ctx context.Context, filePath, ownerID string) (string, error)

// Watcher debounces filesystem events under the ingest directory. Writers
// that stream a file emit many events; only the last one within the
// debounce window triggers enqueueing.
type Watcher struct {
	dir      string
	ownerID  string
	debounce time.Duration
	enqueue  EnqueueFunc
	logger   *slog.Logger

	fw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	stop   chan struct{}
	done   chan struct{}
}

// New creates a watcher over the ingest directory.
func New(dir string, cfg config.Watcher, enqueue EnqueueFunc, logger *slog.Logger) (*Watcher, error) {
	if dir == "" || cfg.OwnerID == "" || enqueue == nil {
		return nil, services.Wrap(services.ErrValidation, "watcher", "new", "directory, owner id, and enqueue func are required", nil)
	}
	debounce := time.Duration(cfg.DebounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		dir:      dir,
		ownerID:  cfg.OwnerID,
		debounce: debounce,
		enqueue:  enqueue,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start registers the directory tree and begins consuming events.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "watcher", "start", "create filesystem watcher", err)
	}
	w.fw = fw

	if err := w.addRecursive(w.dir); err != nil {
		_ = fw.Close()
		return err
	}

	go w.eventLoop(ctx)
	w.logger.Info("watching ingest directory", logging.String("dir", w.dir))
	return nil
}

// Stop halts event processing and cancels pending debounce timers.
func (w *Watcher) Stop() {
	close(w.stop)
	if w.fw != nil {
		_ = w.fw.Close()
	}
	<-w.done

	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
}

func (w *Watcher) addRecursive(root string) error {
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "watcher", "watch", root, err)
	}
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part") {
		return
	}

	// New subdirectories join the watch so nested drops are seen.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch subdirectory failed", logging.String("dir", event.Name), logging.Error(err))
			}
		}
		return
	}

	if !fileutil.IsMediaFile(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		default:
		}

		handle, err := w.enqueue(ctx, path, w.ownerID)
		if err != nil {
			w.logger.Error("enqueue failed", logging.String("path", path), logging.Error(err))
			return
		}
		w.logger.Info("file enqueued",
			logging.String("path", path),
			logging.String("handle", handle))
	})
}
