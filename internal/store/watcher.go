package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the store when the backing data file is edited outside
// the process, so the web and CLI layers keep auditing current data.
type Watcher struct {
	store   *Store
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a file watcher for a store with a file backend.
func NewWatcher(s *Store, path string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: atomic saves replace the file
	// by rename, which drops a watch registered on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		store:   s,
		path:    path,
		logger:  logger,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	// Debounce: editors and our own atomic saves produce event bursts.
	var pending <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := w.store.Reload(ctx); err != nil {
				w.logger.Error("Failed to reload data file", zap.Error(err))
			} else {
				w.logger.Info("Data file changed on disk, table reloaded",
					zap.String("path", w.path))
			}
			cancel()
		}
	}
}
