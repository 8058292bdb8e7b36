package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mschnitzer/daps-buildenv/internal/logfields"
)

// configWatcher reloads the autobuild configuration when the file changes.
// The parent directory is watched because editors replace files on save.
type configWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	// debounce collapses the write bursts editors produce into one reload.
	debounce time.Duration
}

func newConfigWatcher(path string, onChange func()) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return &configWatcher{
		path:     path,
		onChange: onChange,
		watcher:  watcher,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching until the context is canceled.
func (w *configWatcher) Start(ctx context.Context) {
	go func() {
		defer w.watcher.Close()

		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				slog.Debug("Autobuild config changed on disk", logfields.Path(w.path))
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, w.onChange)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", logfields.Error(err))
			}
		}
	}()
}
