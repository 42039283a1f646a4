package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchFile reports changes to a single file. It watches the parent directory so atomic
// replace-by-rename is seen, and coalesces bursts into one signal per debounce window.
func WatchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger) (<-chan struct{}, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create.failed", "error", err)
		return nil, nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		logger.Error("watcher.add.failed", "dir", dir, "error", err)
		return nil, nil, err
	}

	evCh := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher.close.failed", "error", err)
			}
		}()

		var fire <-chan time.Time
		var timer *time.Timer
		emit := func() {
			select {
			case evCh <- struct{}{}:
			default:
			}
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target {
					continue
				}
				if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) && !e.Has(fsnotify.Rename) && !e.Has(fsnotify.Remove) {
					continue
				}
				logger.Debug("watcher.event", "path", e.Name, "op", e.Op.String())
				if debounce <= 0 {
					emit()
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Stop()
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				emit()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
