package inittab

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// watchDebounce coalesces the burst of filesystem events an editor or
// installer produces when rewriting the inittab.
const watchDebounce = 250 * time.Millisecond

// WatchEvent signals that the watched inittab changed (or that watching
// failed). A change event carries no payload; the consumer re-reads and
// re-validates the file itself, so a half-written table is never adopted.
type WatchEvent struct {
	Err error
}

// WatchCleanupFunc stops a watch and releases its resources.
type WatchCleanupFunc func() error

// Watch monitors the inittab at path for modification and emits a debounced
// WatchEvent for each rewrite. This backs the automatic reload path (the
// explicit one being the reload control request).
//
// The parent directory is watched rather than the file itself: the common
// rewrite pattern (write temp file, rename over) replaces the inode, which
// would silently detach a file-level watch.
func Watch(ctx context.Context, path string) (<-chan WatchEvent, WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan WatchEvent, 4)

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var mu sync.Mutex
	var debouncer *time.Timer

	emit := func() {
		if sctx.IsStopping() {
			return
		}
		select {
		case ch <- WatchEvent{}:
		case <-sctx.Stopping():
		}
	}

	base := filepath.Base(path)

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(watchDebounce, emit)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !sctx.IsStopping() {
					select {
					case ch <- WatchEvent{Err: err}:
					case <-sctx.Stopping():
						return nil
					}
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
