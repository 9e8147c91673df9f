package lifecycle

import (
	"context"

	"github.com/evsieve/evsieve/internal/devio"
	"github.com/evsieve/evsieve/internal/stage"
	"github.com/fsnotify/fsnotify"
)

// WatchDirectory watches /dev/input for new device nodes and reopens any
// reopenable handle whose path just reappeared, adapted from the
// teacher's internal/config.Watcher[T]'s fsnotify event/error select loop
// (repurposed from watching one TOML file's Write/Create events to
// watching a whole device directory's Create events). This supplements
// Reopener.Watch's netlink monitor, which can miss a device that
// reappears in the brief window before its own socket is bound.
func (r *Reopener) WatchDirectory(ctx context.Context, dir string, handles []*InputHandle, onReopened func(*InputHandle, devio.ReaderCapabilities)) error {
	reopenable := make(map[string]*InputHandle)
	for _, h := range handles {
		if h.Decl.Persist == stage.PersistReopen {
			reopenable[h.Decl.Path] = h
		}
	}
	if len(reopenable) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			h, ok := reopenable[ev.Name]
			if !ok {
				continue
			}
			reader, err := r.reopen(h)
			if err != nil {
				r.logger.Warn("directory-watch reopen failed", "path", h.Decl.Path, "error", err)
				continue
			}
			h.Reader = reader
			onReopened(h, reader)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("directory watcher error", "error", err)
		}
	}
}
