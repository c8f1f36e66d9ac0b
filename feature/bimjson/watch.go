package bimjson

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"arxcore/core/driver"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow collapses bursts of filesystem events (an export tool
// rewriting hundreds of documents) into one change event.
const debounceWindow = 500 * time.Millisecond

// Watch implements driver.Watcher using fsnotify over the export tree.
// Subdirectories created while watching are picked up automatically.
func (d *Driver) Watch(ctx context.Context, locator string) (<-chan driver.ChangeEvent, error) {
	root := d.dir(locator)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(w, root); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan driver.ChangeEvent, 1)
	go func() {
		defer close(out)
		defer w.Close()

		var (
			timer   *time.Timer
			timerC  <-chan time.Time
			pending string
		)
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) {
					// A new directory needs its own watch.
					if err := addRecursive(w, ev.Name); err != nil {
						d.log.Debug("Failed to watch new path",
							zap.String("path", ev.Name),
							zap.Error(err))
					}
				}
				if !relevant(ev) {
					continue
				}
				pending = ev.Name
				if timer == nil {
					timer = time.NewTimer(debounceWindow)
					timerC = timer.C
				} else {
					timer.Reset(debounceWindow)
				}

			case <-timerC:
				timer = nil
				timerC = nil
				select {
				case out <- driver.ChangeEvent{Locator: locator, Detail: pending, At: time.Now().UTC()}:
				default:
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.log.Warn("Export watch error", zap.Error(err))
			}
		}
	}()
	return out, nil
}

// relevant filters events down to document changes.
func relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, docExt) {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}

// addRecursive watches a directory and everything below it. Non-directory
// paths are ignored.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if de.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
