package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the import directory and imports
// export files as they are created or rewritten, until ctx is cancelled.
// Bursts of writes to the same file are debounced into one import.
func (im *Importer) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, im.dir); err != nil {
		return err
	}

	im.logger.Info("watcher: started", slog.String("dir", im.dir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(rel string) {
		pending[rel] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			im.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for rel := range pending {
				kinds, imported, err := im.ImportFile(ctx, rel)
				if err != nil {
					im.logger.Warn("watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if imported && cb != nil {
					cb(rel, kinds)
				}
			}
			pending = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						im.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !isExport(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(im.dir, ev.Name)
			if relErr != nil {
				continue
			}
			schedule(filepath.ToSlash(rel))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
