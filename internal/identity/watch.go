package identity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/onedrive-kb/internal/tokenfile"
)

// WatchSignOut calls onSignOut with the token file path whenever a token file
// in dir is removed or renamed away, as happens when another process logs the
// account out. The watch runs until ctx ends.
func WatchSignOut(ctx context.Context, dir string, onSignOut func(path string), logger *slog.Logger) error {
	if err := tokenfile.EnsureDir(dir); err != nil {
		return fmt.Errorf("identity: preparing token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("identity: creating watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("identity: watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				if !signOutEvent(ev) {
					continue
				}

				logger.Info("token file removed, signing out", slog.String("path", ev.Name))
				onSignOut(ev.Name)

			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Warn("token directory watcher error", slog.String("error", watchErr.Error()))
			}
		}
	}()

	return nil
}

func signOutEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}

	base := filepath.Base(ev.Name)

	return strings.HasSuffix(base, tokenfile.Ext) && !strings.HasPrefix(base, ".")
}
