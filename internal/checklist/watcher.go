package checklist

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the override file whenever it changes on disk, until the
// context is cancelled. No-op for registries without a file. Reload errors
// keep the previous lists active.
//
// The watch is placed on the parent directory, not the file: editors replace
// files atomically via rename, which drops a watch placed on the file itself.
func (r *Registry) Watch(ctx context.Context) error {
	if r.filePath == "" {
		return nil
	}
	target := filepath.Clean(r.filePath)
	parent := filepath.Dir(target)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(parent); err != nil {
		fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()

		// Debounce bursts: editors often emit several write events per save.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.After(100 * time.Millisecond)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Checklist watcher error")
			case <-pending:
				pending = nil
				if err := r.loadFile(); err != nil {
					log.Warn().Err(err).Str("path", r.filePath).Msg("Checklist reload failed, keeping previous lists")
					continue
				}
				log.Info().Str("path", r.filePath).Msg("Checklist overrides reloaded")
			}
		}
	}()

	return nil
}
