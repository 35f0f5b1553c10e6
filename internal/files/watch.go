package files

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/Brownie44l1/httpd/internal/logger"
)

// Watch keeps the stat cache in step with the document root until ctx is
// cancelled. Stats are cached only while Watch runs. An error is returned
// if the watcher could not be set up; the resolver then keeps working
// uncached.
func (r *Resolver) Watch(ctx context.Context, log logger.Logger) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	dirs, err := r.directories()
	if err != nil {
		return fmt.Errorf("list directories under %s: %w", r.root, err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	r.setCaching(true)
	defer r.setCaching(false)
	log.Debug("watching document root", logger.F("root", r.root), logger.F("dirs", len(dirs)))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// New directories are watched before the cache is dropped so
			// nothing created inside them is missed.
			if ev.Has(fsnotify.Create) {
				r.watchTree(fsw, ev.Name, log)
			}
			r.invalidate()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			// Events may have been lost
			r.invalidate()
			log.Warn("watcher error", logger.Err(err))
		}
	}
}

// Watching reports whether the stat cache is live.
func (r *Resolver) Watching() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caching
}

// watchTree adds a newly created directory and everything below it.
func (r *Resolver) watchTree(fsw *fsnotify.Watcher, dir string, log logger.Logger) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}

	dirs, err := subdirectories(dir)
	if err != nil {
		dirs = []string{dir}
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			log.Warn("cannot watch directory", logger.F("dir", d), logger.Err(err))
		}
	}
}
