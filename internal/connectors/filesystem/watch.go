package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Watch observes the root recursively and calls notify once changes have
// been quiet for the configured debounce. It blocks until ctx is done.
func (s *Source) Watch(ctx context.Context, notify func()) error {
	info, err := os.Stat(s.config.Root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.config.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", s.config.Root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.addTree(watcher, s.config.Root); err != nil {
		return err
	}

	d := newDebouncer(s.config.Debounce, notify)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := s.addTree(watcher, event.Name); err != nil {
						logger.Warn("watch %s: %v", s.provider, err)
					}
				}
			}
			logger.Debug("watch %s: %s", s.provider, event)
			d.trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", s.provider, err)
		}
	}
}

// addTree registers dir and its non-skipped subdirectories.
// fsnotify watches are not recursive.
func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.config.Root && s.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant filters out chmod-only events and hidden paths.
func (s *Source) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(s.config.Root, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if s.skip(part) {
			return false
		}
	}
	return true
}

// debouncer coalesces bursts of triggers into one call of fn.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
