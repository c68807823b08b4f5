// Package watch reports changes to the table files made by other processes.
package watch

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"drive-eval/backend/global"

	"github.com/fsnotify/fsnotify"
)

const eventQueueSize = 16

// Change is one coalesced modification of a watched file.
type Change struct {
	Path string
	At   time.Time
}

// TableWatcher watches the directories holding the table files and emits a
// Change for writes, creates, renames and removals of those files. Events for
// the same file within the debounce window are merged.
type TableWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewTableWatcher(paths []string, debounce time.Duration) (*TableWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &TableWatcher{
		watcher:  w,
		files:    make(map[string]struct{}),
		debounce: debounce,
		stop:     make(chan struct{}),
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			global.Logger.Warn().Err(err).Str("path", p).Msg("watch: resolve path")
			continue
		}
		tw.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			global.Logger.Warn().Err(err).Str("dir", dir).Msg("watch: add directory")
			delete(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		_ = w.Close()
		return nil, errors.New("watch: no directory could be watched")
	}
	return tw, nil
}

// Changes starts the event loop. The channel is closed after Close.
func (t *TableWatcher) Changes() <-chan Change {
	out := make(chan Change, eventQueueSize)
	t.wg.Add(1)
	go t.loop(out)
	go func() {
		t.wg.Wait()
		close(out)
	}()
	return out
}

func (t *TableWatcher) loop(out chan<- Change) {
	defer t.wg.Done()
	pending := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case evt, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(evt.Name)
			if _, watched := t.files[path]; !watched {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(t.debounce)
			}
			pending[path] = time.Now()
		case <-timer.C:
			for path, at := range pending {
				select {
				case out <- Change{Path: path, At: at}:
				default:
					// a slow consumer only needs to know that something changed
				}
				delete(pending, path)
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			global.Logger.Warn().Err(err).Msg("watch: watcher error")
		}
	}
}

func (t *TableWatcher) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.watcher.Close()
	})
	return err
}
