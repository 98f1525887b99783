// Package watch regenerates outputs whenever an input source changes. Events
// are debounced: editors and mod managers touch many files in a burst, and
// one rebuild at the end of the burst is all that is wanted.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// relevantSuffixes are the input file types a rebuild cares about. Events on
// anything else (textures, models, editor swap files) are dropped.
var relevantSuffixes = []string{".json", ".csv", ".txt", ".asset", ".meta", ".zip", ".prefab"}

// Watcher triggers a rebuild callback after changes under the watched roots
// settle.
type Watcher struct {
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	rebuild  func(context.Context) error
	debounce time.Duration
}

// New creates a Watcher over the given directory roots. Subdirectories are
// registered recursively; roots that disappear later simply stop producing
// events.
func New(log *zap.Logger, roots []string, debounce time.Duration, rebuild func(context.Context) error) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{log: log, watcher: fsw, rebuild: rebuild, debounce: debounce}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("cannot watch", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("cannot watch", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Run blocks, rebuilding after each settled burst of changes, until the
// context is canceled. A failed rebuild is logged and the loop keeps going;
// the next change gets another chance.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("input changed",
				zap.String("path", event.Name), zap.String("op", event.Op.String()))
			// New directories need watching too, or changes below them vanish.
			if event.Op.Has(fsnotify.Create) {
				w.addTree(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-fire:
			timer, fire = nil, nil
			w.log.Info("inputs settled, rebuilding")
			if err := w.rebuild(ctx); err != nil {
				w.log.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Create) {
		return true
	}
	name := strings.ToLower(event.Name)
	for _, suffix := range relevantSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
