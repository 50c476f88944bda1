package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettle is how long a file must go without Create or Write events
// before the watcher reads and delivers it.
const DefaultSettle = 200 * time.Millisecond

// Watcher delivers files dropped into the workspace directory while the
// application runs. Each matching file is delivered once, after its writes
// have settled; the index has no update operation, so later writes are
// ignored. Only the top-level workspace directory is watched.
type Watcher struct {
	loader Loader
	fsw    *fsnotify.Watcher
	log    *logrus.Entry
	settle time.Duration

	// Owned by the Run goroutine.
	seen    map[string]struct{}
	pending map[string]pendingFile
	ready   chan pendingFile
	gen     uint64
}

type pendingFile struct {
	name  string
	gen   uint64
	timer *time.Timer
}

// NewWatcher starts watching loader.Dir. Names in known are treated as
// already delivered.
func NewWatcher(loader Loader, known []File, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(loader.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", loader.Dir, err)
	}
	w := &Watcher{
		loader:  loader,
		fsw:     fsw,
		log:     log.WithField("component", "watcher"),
		settle:  DefaultSettle,
		seen:    make(map[string]struct{}, len(known)),
		pending: make(map[string]pendingFile),
		ready:   make(chan pendingFile),
	}
	for _, f := range known {
		w.seen[f.Name] = struct{}{}
	}
	return w, nil
}

// Run calls deliver for each new file until ctx is cancelled. It closes the
// underlying watcher on return.
func (w *Watcher) Run(ctx context.Context, deliver func(File)) error {
	defer w.fsw.Close()
	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case p := <-w.ready:
			// A timer that fired just before a newer write is stale.
			if cur, ok := w.pending[p.name]; !ok || cur.gen != p.gen {
				continue
			}
			delete(w.pending, p.name)
			w.deliver(p.name, deliver)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.loader.Dir, ev.Name)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)
	if !w.loader.Matches(name) {
		return
	}
	log := w.log.WithFields(logrus.Fields{"file": name, "op": ev.Op.String()})

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		log.Info("file removed from workspace; indexed copy is kept")
		return
	default:
		return
	}

	if _, done := w.seen[name]; done {
		log.Debug("already ingested, ignoring change")
		return
	}

	// Every write restarts the timer so a file copied in chunks is read whole.
	if p, ok := w.pending[name]; ok {
		p.timer.Stop()
	}
	w.gen++
	gen := w.gen
	t := time.AfterFunc(w.settle, func() {
		select {
		case w.ready <- pendingFile{name: name, gen: gen}:
		case <-ctx.Done():
		}
	})
	w.pending[name] = pendingFile{name: name, gen: gen, timer: t}
}

func (w *Watcher) deliver(name string, deliver func(File)) {
	if _, done := w.seen[name]; done {
		return
	}
	log := w.log.WithField("file", name)
	f, err := w.loader.read(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("read failed")
		}
		return
	}
	// Still empty: wait for the next write.
	if f.Content == "" {
		return
	}
	w.seen[name] = struct{}{}
	log.Info("new document")
	deliver(f)
}

func (w *Watcher) stopPending() {
	for name, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, name)
	}
}
