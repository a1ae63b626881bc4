package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
)

// DescriptorWatcher watches a workspace for build-descriptor changes
// (workspace/didChangeWatchedFiles's filesystem-notification source, §6) and
// invokes a debounced callback with the path of each changed file. Modeled on
// internal/core/mangle_watcher.go's debounce-map pattern.
type DescriptorWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	onChange    func(path string)
	debounce    map[string]time.Time
	debounceDur time.Duration
	doneCh      chan struct{}
}

// NewDescriptorWatcher creates a watcher invoking onChange (debounced) when
// a file under a watched directory changes.
func NewDescriptorWatcher(onChange func(path string)) (*DescriptorWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DescriptorWatcher{
		watcher:     w,
		onChange:    onChange,
		debounce:    make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}, nil
}

// Watch adds dir to the watch set.
func (w *DescriptorWatcher) Watch(dir string) error {
	return w.watcher.Add(dir)
}

// Run drains fsnotify events until ctx is cancelled.
func (w *DescriptorWatcher) Run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Cache("descriptor watcher error: %v", err)
		}
	}
}

func (w *DescriptorWatcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	last, seen := w.debounce[ev.Name]
	now := time.Now()
	if seen && now.Sub(last) < w.debounceDur {
		w.debounce[ev.Name] = now
		w.mu.Unlock()
		return
	}
	w.debounce[ev.Name] = now
	w.mu.Unlock()

	logging.Cache("descriptor change: %s (%s)", ev.Name, ev.Op)
	if w.onChange != nil {
		w.onChange(ev.Name)
	}
}

// Done returns a channel closed once Run has fully exited.
func (w *DescriptorWatcher) Done() <-chan struct{} { return w.doneCh }
