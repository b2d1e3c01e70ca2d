package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watch follows path (typically a project's committed config.json) with
// fsnotify and invokes onChange whenever it is written or replaced by a
// rename-into-place (the atomic-write pattern internal/memory's own
// config writers use). The returned io.Closer stops the watch.
//
// Unknown/removed-then-recreated files are handled by re-adding the watch
// on fsnotify.Remove, since editors commonly replace a file by writing a
// temp file and renaming it over the original, which some platforms report
// as Remove+Create on the original path rather than Write.
func Watch(path string, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{fs: w, path: path, done: make(chan struct{})}
	go watcher.run(onChange)
	return watcher, nil
}

// Watcher is a running config file watch started by Watch.
type Watcher struct {
	fs   *fsnotify.Watcher
	path string
	done chan struct{}
}

func (w *Watcher) run(onChange func()) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				onChange()
			}
			if event.Op&fsnotify.Remove != 0 {
				_ = w.fs.Add(w.path)
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watch.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
