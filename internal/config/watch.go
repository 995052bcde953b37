package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-parses the config file on every write and hands the result to
// OnChange. It is an additive convenience, adapted from the teacher's
// fsnotify-based directory watcher, and never replaces the authoritative
// one-shot Load call a process makes at startup.
type Watcher struct {
	path     string
	strict   bool
	OnChange func(*Loaded)

	fsw *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher creates a Watcher for path. Call Start to begin watching.
func NewWatcher(path string, strict bool, onChange func(*Loaded)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, strict: strict, OnChange: onChange, fsw: fsw, done: make(chan struct{})}, nil
}

// Start watches the config file's directory (fsnotify watches directories
// more reliably than individual files across editors that replace-on-save)
// and reloads on any write/create event naming the file.
func (w *Watcher) Start() error {
	dir := dirOf(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			loaded, err := Load(w.path, false)
			if err != nil {
				log.Printf("config: watch reload of %s failed: %v", w.path, err)
				continue
			}
			if w.OnChange != nil {
				w.OnChange(loaded)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}

func dirOf(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}
