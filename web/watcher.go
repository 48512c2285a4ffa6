package web

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/status"
)

func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// Watch reloads loader on any change inside of pack roots until returned stop is called
func (s *Server) Watch() (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create watcher")
	}
	for _, root := range s.roots {
		if err := watchTree(w, root); err != nil {
			w.Close()
			return nil, errors.Wrapf(err, "Failed to watch pack %q", root)
		}
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
						if err := watchTree(w, ev.Name); err != nil {
							log.Warnf("[web] Failed to watch %q: %v", ev.Name, err)
						}
					}
				}
				log.Debug("Pack changed, dropping caches", "file", ev.Name, "op", ev.Op.String())
				s.reload()
				status.Info("Pack changed: %s", filepath.Base(ev.Name))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("[web] watcher error: %v", err)
				status.Error("Pack watcher error: %v", err)
			}
		}
	}()
	return w.Close, nil
}
