// Package dev is the development server: it renders the page on every
// request and tells open pages to reload when an input changes.
package dev

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"tractor.dev/toolkit-go/engine/fs/watchfs"
)

// Watcher reports changes to the build inputs. It watches the resolved
// input files and the search directories, so an input that appears in a
// directory searched earlier is noticed too.
type Watcher struct {
	FS fs.FS
	// Names are the configured input names, matched without regard to case.
	Names []string
	// Paths are the files and directories to watch, relative to FS.
	Paths    []string
	OnChange func(changed string)
	Log      *slog.Logger
}

// Relevant reports whether an event path names one of the inputs.
func (w *Watcher) Relevant(p string) bool {
	base := path.Base(p)
	for _, name := range w.Names {
		if strings.EqualFold(base, path.Base(name)) {
			return true
		}
	}
	return false
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	wfs := watchfs.New(w.FS)
	events := make(chan watchfs.Event, 16)
	seen := make(map[string]bool)
	for _, p := range w.Paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		watch, err := wfs.Watch(p, &watchfs.Config{
			Handler: func(e watchfs.Event) {
				select {
				case events <- e:
				default:
				}
			},
		})
		if err != nil {
			if w.Log != nil {
				w.Log.Debug("cannot watch", "path", p, "err", err)
			}
			continue
		}
		defer watch.Close()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-events:
			if e.Err != nil || !w.Relevant(e.Path) {
				continue
			}
			if w.Log != nil {
				w.Log.Info("input changed", "path", e.Path)
			}
			if w.OnChange != nil {
				w.OnChange(e.Path)
			}
		}
	}
}
