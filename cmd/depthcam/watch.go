package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"

	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/node"
)

// paramsWatcher reloads a params file whenever it is written and hands the result to apply.
// Files that fail to load are logged and ignored; the running params stay in effect.
type paramsWatcher struct {
	path     string
	apply    func(node.Params) error
	logger   logging.Logger
	watcher  *fsnotify.Watcher
	debounce func(func())
}

// reloadDebounce coalesces the bursts of events a single save produces.
const reloadDebounce = 100 * time.Millisecond

func newParamsWatcher(path string, apply func(node.Params) error, logger logging.Logger) (*paramsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors replace files on save, so watch the directory rather than the file
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(err, watcher.Close())
	}
	return &paramsWatcher{
		path:     filepath.Clean(path),
		apply:    apply,
		logger:   logger,
		watcher:  watcher,
		debounce: debounce.New(reloadDebounce),
	}, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *paramsWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("watch error", "error", err)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.debounce(w.reload)
		}
	}
}

func (w *paramsWatcher) reload() {
	// a save that truncates first shows up as an empty file
	if info, err := os.Stat(w.path); err != nil || info.Size() == 0 {
		return
	}
	params, err := node.LoadParams(w.path)
	if err != nil {
		w.logger.Warnw("ignoring params file", "error", err)
		return
	}
	if err := w.apply(params); err != nil {
		w.logger.Warnw("could not apply params", "error", err)
		return
	}
	w.logger.Infow("params reloaded", "path", w.path)
}

// Close stops watching and cancels a pending reload.
func (w *paramsWatcher) Close() error {
	w.debounce(func() {})
	return w.watcher.Close()
}
