package repo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/podtheme/themepack/pkg/theme"
)

// watchSettle batches bursts of bundle-tree events into one rescan.
const watchSettle = 500 * time.Millisecond

// Watch rescans the bundle directory whenever its packages change and hands
// the fresh built-in list to onChange. Subscribers registered via Subscribe
// fire as well. Blocks until ctx is done.
func (r *Repository) Watch(ctx context.Context, onChange func([]theme.LoadedTheme)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	addAll := func() {
		if err := w.Add(r.bundleDir); err != nil {
			r.logger.Warn("cannot watch bundle dir", "dir", r.bundleDir, "error", err)
		}
		entries, err := os.ReadDir(r.bundleDir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				// Already-watched dirs are a no-op for fsnotify.
				_ = w.Add(filepath.Join(r.bundleDir, e.Name()))
			}
		}
	}
	addAll()

	var settle *time.Timer
	var settleC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			r.logger.Debug("bundle event", "op", ev.Op.String(), "name", ev.Name)
			if settle == nil {
				settle = time.NewTimer(watchSettle)
				settleC = settle.C
			} else {
				settle.Reset(watchSettle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("bundle watch error", "error", err)
		case <-settleC:
			settle = nil
			settleC = nil
			addAll() // pick up newly created theme dirs
			themes, err := r.ScanBuiltIn()
			if err != nil {
				r.logger.Warn("bundle rescan failed", "error", err)
				continue
			}
			r.logger.Info("bundle rescanned", "themes", len(themes))
			if onChange != nil {
				onChange(themes)
			}
			r.notify()
		}
	}
}
