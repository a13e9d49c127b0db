package tui

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/barysiuk/skillrow/internal/logger"
)

// watchDebounce coalesces bursts of events, e.g. an `rm -rf` of a skill tree.
const watchDebounce = 300 * time.Millisecond

// installRootChangedMsg tells the app something was removed under the
// install root.
type installRootChangedMsg struct{}

// installWatcher reports removals under the install root. Skills live two
// levels down (<root>/<repo>/<skill>), so the root and every repository
// directory are watched.
type installWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	changes chan struct{}
}

func newInstallWatcher(root string) (*installWatcher, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	iw := &installWatcher{root: root, watcher: w, changes: make(chan struct{}, 1)}
	if err := iw.addTree(); err != nil {
		_ = w.Close()
		return nil, err
	}
	return iw, nil
}

func (iw *installWatcher) addTree() error {
	if err := iw.watcher.Add(iw.root); err != nil {
		return err
	}
	entries, err := os.ReadDir(iw.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = iw.watcher.Add(filepath.Join(iw.root, e.Name()))
		}
	}
	return nil
}

// run forwards debounced removal events until ctx is done.
func (iw *installWatcher) run(ctx context.Context) {
	log := logger.G(ctx).WithField("dir", iw.root)
	var timer *time.Timer
	fire := func() {
		select {
		case iw.changes <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 && filepath.Dir(ev.Name) == iw.root {
				// New repository directory: watch it for skill removals too.
				_ = iw.watcher.Add(ev.Name)
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, fire)
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("install root watcher error")
		}
	}
}

func (iw *installWatcher) Close() error {
	return iw.watcher.Close()
}

// waitForChange blocks until the watcher reports a change. The app
// re-issues it after every installRootChangedMsg.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return installRootChangedMsg{}
	}
}
