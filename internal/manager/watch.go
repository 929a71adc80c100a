package manager

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces event bursts (archive extraction, editors) into
// a single sync.
const watchDebounce = 500 * time.Millisecond

// startWatcher begins watching the projects root and reconciles the project
// table after create/remove/rename bursts settle.
func (m *Manager) startWatcher(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(m.cfg.ProjectsDir); err != nil {
		w.Close()
		return err
	}
	m.watcher = w
	m.log.Info().Str("dir", m.cfg.ProjectsDir).Msg("watching projects root")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					pending = time.After(watchDebounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Warn().Err(err).Msg("projects watcher error")
			case <-pending:
				pending = nil
				m.syncProjects()
			}
		}
	}()
	return nil
}
