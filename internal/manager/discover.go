package manager

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"projectd/internal/common/fsutil"
	"projectd/internal/manifest"
	"projectd/pkg/types"
)

// discover scans the projects root and registers every loadable directory.
// A directory that fails to load is logged and skipped; it never aborts the
// scan.
func (m *Manager) discover() []string {
	entries, err := os.ReadDir(m.cfg.ProjectsDir)
	if err != nil {
		m.log.Warn().Err(err).Str("dir", m.cfg.ProjectsDir).Msg("projects root unreadable")
		return nil
	}
	var added []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name, err := m.loadProjectDir(filepath.Join(m.cfg.ProjectsDir, e.Name()))
		if err != nil {
			m.log.Error().Err(err).Str("dir", e.Name()).Msg("failed to load project")
			continue
		}
		if name != "" {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	m.log.Info().Int("count", len(added)).Msg("projects discovered")
	return added
}

// loadProjectDir registers one project directory: loads its manifest,
// reserves frontend and backend ports and runs an initial quick probe.
// Returns "" when the name is already registered.
func (m *Manager) loadProjectDir(dir string) (string, error) {
	mf, mfPath, err := manifest.Load(dir)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if _, exists := m.projects[mf.Name]; exists {
		m.mu.Unlock()
		return "", nil
	}
	frontendPort := m.ports.Allocate(mf.Port, mf.Name)
	backendPreferred := manifest.PortFromURL(mf.APIEndpoint)
	if backendPreferred == 0 {
		backendPreferred = m.cfg.GatewayPort
	}
	backendPort := m.ports.Allocate(backendPreferred, mf.Name+"_backend")
	p := &project{
		Name:         mf.Name,
		Namespace:    mf.Name,
		Path:         dir,
		ManifestPath: mfPath,
		Enabled:      true,
		FrontendPort: frontendPort,
		BackendPort:  backendPort,
		Health:       types.HealthUnknown,
		Errors:       []string{},
		Manifest:     mf,
	}
	m.projects[mf.Name] = p
	m.mu.Unlock()

	m.log.Info().
		Str("project", mf.Name).
		Str("type", string(mf.Type)).
		Int("frontend_port", frontendPort).
		Int("backend_port", backendPort).
		Msg("project registered")

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout+time.Second)
	m.refreshRunningFlags(ctx, mf.Name)
	cancel()
	return mf.Name, nil
}

// Refresh drops every record and reservation, then rescans the projects
// root. Running processes keep their handles so a later stop still works.
func (m *Manager) Refresh() types.RefreshResult {
	m.mu.Lock()
	old := make([]string, 0, len(m.projects))
	for name := range m.projects {
		old = append(old, name)
	}
	sort.Strings(old)
	m.projects = make(map[string]*project)
	m.ports.Reset()
	m.mu.Unlock()

	m.discover()
	current := m.Names()

	res := types.RefreshResult{
		Success:     true,
		OldProjects: old,
		NewProjects: current,
		Added:       diff(current, old),
		Removed:     diff(old, current),
	}
	m.log.Info().
		Strs("added", res.Added).
		Strs("removed", res.Removed).
		Msg("projects refreshed")
	return res
}

// syncProjects incrementally reconciles the table with the filesystem:
// new directories are registered, records whose directory or manifest
// vanished are dropped and their ports released.
func (m *Manager) syncProjects() {
	entries, err := os.ReadDir(m.cfg.ProjectsDir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			dir := filepath.Join(m.cfg.ProjectsDir, e.Name())
			m.mu.Lock()
			_, known := m.projects[filepath.Base(dir)]
			m.mu.Unlock()
			if known {
				continue
			}
			if _, err := m.loadProjectDir(dir); err != nil {
				m.log.Debug().Err(err).Str("dir", e.Name()).Msg("sync skipped directory")
			}
		}
	}

	m.mu.Lock()
	for name, p := range m.projects {
		gone := !fsutil.PathExists(p.Path) ||
			(p.ManifestPath != "" && !fsutil.PathExists(p.ManifestPath))
		if gone {
			m.releasePortsLocked(p)
			delete(m.projects, name)
			m.log.Info().Str("project", name).Msg("project vanished, record dropped")
		}
	}
	m.mu.Unlock()
}

// ManagedProjects lists every project with a freshly re-read manifest.
func (m *Manager) ManagedProjects() []types.ProjectInfo {
	m.syncProjects()

	type snap struct {
		name, path string
	}
	m.mu.Lock()
	snaps := make([]snap, 0, len(m.projects))
	for _, p := range m.projects {
		snaps = append(snaps, snap{name: p.Name, path: p.Path})
	}
	m.mu.Unlock()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].name < snaps[j].name })

	out := make([]types.ProjectInfo, 0, len(snaps))
	for _, s := range snaps {
		mf, mfPath, err := manifest.Load(s.path)
		if err != nil {
			m.log.Warn().Err(err).Str("project", s.name).Msg("manifest unreadable, skipping from listing")
			continue
		}
		m.mu.Lock()
		p, ok := m.projects[s.name]
		if !ok {
			m.mu.Unlock()
			continue
		}
		p.Manifest = mf
		info := types.ProjectInfo{
			Name:         p.Name,
			DisplayName:  mf.DisplayName,
			Version:      mf.Version,
			Description:  mf.Description,
			Type:         mf.Type,
			Enabled:      p.Enabled,
			ProjectPath:  p.Path,
			ManifestPath: mfPath,
			Ports:        m.portMapLocked(p, mf),
			Manifest:     mf,
		}
		m.mu.Unlock()
		out = append(out, info)
	}
	return out
}

func (m *Manager) portMapLocked(p *project, mf types.Manifest) types.PortMap {
	pm := types.PortMap{FrontendDev: p.FrontendPort, APIGateway: p.BackendPort}
	if pm.FrontendDev == 0 {
		pm.FrontendDev = mf.Port
	}
	if pm.APIGateway == 0 {
		if n := manifest.PortFromURL(mf.APIEndpoint); n != 0 {
			pm.APIGateway = n
		} else {
			pm.APIGateway = manifest.SchemePort(mf.APIEndpoint)
		}
	}
	if n := manifest.PortFromURL(mf.WebSocketURL); n != 0 {
		pm.WebSocket = n
	} else if n := manifest.SchemePort(mf.WebSocketURL); n != 0 {
		pm.WebSocket = n
	} else {
		pm.WebSocket = pm.APIGateway
	}
	return pm
}

func diff(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	out := []string{}
	for _, s := range a {
		if !inB[s] {
			out = append(out, s)
		}
	}
	return out
}
