package manager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"projectd/internal/common/fsutil"
	"projectd/internal/proc"
	"projectd/pkg/types"
)

func validComponent(c string) bool {
	switch c {
	case "all", "frontend", "backend":
		return true
	}
	return false
}

// StartProject starts a project's components. Frontend launches the
// manifest's dev command; backend is tracked but not launchable and is
// reported in SkippedComponents.
func (m *Manager) StartProject(name, component string) types.StartResult {
	if !validComponent(component) {
		return types.StartResult{
			StartedComponents: []string{},
			Error:             fmt.Sprintf("invalid component %q", component),
		}
	}
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return types.StartResult{
			StartedComponents: []string{},
			Error:             ErrProjectNotFound(name).Error(),
		}
	}
	mf := p.Manifest
	path := p.Path
	m.mu.Unlock()

	res := types.StartResult{Success: true, StartedComponents: []string{}}
	if component == "frontend" || component == "all" {
		switch {
		case mf.DevCommand == "":
			m.log.Info().Str("project", name).Msg("no dev command configured, frontend skipped")
			res.SkippedComponents = append(res.SkippedComponents, "frontend")
		case m.handleExists(name + "_frontend"):
			// launching on top of a live handle would orphan its process tree
			m.log.Info().Str("project", name).Msg("frontend already running, start skipped")
			res.SkippedComponents = append(res.SkippedComponents, "frontend")
		case !fsutil.PathExists(path):
			return types.StartResult{
				StartedComponents: []string{},
				Error:             fmt.Sprintf("project path does not exist: %s", path),
			}
		default:
			if mf.InstallCommand != "" && m.needsInstall(path) {
				m.log.Info().Str("project", name).Str("command", mf.InstallCommand).
					Msg("installing dependencies before start")
				ctx, cancel := context.WithTimeout(context.Background(), m.cfg.InstallTimeout)
				err := m.launcher.RunInstall(ctx, mf.InstallCommand, path)
				cancel()
				if err != nil {
					// A broken install is a warning: dev servers
					// frequently run fine against a partial tree.
					m.log.Warn().Err(err).Str("project", name).
						Msg("dependency install failed, starting anyway")
					res.DependencyWarning = err.Error()
				} else {
					res.DependencyInstalled = true
				}
			}
			h, err := m.launcher.Start(mf.DevCommand, path)
			if err != nil {
				m.log.Error().Err(err).Str("project", name).Msg("frontend start failed")
				res.Success = false
				res.Error = err.Error()
				return res
			}
			m.mu.Lock()
			m.procs[name+"_frontend"] = h
			if cur, ok := m.projects[name]; ok {
				cur.FrontendPID = h.PID
				cur.FrontendRunning = true // optimistic; the next probe confirms
				cur.StartTime = time.Now()
			}
			m.mu.Unlock()
			res.StartedComponents = append(res.StartedComponents, "frontend")
			m.log.Info().Str("project", name).Int("pid", h.PID).Msg("frontend started")
		}
	}
	if component == "backend" || component == "all" {
		// Backend processes are not launched by the orchestrator; report
		// the skip instead of pretending the component started.
		res.SkippedComponents = append(res.SkippedComponents, "backend")
		m.log.Info().Str("project", name).Msg("backend start not supported, skipped")
	}
	return res
}

// StopProject terminates a project's tracked processes.
func (m *Manager) StopProject(name, component string) types.StopResult {
	if !validComponent(component) {
		return types.StopResult{
			StoppedComponents: []string{},
			Error:             fmt.Sprintf("invalid component %q", component),
		}
	}
	m.mu.Lock()
	if _, ok := m.projects[name]; !ok {
		m.mu.Unlock()
		return types.StopResult{
			StoppedComponents: []string{},
			Error:             ErrProjectNotFound(name).Error(),
		}
	}
	type pending struct {
		comp string
		h    *proc.Handle
	}
	var toStop []pending
	for _, comp := range []string{"backend", "frontend"} {
		if component != comp && component != "all" {
			continue
		}
		key := name + "_" + comp
		if h, ok := m.procs[key]; ok {
			delete(m.procs, key)
			toStop = append(toStop, pending{comp: comp, h: h})
		}
	}
	m.mu.Unlock()

	res := types.StopResult{Success: true, StoppedComponents: []string{}}
	for _, s := range toStop {
		if err := m.launcher.Terminate(s.h, m.cfg.StopWait); err != nil {
			m.log.Warn().Err(err).Str("project", name).Str("component", s.comp).
				Msg("terminate reported a problem")
		}
		m.mu.Lock()
		if p, ok := m.projects[name]; ok {
			if s.comp == "frontend" {
				p.FrontendRunning = false
				p.FrontendPID = 0
			} else {
				p.BackendRunning = false
				p.BackendPID = 0
			}
		}
		m.mu.Unlock()
		res.StoppedComponents = append(res.StoppedComponents, s.comp)
		m.log.Info().Str("project", name).Str("component", s.comp).Msg("component stopped")
	}
	return res
}

// RestartProject stops, waits for ports to settle, then starts again. A
// failed stop aborts the restart; nothing is started on top of a half-dead
// process.
func (m *Manager) RestartProject(name, component string) types.StartResult {
	stop := m.StopProject(name, component)
	if !stop.Success {
		return types.StartResult{StartedComponents: []string{}, Error: stop.Error}
	}
	time.Sleep(m.cfg.SettleDelay)
	return m.StartProject(name, component)
}

// InstallDependencies checks required tooling and runs the manifest's
// install command to completion.
func (m *Manager) InstallDependencies(name string) types.InstallResult {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return types.InstallResult{Error: ErrProjectNotFound(name).Error()}
	}
	mf := p.Manifest
	path := p.Path
	m.mu.Unlock()

	var missing []string
	for _, tool := range mf.RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return types.InstallResult{
			Missing: missing,
			Error:   "missing required tools: " + strings.Join(missing, ", "),
		}
	}
	if mf.InstallCommand == "" {
		return types.InstallResult{Success: true, Message: "no install command configured"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.InstallTimeout)
	defer cancel()
	if err := m.launcher.RunInstall(ctx, mf.InstallCommand, path); err != nil {
		return types.InstallResult{Error: err.Error()}
	}
	return types.InstallResult{Success: true, Message: "dependencies installed"}
}

func (m *Manager) handleExists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.procs[key]
	return ok
}

// needsInstall gates the pre-start install: only node-style projects with a
// package.json and a missing or near-empty node_modules need one.
func (m *Manager) needsInstall(path string) bool {
	if !fsutil.PathExists(filepath.Join(path, "package.json")) {
		return false
	}
	entries, err := os.ReadDir(filepath.Join(path, "node_modules"))
	if err != nil {
		return true
	}
	// a real install leaves more than a couple of entries behind
	return len(entries) < 3
}
