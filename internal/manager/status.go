package manager

import (
	"context"
	"time"

	"projectd/pkg/types"
)

// deriveHealth is the single place the health verdict comes from: recorded
// errors win, then any running component, otherwise unknown.
func deriveHealth(errs []string, frontendRunning, backendRunning bool) types.HealthStatus {
	switch {
	case len(errs) > 0:
		return types.HealthUnhealthy
	case frontendRunning || backendRunning:
		return types.HealthHealthy
	default:
		return types.HealthUnknown
	}
}

// refreshRunningFlags runs a quick probe and updates the running flags and
// health verdict. Unlike checkProjectHealth it leaves the error list alone.
func (m *Manager) refreshRunningFlags(ctx context.Context, name string) {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	fp, bp := p.FrontendPort, p.BackendPort
	m.mu.Unlock()

	res := m.prober.Probe(ctx, fp, bp)

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok = m.projects[name]
	if !ok {
		return
	}
	p.FrontendRunning = res.FrontendRunning
	p.BackendRunning = res.BackendRunning
	p.Health = deriveHealth(p.Errors, p.FrontendRunning, p.BackendRunning)
}

// checkProjectHealth runs a full health check: the error list is cleared
// and rebuilt from this probe's HTTP anomalies, then the verdict is
// recomputed and the check timestamp updated.
func (m *Manager) checkProjectHealth(ctx context.Context, name string) {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	fp, bp := p.FrontendPort, p.BackendPort
	m.mu.Unlock()

	res := m.prober.Probe(ctx, fp, bp)

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok = m.projects[name]
	if !ok {
		return
	}
	p.LastHealthCheck = time.Now()
	p.Errors = append([]string{}, res.Errors...)
	p.FrontendRunning = res.FrontendRunning
	p.BackendRunning = res.BackendRunning
	p.Health = deriveHealth(p.Errors, p.FrontendRunning, p.BackendRunning)
}

// Status returns a fresh snapshot of one project, probing first so the
// caller never sees stale running flags.
func (m *Manager) Status(ctx context.Context, name string) (types.ProjectStatus, error) {
	m.mu.Lock()
	_, ok := m.projects[name]
	m.mu.Unlock()
	if !ok {
		return types.ProjectStatus{}, ErrProjectNotFound(name)
	}
	m.refreshRunningFlags(ctx, name)

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return types.ProjectStatus{}, ErrProjectNotFound(name)
	}
	return statusOf(p), nil
}

// AllStatuses snapshots every project after fresh probes.
func (m *Manager) AllStatuses(ctx context.Context) map[string]types.ProjectStatus {
	out := make(map[string]types.ProjectStatus)
	for _, name := range m.Names() {
		st, err := m.Status(ctx, name)
		if err != nil {
			continue
		}
		out[name] = st
	}
	return out
}

// HealthCheck runs a full check on every project and returns the snapshots.
func (m *Manager) HealthCheck(ctx context.Context) map[string]types.ProjectStatus {
	for _, name := range m.Names() {
		m.checkProjectHealth(ctx, name)
	}
	out := make(map[string]types.ProjectStatus)
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.projects {
		out[name] = statusOf(p)
	}
	return out
}

// PortUsage reports every project's reserved ports and the processes on
// them.
func (m *Manager) PortUsage() map[string]types.ProjectPorts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.ProjectPorts, len(m.projects))
	for name, p := range m.projects {
		pp := types.ProjectPorts{}
		if p.FrontendPort > 0 {
			pp.Frontend = &types.ComponentPort{
				Port:    p.FrontendPort,
				Running: p.FrontendRunning,
				PID:     p.FrontendPID,
			}
		}
		if p.BackendPort > 0 {
			pp.Backend = &types.ComponentPort{
				Port:    p.BackendPort,
				Running: p.BackendRunning,
				PID:     p.BackendPID,
			}
		}
		out[name] = pp
	}
	return out
}

func statusOf(p *project) types.ProjectStatus {
	st := types.ProjectStatus{
		Name:            p.Name,
		Namespace:       p.Namespace,
		Enabled:         p.Enabled,
		FrontendRunning: p.FrontendRunning,
		BackendRunning:  p.BackendRunning,
		FrontendPort:    p.FrontendPort,
		BackendPort:     p.BackendPort,
		FrontendPID:     p.FrontendPID,
		BackendPID:      p.BackendPID,
		HealthStatus:    p.Health,
		Errors:          append([]string{}, p.Errors...),
	}
	if !p.StartTime.IsZero() {
		t := p.StartTime
		st.StartTime = &t
	}
	if !p.LastHealthCheck.IsZero() {
		t := p.LastHealthCheck
		st.LastHealthCheck = &t
	}
	return st
}
