// Package manager orchestrates the managed projects: discovery, port
// bookkeeping, process lifecycle and health.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"projectd/internal/manifest"
	"projectd/internal/ports"
	"projectd/internal/probe"
	"projectd/internal/proc"
	"projectd/pkg/types"
)

const (
	defaultGatewayPort    = manifest.DefaultGatewayPort
	defaultHealthInterval = 30 * time.Second
	defaultHealthBackoff  = 10 * time.Second
	defaultProbeTimeout   = 3 * time.Second
	defaultSettleDelay    = 3 * time.Second
	defaultStopWait       = 10 * time.Second
	defaultInstallTimeout = 5 * time.Minute
)

// Config holds orchestrator parameters. Zero values pick up defaults in New.
type Config struct {
	ProjectsDir    string
	GatewayPort    int
	HealthInterval time.Duration
	HealthBackoff  time.Duration
	ProbeTimeout   time.Duration
	SettleDelay    time.Duration
	StopWait       time.Duration
	InstallTimeout time.Duration
	WatchProjects  bool
}

// Launcher starts and stops project processes.
type Launcher interface {
	Start(command, dir string) (*proc.Handle, error)
	Terminate(h *proc.Handle, wait time.Duration) error
	RunInstall(ctx context.Context, command, dir string) error
}

// Prober performs liveness checks against a project's ports.
type Prober interface {
	Probe(ctx context.Context, frontendPort, backendPort int) probe.Result
}

// project is the orchestrator's mutable record for one managed project.
// All fields are guarded by Manager.mu.
type project struct {
	Name            string
	Namespace       string
	Path            string
	ManifestPath    string
	Enabled         bool
	FrontendPort    int
	BackendPort     int
	FrontendPID     int
	BackendPID      int
	FrontendRunning bool
	BackendRunning  bool
	StartTime       time.Time
	LastHealthCheck time.Time
	Health          types.HealthStatus
	Errors          []string
	Manifest        types.Manifest
}

// Manager owns the project, port and process tables. A single mutex guards
// all three; operations snapshot what they need, do their slow work (probes,
// process waits) unlocked, then re-acquire to commit.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	log      zerolog.Logger
	projects map[string]*project
	procs    map[string]*proc.Handle
	ports    *ports.Table
	launcher Launcher
	prober   Prober

	loopCancel context.CancelFunc
	watcher    *fsnotify.Watcher
	wg         sync.WaitGroup
}

// New builds a manager. Call Start to discover projects and begin the
// health loop, and Close to tear everything down.
func New(cfg Config, log zerolog.Logger) *Manager {
	if cfg.GatewayPort == 0 {
		cfg.GatewayPort = defaultGatewayPort
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if cfg.HealthBackoff <= 0 {
		cfg.HealthBackoff = defaultHealthBackoff
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = defaultStopWait
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = defaultInstallTimeout
	}
	mlog := log.With().Str("component", "manager").Logger()
	return &Manager{
		cfg:      cfg,
		log:      mlog,
		projects: make(map[string]*project),
		procs:    make(map[string]*proc.Handle),
		ports:    ports.NewTable(),
		launcher: proc.NewLauncher(log),
		prober:   probe.New(cfg.ProbeTimeout),
	}
}

// Start discovers projects and launches the background health loop (plus
// the projects-root watcher when enabled).
func (m *Manager) Start() error {
	m.discover()
	ctx, cancel := context.WithCancel(context.Background())
	m.loopCancel = cancel
	m.wg.Add(1)
	go m.healthLoop(ctx)
	if m.cfg.WatchProjects {
		if err := m.startWatcher(ctx); err != nil {
			m.log.Warn().Err(err).Msg("projects watcher unavailable")
		}
	}
	return nil
}

// Close stops the health loop, terminates every tracked process and resets
// running state. Safe to call once after Start (or without it).
func (m *Manager) Close() {
	if m.loopCancel != nil {
		m.loopCancel()
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	m.wg.Wait()

	m.mu.Lock()
	procs := m.procs
	m.procs = make(map[string]*proc.Handle)
	m.mu.Unlock()

	for key, h := range procs {
		m.log.Info().Str("process", key).Int("pid", h.PID).Msg("stopping process")
		if err := m.launcher.Terminate(h, m.cfg.StopWait); err != nil {
			m.log.Warn().Err(err).Str("process", key).Msg("terminate failed during shutdown")
		}
	}

	m.mu.Lock()
	for _, p := range m.projects {
		p.FrontendRunning, p.BackendRunning = false, false
		p.FrontendPID, p.BackendPID = 0, 0
		p.Health = types.HealthUnknown
	}
	m.mu.Unlock()
	m.log.Info().Msg("manager closed")
}

func (m *Manager) healthLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		delay := m.cfg.HealthInterval
		if err := m.healthPass(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("health pass failed, backing off")
			delay = m.cfg.HealthBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (m *Manager) healthPass(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health pass panic: %v", r)
		}
	}()
	for _, name := range m.enabledNames() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pctx, cancel := context.WithTimeout(ctx, 2*m.cfg.ProbeTimeout+time.Second)
		m.checkProjectHealth(pctx, name)
		cancel()
	}
	return nil
}

// enabledNames returns the enabled project names in sorted order; disabled
// projects sit out the background health loop.
func (m *Manager) enabledNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.projects))
	for name, p := range m.projects {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Names returns the managed project names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.projects))
	for name := range m.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) releasePortsLocked(p *project) {
	if p.FrontendPort > 0 {
		m.ports.Release(p.FrontendPort)
	}
	if p.BackendPort > 0 {
		m.ports.Release(p.BackendPort)
	}
}
