package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"projectd/internal/api"
	"projectd/internal/common/fsutil"
	"projectd/internal/config"
	"projectd/internal/httpapi"
	"projectd/internal/manager"
	"projectd/internal/registry"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8050"
	if v := os.Getenv("PROJECTD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultDir := "frontend_projects"
	if v := os.Getenv("PROJECTD_PROJECTS_DIR"); v != "" {
		defaultDir = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8050")
	projectsDir := flag.String("projects-dir", defaultDir, "Directory containing managed project folders")
	configPath := flag.String("config", "", "Optional config file (.yaml/.json/.toml); flags override it")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	watch := flag.Bool("watch", false, "Watch the projects directory and sync automatically")
	flag.Parse()

	cfg := config.Config{
		Addr:          *addr,
		ProjectsDir:   *projectsDir,
		LogLevel:      *logLevel,
		WatchProjects: *watch,
	}
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			boot := zerolog.New(os.Stderr)
			boot.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cfg = mergeConfig(fileCfg, cfg, set)
	}

	logger := newLogger(cfg.LogLevel)

	dir, err := fsutil.ExpandHome(cfg.ProjectsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve projects dir")
	}

	mgr := manager.New(manager.Config{
		ProjectsDir:    dir,
		GatewayPort:    cfg.GatewayPort,
		HealthInterval: time.Duration(cfg.HealthIntervalSeconds) * time.Second,
		ProbeTimeout:   time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		SettleDelay:    time.Duration(cfg.SettleDelaySeconds) * time.Second,
		WatchProjects:  cfg.WatchProjects,
	}, logger)
	if err := mgr.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start manager")
	}

	reg := registry.New(logger)
	hub := httpapi.NewHub(logger)
	api.RegisterProjectManager(reg, mgr)
	api.RegisterImageBinding(reg)
	api.RegisterGateway(reg, hub)

	server := httpapi.New(reg, hub, httpapi.Config{CORSOrigins: cfg.CORSOrigins}, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: server.Handler()}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("projects_dir", dir).Msg("projectd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	mgr.Close()
}

// mergeConfig overlays explicitly set flags on top of the config file:
// anything the user set on the command line wins, file values fill the rest.
func mergeConfig(file, flags config.Config, set map[string]bool) config.Config {
	out := file
	if set["addr"] || out.Addr == "" {
		out.Addr = flags.Addr
	}
	if set["projects-dir"] || out.ProjectsDir == "" {
		out.ProjectsDir = flags.ProjectsDir
	}
	if set["log-level"] || out.LogLevel == "" {
		out.LogLevel = flags.LogLevel
	}
	if set["watch"] {
		out.WatchProjects = flags.WatchProjects
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
