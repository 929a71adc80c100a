package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "projectd.yaml", `
addr: ":9000"
projects_dir: /srv/projects
gateway_port: 8060
health_interval_seconds: 15
watch_projects: true
cors_origins:
  - http://localhost:3000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.ProjectsDir != "/srv/projects" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.GatewayPort != 8060 || cfg.HealthIntervalSeconds != 15 || !cfg.WatchProjects {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
}

func TestLoadJSONAndTOML(t *testing.T) {
	jsonPath := writeTemp(t, "cfg.json", `{"addr":":8050","log_level":"debug"}`)
	cfg, err := Load(jsonPath)
	if err != nil || cfg.LogLevel != "debug" {
		t.Fatalf("json load: %+v err=%v", cfg, err)
	}

	tomlPath := writeTemp(t, "cfg.toml", "addr = \":8050\"\nprojects_dir = \"p\"\n")
	cfg, err = Load(tomlPath)
	if err != nil || cfg.ProjectsDir != "p" {
		t.Fatalf("toml load: %+v err=%v", cfg, err)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeTemp(t, "cfg.ini", "addr=:8050")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
