package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr                  string   `json:"addr" yaml:"addr" toml:"addr"`
	ProjectsDir           string   `json:"projects_dir" yaml:"projects_dir" toml:"projects_dir"`
	GatewayPort           int      `json:"gateway_port" yaml:"gateway_port" toml:"gateway_port"`
	HealthIntervalSeconds int      `json:"health_interval_seconds" yaml:"health_interval_seconds" toml:"health_interval_seconds"`
	ProbeTimeoutSeconds   int      `json:"probe_timeout_seconds" yaml:"probe_timeout_seconds" toml:"probe_timeout_seconds"`
	SettleDelaySeconds    int      `json:"settle_delay_seconds" yaml:"settle_delay_seconds" toml:"settle_delay_seconds"`
	CORSOrigins           []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel              string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	WatchProjects         bool     `json:"watch_projects" yaml:"watch_projects" toml:"watch_projects"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
