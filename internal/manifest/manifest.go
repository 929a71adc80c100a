// Package manifest loads project descriptors. A project directory either
// carries an explicit manifest file (projectd.yaml/.yml/.json/.toml) or gets
// a descriptor inferred from its contents.
package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"projectd/internal/common/fsutil"
	"projectd/pkg/types"
)

// DefaultGatewayPort is the well-known port of the API gateway; backend
// reservations fall back to it when the manifest names no endpoint port.
const DefaultGatewayPort = 8050

var markerNames = []string{
	"projectd.yaml",
	"projectd.yml",
	"projectd.json",
	"projectd.toml",
}

// Find returns the manifest file path inside dir, if one exists. The marker
// file also decides whether an imported archive counts as a project.
func Find(dir string) (string, bool) {
	for _, name := range markerNames {
		p := filepath.Join(dir, name)
		if fsutil.PathExists(p) {
			return p, true
		}
	}
	return "", false
}

// Load returns dir's descriptor and the manifest path it came from. When no
// manifest file exists the descriptor is inferred and the path is empty;
// a present-but-unparseable manifest is an error, not a fallback.
func Load(dir string) (types.Manifest, string, error) {
	if p, ok := Find(dir); ok {
		m, err := parseFile(p)
		if err != nil {
			return types.Manifest{}, "", err
		}
		applyDefaults(&m, filepath.Base(dir))
		return m, p, nil
	}
	return Detect(dir), "", nil
}

// Detect infers a descriptor from directory contents alone.
func Detect(dir string) types.Manifest {
	name := filepath.Base(dir)
	m := types.Manifest{Name: name, Type: detectType(dir)}
	applyDefaults(&m, name)
	return m
}

func detectType(dir string) types.ProjectType {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err == nil {
		var pkg struct {
			Dependencies    map[string]string `json:"dependencies"`
			DevDependencies map[string]string `json:"devDependencies"`
		}
		if json.Unmarshal(raw, &pkg) != nil {
			return types.TypeNodeJS
		}
		has := func(key string) bool {
			_, inDeps := pkg.Dependencies[key]
			_, inDev := pkg.DevDependencies[key]
			return inDeps || inDev
		}
		switch {
		case has("next"):
			return types.TypeNextJS
		case has("react"):
			return types.TypeReact
		case has("vue"):
			return types.TypeVue
		}
		return types.TypeNodeJS
	}
	if fsutil.PathExists(filepath.Join(dir, "index.html")) {
		return types.TypeHTML
	}
	return types.TypeUnknown
}

func parseFile(path string) (types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m types.Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return types.Manifest{}, fmt.Errorf("parse yaml manifest: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return types.Manifest{}, fmt.Errorf("parse json manifest: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return types.Manifest{}, fmt.Errorf("parse toml manifest: %w", err)
		}
	default:
		return types.Manifest{}, fmt.Errorf("unsupported manifest extension: %s", path)
	}
	return m, nil
}

func applyDefaults(m *types.Manifest, fallbackName string) {
	if m.Name == "" {
		m.Name = fallbackName
	}
	if m.DisplayName == "" {
		m.DisplayName = titleize(m.Name)
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	if m.Type == "" {
		m.Type = types.TypeUnknown
	}
	switch {
	case m.Type.IsNodeBased():
		if m.Port == 0 {
			m.Port = 3000
		}
		if m.InstallCommand == "" {
			m.InstallCommand = "npm install"
		}
		if m.DevCommand == "" {
			m.DevCommand = "npm run dev"
		}
		if m.BuildCommand == "" {
			m.BuildCommand = "npm run build"
		}
		if len(m.RequiredTools) == 0 {
			m.RequiredTools = []string{"node", "npm"}
		}
	case m.Type == types.TypeHTML:
		if m.Port == 0 {
			m.Port = 8080
		}
	default:
		if m.Port == 0 {
			m.Port = 3000
		}
	}
	if m.APIEndpoint == "" {
		m.APIEndpoint = fmt.Sprintf("http://localhost:%d/api/v1", DefaultGatewayPort)
	}
	if m.WebSocketURL == "" {
		m.WebSocketURL = fmt.Sprintf("ws://localhost:%d/ws", DefaultGatewayPort)
	}
	if len(m.CORSOrigins) == 0 {
		m.CORSOrigins = []string{fmt.Sprintf("http://localhost:%d", m.Port)}
	}
}

func titleize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// PortFromURL returns the port named explicitly in raw, or 0 when the URL
// has none (or does not parse).
func PortFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return 0
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err == nil {
			return n
		}
	}
	return 0
}

// SchemePort returns the conventional port for a URL scheme, 0 if unknown.
func SchemePort(raw string) int {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return 0
	}
	switch u.Scheme {
	case "http", "ws":
		return 80
	case "https", "wss":
		return 443
	}
	return 0
}

var knownTypes = map[types.ProjectType]bool{
	types.TypeHTML:    true,
	types.TypeReact:   true,
	types.TypeNextJS:  true,
	types.TypeVue:     true,
	types.TypeNodeJS:  true,
	types.TypeUnknown: true,
}

// Validate checks dir's manifest statically without loading the project.
func Validate(dir string) types.ValidationResult {
	res := types.ValidationResult{Errors: []string{}, Warnings: []string{}}
	p, ok := Find(dir)
	if !ok {
		res.Errors = append(res.Errors, "manifest file not found")
		return res
	}
	res.ManifestPath = p
	m, err := parseFile(p)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	if m.Name == "" {
		res.Warnings = append(res.Warnings, "name missing; the directory name will be used")
	}
	if m.Port != 0 && (m.Port < 1 || m.Port > 65535) {
		res.Errors = append(res.Errors, fmt.Sprintf("port %d out of range", m.Port))
	}
	if m.Type != "" && !knownTypes[m.Type] {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unrecognized project type %q", m.Type))
	}
	if m.DevCommand == "" && !m.Type.IsNodeBased() {
		res.Warnings = append(res.Warnings, "no dev_command; the project cannot be started")
	}
	if m.APIEndpoint != "" {
		if _, err := url.ParseRequestURI(m.APIEndpoint); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("invalid api_endpoint: %v", err))
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}
