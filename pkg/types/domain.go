package types

// ProjectType classifies a managed project. The type decides default ports,
// commands and required tooling when the manifest leaves them out.
type ProjectType string

const (
	TypeHTML    ProjectType = "html"
	TypeReact   ProjectType = "react"
	TypeNextJS  ProjectType = "nextjs"
	TypeVue     ProjectType = "vue"
	TypeNodeJS  ProjectType = "nodejs"
	TypeUnknown ProjectType = "unknown"
)

// IsNodeBased reports whether the type is driven by a package.json toolchain.
func (t ProjectType) IsNodeBased() bool {
	switch t {
	case TypeReact, TypeNextJS, TypeVue, TypeNodeJS:
		return true
	}
	return false
}

// HealthStatus is the orchestrator's verdict for one project. Derivation:
// recorded errors win (unhealthy), then any running component (healthy),
// otherwise unknown.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Manifest is a project's declarative descriptor, read from
// projectd.yaml/.yml/.json/.toml in the project root or inferred from the
// directory contents when no manifest file exists.
type Manifest struct {
	Name           string      `json:"name" yaml:"name" toml:"name"`
	DisplayName    string      `json:"display_name" yaml:"display_name" toml:"display_name"`
	Version        string      `json:"version" yaml:"version" toml:"version"`
	Description    string      `json:"description" yaml:"description" toml:"description"`
	Type           ProjectType `json:"type" yaml:"type" toml:"type"`
	Port           int         `json:"port" yaml:"port" toml:"port"`
	InstallCommand string      `json:"install_command" yaml:"install_command" toml:"install_command"`
	DevCommand     string      `json:"dev_command" yaml:"dev_command" toml:"dev_command"`
	BuildCommand   string      `json:"build_command" yaml:"build_command" toml:"build_command"`
	APIEndpoint    string      `json:"api_endpoint" yaml:"api_endpoint" toml:"api_endpoint"`
	WebSocketURL   string      `json:"websocket_url" yaml:"websocket_url" toml:"websocket_url"`
	CORSOrigins    []string    `json:"cors_origins,omitempty" yaml:"cors_origins" toml:"cors_origins"`
	RequiredTools  []string    `json:"required_tools,omitempty" yaml:"required_tools" toml:"required_tools"`
}
