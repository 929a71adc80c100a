package types

import "time"

// StartResult reports what a start (or the start half of a restart) did.
// Components that are tracked but not yet launchable are listed in
// SkippedComponents rather than silently dropped.
type StartResult struct {
	Success             bool     `json:"success"`
	StartedComponents   []string `json:"started_components"`
	SkippedComponents   []string `json:"skipped_components,omitempty"`
	DependencyInstalled bool     `json:"dependency_installed,omitempty"`
	DependencyWarning   string   `json:"dependency_warning,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// StopResult reports which components a stop actually terminated.
type StopResult struct {
	Success           bool     `json:"success"`
	StoppedComponents []string `json:"stopped_components"`
	Error             string   `json:"error,omitempty"`
}

// ProjectStatus is a point-in-time snapshot of one project, taken after a
// fresh liveness probe.
type ProjectStatus struct {
	Name            string       `json:"name"`
	Namespace       string       `json:"namespace"`
	Enabled         bool         `json:"enabled"`
	FrontendRunning bool         `json:"frontend_running"`
	BackendRunning  bool         `json:"backend_running"`
	FrontendPort    int          `json:"frontend_port,omitempty"`
	BackendPort     int          `json:"backend_port,omitempty"`
	FrontendPID     int          `json:"frontend_pid,omitempty"`
	BackendPID      int          `json:"backend_pid,omitempty"`
	StartTime       *time.Time   `json:"start_time,omitempty"`
	LastHealthCheck *time.Time   `json:"last_health_check,omitempty"`
	HealthStatus    HealthStatus `json:"health_status"`
	Errors          []string     `json:"errors"`
}

// ComponentPort describes one reserved port and the process behind it.
type ComponentPort struct {
	Port    int  `json:"port"`
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// ProjectPorts groups a project's component ports for the usage report.
type ProjectPorts struct {
	Frontend *ComponentPort `json:"frontend,omitempty"`
	Backend  *ComponentPort `json:"backend,omitempty"`
}

// PortMap is the externally visible port layout of a project.
type PortMap struct {
	FrontendDev int `json:"frontend_dev,omitempty"`
	APIGateway  int `json:"api_gateway,omitempty"`
	WebSocket   int `json:"websocket,omitempty"`
}

// ProjectInfo is one entry of the managed-projects listing. The manifest is
// re-read from disk on every listing so edits show up without a restart.
type ProjectInfo struct {
	Name         string      `json:"name"`
	DisplayName  string      `json:"display_name"`
	Version      string      `json:"version"`
	Description  string      `json:"description"`
	Type         ProjectType `json:"type"`
	Enabled      bool        `json:"enabled"`
	ProjectPath  string      `json:"project_path"`
	ManifestPath string      `json:"manifest_path,omitempty"`
	Ports        PortMap     `json:"ports"`
	Manifest     Manifest    `json:"manifest"`
}

// ImportResult reports an archive or image import.
type ImportResult struct {
	Success     bool   `json:"success"`
	ProjectName string `json:"project_name,omitempty"`
	Overwrote   bool   `json:"overwrote,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DeleteResult reports a project deletion.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RefreshResult reports a full rescan of the projects root.
type RefreshResult struct {
	Success     bool     `json:"success"`
	OldProjects []string `json:"old_projects"`
	NewProjects []string `json:"new_projects"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
	Error       string   `json:"error,omitempty"`
}

// UpdatePortsResult reports a port reassignment.
type UpdatePortsResult struct {
	Success bool    `json:"success"`
	Ports   PortMap `json:"ports,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// InstallResult reports a dependency installation run.
type InstallResult struct {
	Success bool     `json:"success"`
	Missing []string `json:"missing,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ValidationResult is the outcome of static manifest validation.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	ManifestPath string   `json:"manifest_path,omitempty"`
}

// EmbedResult carries a PNG with an embedded archive, base64-encoded for
// JSON transport.
type EmbedResult struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ExtractedFile describes one file found inside an image. ContentBase64 is
// populated for archive entries only; metadata-only listings leave it empty.
type ExtractedFile struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Size          int    `json:"size"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

// ExtractResult reports what an image extraction found.
type ExtractResult struct {
	Success bool            `json:"success"`
	Files   []ExtractedFile `json:"files,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorResponse is the generic JSON error body returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
