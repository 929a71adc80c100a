package manager

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"projectd/internal/common/fsutil"
	"projectd/internal/imagebind"
	"projectd/internal/manifest"
	"projectd/pkg/types"
)

// ImportArchive extracts a zip into a staging directory, validates that it
// contains exactly a project directory (one with a manifest file), and
// installs it under the projects root. A rejected archive leaves no residue;
// an existing target directory is replaced without a backup.
func (m *Manager) ImportArchive(data []byte, filename string) types.ImportResult {
	if len(data) == 0 {
		return types.ImportResult{Error: "empty archive"}
	}
	staging, err := os.MkdirTemp("", "projectd-import-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return types.ImportResult{Error: fmt.Sprintf("create staging dir: %v", err)}
	}
	defer os.RemoveAll(staging)

	extractDir := filepath.Join(staging, "extracted")
	if err := extractZip(data, extractDir); err != nil {
		return types.ImportResult{Error: fmt.Sprintf("extract %s: %v", displayName(filename), err)}
	}
	projectDir, ok := findProjectRoot(extractDir)
	if !ok {
		return types.ImportResult{Error: "archive contains no directory with a project manifest"}
	}
	return m.installProjectDir(projectDir)
}

// ImportFromImage pulls the first embedded zip out of a PNG and imports it.
func (m *Manager) ImportFromImage(image []byte) types.ImportResult {
	files, err := imagebind.Extract(image)
	if err != nil {
		return types.ImportResult{Error: err.Error()}
	}
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			return m.ImportArchive(f.Data, f.Name)
		}
	}
	return types.ImportResult{Error: "no zip archive embedded in image"}
}

// EmbedArchive bundles a zip into a PNG and returns the result base64
// encoded for JSON transport.
func (m *Manager) EmbedArchive(image, archive []byte, imageName, archiveName string) types.EmbedResult {
	if len(image) == 0 {
		return types.EmbedResult{Error: "no image data"}
	}
	if len(archive) == 0 {
		return types.EmbedResult{Error: "no archive data"}
	}
	if archiveName == "" {
		archiveName = "project.zip"
	}
	out, err := imagebind.Embed(image, []imagebind.File{{Name: archiveName, Data: archive}})
	if err != nil {
		return types.EmbedResult{Error: err.Error()}
	}
	base := strings.TrimSuffix(displayName(imageName), filepath.Ext(imageName))
	if base == "" {
		base = "bundle"
	}
	return types.EmbedResult{
		Success:     true,
		Filename:    base + "_embedded.png",
		ImageBase64: base64.StdEncoding.EncodeToString(out),
	}
}

// ExtractArchive lists a PNG's embedded files and returns the archive
// entries with their content.
func (m *Manager) ExtractArchive(image []byte) types.ExtractResult {
	files, err := imagebind.Extract(image)
	if err != nil {
		return types.ExtractResult{Error: err.Error()}
	}
	res := types.ExtractResult{Files: []types.ExtractedFile{}}
	foundZip := false
	for _, f := range files {
		ef := types.ExtractedFile{Name: f.Name, Type: f.Type, Size: len(f.Data)}
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			ef.ContentBase64 = base64.StdEncoding.EncodeToString(f.Data)
			foundZip = true
		}
		res.Files = append(res.Files, ef)
	}
	if !foundZip {
		res.Error = "no zip archive embedded in image"
		return res
	}
	res.Success = true
	return res
}

// DeleteProject stops a project, removes its directory and releases its
// ports. There is no backup.
func (m *Manager) DeleteProject(name string) types.DeleteResult {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return types.DeleteResult{Error: ErrProjectNotFound(name).Error()}
	}
	path := p.Path
	m.mu.Unlock()

	m.StopProject(name, "all")
	if err := os.RemoveAll(path); err != nil {
		m.log.Warn().Err(err).Str("project", name).Msg("directory removal incomplete")
	}

	m.mu.Lock()
	if p, ok := m.projects[name]; ok {
		m.releasePortsLocked(p)
		delete(m.projects, name)
	}
	m.mu.Unlock()

	m.log.Info().Str("project", name).Msg("project deleted")
	return types.DeleteResult{Success: true, Message: fmt.Sprintf("project %s deleted", name)}
}

// UpdatePorts reassigns a project's port reservations. Ports must be in
// [1024,65535] and not reserved by another project; a value of 0 leaves
// that component untouched.
func (m *Manager) UpdatePorts(name string, frontend, backend int) types.UpdatePortsResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return types.UpdatePortsResult{Error: ErrProjectNotFound(name).Error()}
	}
	if frontend != 0 && frontend == backend {
		return types.UpdatePortsResult{
			Error: fmt.Sprintf("frontend and backend cannot share port %d", frontend),
		}
	}
	for _, check := range []struct {
		label string
		port  int
		owner string
	}{
		{"frontend", frontend, p.Name},
		{"backend", backend, p.Name + "_backend"},
	} {
		if check.port == 0 {
			continue
		}
		if check.port < 1024 || check.port > 65535 {
			return types.UpdatePortsResult{
				Error: fmt.Sprintf("%s port %d out of range 1024-65535", check.label, check.port),
			}
		}
		if owner, taken := m.ports.Owner(check.port); taken && owner != check.owner {
			return types.UpdatePortsResult{
				Error: fmt.Sprintf("%s port %d already reserved by %s", check.label, check.port, owner),
			}
		}
	}
	if frontend != 0 {
		if p.FrontendPort > 0 {
			m.ports.Release(p.FrontendPort)
		}
		m.ports.Claim(frontend, p.Name)
		p.FrontendPort = frontend
	}
	if backend != 0 {
		if p.BackendPort > 0 {
			m.ports.Release(p.BackendPort)
		}
		m.ports.Claim(backend, p.Name+"_backend")
		p.BackendPort = backend
	}
	m.log.Info().Str("project", name).
		Int("frontend_port", p.FrontendPort).
		Int("backend_port", p.BackendPort).
		Msg("ports updated")
	return types.UpdatePortsResult{
		Success: true,
		Ports:   types.PortMap{FrontendDev: p.FrontendPort, APIGateway: p.BackendPort},
	}
}

// ProjectConfig returns a project's manifest, re-read from disk when
// possible and falling back to the cached copy.
func (m *Manager) ProjectConfig(name string) (types.Manifest, error) {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return types.Manifest{}, ErrProjectNotFound(name)
	}
	path := p.Path
	cached := p.Manifest
	m.mu.Unlock()

	mf, _, err := manifest.Load(path)
	if err != nil {
		return cached, nil
	}
	m.mu.Lock()
	if p, ok := m.projects[name]; ok {
		p.Manifest = mf
	}
	m.mu.Unlock()
	return mf, nil
}

// ValidateManifest statically validates a project's manifest file.
func (m *Manager) ValidateManifest(name string) types.ValidationResult {
	m.mu.Lock()
	p, ok := m.projects[name]
	if !ok {
		m.mu.Unlock()
		return types.ValidationResult{
			Errors:   []string{ErrProjectNotFound(name).Error()},
			Warnings: []string{},
		}
	}
	path := p.Path
	m.mu.Unlock()
	return manifest.Validate(path)
}

// installProjectDir moves a validated project directory from staging into
// the projects root and registers it.
func (m *Manager) installProjectDir(projectDir string) types.ImportResult {
	name := filepath.Base(projectDir)
	target := filepath.Join(m.cfg.ProjectsDir, name)
	overwrote := false
	if fsutil.PathExists(target) {
		if err := os.RemoveAll(target); err != nil {
			return types.ImportResult{Error: fmt.Sprintf("replace existing project: %v", err)}
		}
		overwrote = true
		m.log.Info().Str("path", target).Msg("existing project directory replaced")
	}
	if err := fsutil.CopyDir(projectDir, target); err != nil {
		return types.ImportResult{Error: fmt.Sprintf("install project: %v", err)}
	}

	m.mu.Lock()
	if old, ok := m.projects[name]; ok {
		m.releasePortsLocked(old)
		delete(m.projects, name)
	}
	m.mu.Unlock()

	if _, err := m.loadProjectDir(target); err != nil {
		return types.ImportResult{Error: fmt.Sprintf("project copied but failed to load: %v", err)}
	}
	m.log.Info().Str("project", name).Bool("overwrote", overwrote).Msg("project imported")
	return types.ImportResult{
		Success:     true,
		ProjectName: name,
		Overwrote:   overwrote,
		Message:     fmt.Sprintf("project %s imported", name),
	}
}

func extractZip(data []byte, dest string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	cleanDest := filepath.Clean(dest)
	for _, f := range zr.File {
		if strings.Contains(f.Name, "..") || filepath.IsAbs(f.Name) {
			return fmt.Errorf("unsafe path in archive: %s", f.Name)
		}
		target := filepath.Join(cleanDest, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("unsafe path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// findProjectRoot looks for the extracted subdirectory that carries a
// manifest file. The archive root itself qualifying is not supported; a
// project travels as a named directory.
func findProjectRoot(extractDir string) (string, bool) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(extractDir, e.Name())
		if _, ok := manifest.Find(dir); ok {
			return dir, true
		}
	}
	return "", false
}

func displayName(filename string) string {
	if filename == "" {
		return "archive"
	}
	return filepath.Base(filename)
}
