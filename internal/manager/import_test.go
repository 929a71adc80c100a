package manager

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"projectd/internal/imagebind"
)

// testPNG builds the smallest structurally valid PNG: header, a zeroed
// IHDR and IEND. Chunk CRCs are not verified on read, so they are zeroed.
func testPNG() []byte {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	png = append(png, 0, 0, 0, 13)
	png = append(png, 'I', 'H', 'D', 'R')
	png = append(png, make([]byte, 13)...)
	png = append(png, 0, 0, 0, 0) // CRC
	png = append(png, 0, 0, 0, 0)
	png = append(png, 'I', 'E', 'N', 'D')
	png = append(png, 0, 0, 0, 0) // CRC
	return png
}

func TestImportArchiveInstallsProject(t *testing.T) {
	root := t.TempDir()
	m, _, _ := newTestManager(t, root)

	data := buildZip(t, map[string]string{
		"myproj/projectd.yaml": "name: myproj\ntype: html\n",
		"myproj/index.html":    "<html></html>",
	})
	res := m.ImportArchive(data, "myproj.zip")
	if !res.Success {
		t.Fatalf("import failed: %+v", res)
	}
	if res.ProjectName != "myproj" || res.Overwrote {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(root, "myproj", "index.html")); err != nil {
		t.Fatalf("project files not installed: %v", err)
	}
	names := m.Names()
	if len(names) != 1 || names[0] != "myproj" {
		t.Fatalf("project not registered: %v", names)
	}
}

func TestImportArchiveRejectsWithoutManifest(t *testing.T) {
	root := t.TempDir()
	m, _, _ := newTestManager(t, root)

	data := buildZip(t, map[string]string{
		"stuff/readme.txt": "nothing to see",
	})
	res := m.ImportArchive(data, "stuff.zip")
	if res.Success || res.Error == "" {
		t.Fatalf("expected rejection: %+v", res)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected import left residue: %v", entries)
	}
}

func TestImportArchiveOverwritesExisting(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "myproj", map[string]string{
		"projectd.yaml": "name: myproj\ntype: html\n",
		"old.txt":       "stale",
	})
	m, _, _ := newTestManager(t, root)
	m.discover()

	data := buildZip(t, map[string]string{
		"myproj/projectd.yaml": "name: myproj\ntype: html\n",
		"myproj/new.txt":       "fresh",
	})
	res := m.ImportArchive(data, "myproj.zip")
	if !res.Success || !res.Overwrote {
		t.Fatalf("expected an overwriting import: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(root, "myproj", "old.txt")); err == nil {
		t.Fatal("stale file survived the overwrite")
	}
	if _, err := os.Stat(filepath.Join(root, "myproj", "new.txt")); err != nil {
		t.Fatalf("new file missing: %v", err)
	}
}

func TestImportArchiveRejectsUnsafePaths(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	data := buildZip(t, map[string]string{
		"../escape.txt": "nope",
	})
	res := m.ImportArchive(data, "evil.zip")
	if res.Success {
		t.Fatalf("zip-slip archive accepted: %+v", res)
	}
}

func TestEmbedAndExtractArchive(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	archive := buildZip(t, map[string]string{"p/projectd.yaml": "name: p\n"})

	embedded := m.EmbedArchive(testPNG(), archive, "cover.png", "p.zip")
	if !embedded.Success {
		t.Fatalf("embed failed: %+v", embedded)
	}
	if embedded.Filename != "cover_embedded.png" {
		t.Fatalf("unexpected filename: %s", embedded.Filename)
	}
	img, err := base64.StdEncoding.DecodeString(embedded.ImageBase64)
	if err != nil {
		t.Fatal(err)
	}

	extracted := m.ExtractArchive(img)
	if !extracted.Success || len(extracted.Files) != 1 {
		t.Fatalf("extract failed: %+v", extracted)
	}
	if extracted.Files[0].Name != "p.zip" || extracted.Files[0].ContentBase64 == "" {
		t.Fatalf("archive entry incomplete: %+v", extracted.Files[0])
	}
}

func TestImportFromImage(t *testing.T) {
	root := t.TempDir()
	m, _, _ := newTestManager(t, root)
	archive := buildZip(t, map[string]string{
		"imgproj/projectd.yaml": "name: imgproj\ntype: html\n",
	})
	img, err := imagebind.Embed(testPNG(), []imagebind.File{{Name: "imgproj.zip", Data: archive}})
	if err != nil {
		t.Fatal(err)
	}

	res := m.ImportFromImage(img)
	if !res.Success || res.ProjectName != "imgproj" {
		t.Fatalf("image import failed: %+v", res)
	}

	plain := m.ImportFromImage(testPNG())
	if plain.Success {
		t.Fatalf("image without bundle accepted: %+v", plain)
	}
}

func TestDeleteProjectRemovesEverything(t *testing.T) {
	root := t.TempDir()
	path := writeProject(t, root, "doomed", map[string]string{
		"projectd.yaml": "name: doomed\ntype: html\ndev_command: serve\n",
	})
	m, _, _ := newTestManager(t, root)
	m.discover()
	m.StartProject("doomed", "frontend")

	m.mu.Lock()
	frontendPort := m.projects["doomed"].FrontendPort
	m.mu.Unlock()

	res := m.DeleteProject("doomed")
	if !res.Success {
		t.Fatalf("delete failed: %+v", res)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("project directory still exists")
	}
	if len(m.Names()) != 0 {
		t.Fatalf("record not dropped: %v", m.Names())
	}
	if _, taken := m.ports.Owner(frontendPort); taken {
		t.Fatalf("port %d still reserved", frontendPort)
	}
	if res := m.DeleteProject("doomed"); res.Success {
		t.Fatalf("double delete accepted: %+v", res)
	}
}

func TestValidateManifestOperation(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "app", map[string]string{
		"projectd.yaml": "name: app\ntype: html\n",
	})
	m, _, _ := newTestManager(t, root)
	m.discover()

	res := m.ValidateManifest("app")
	if !res.Valid {
		t.Fatalf("expected valid manifest: %+v", res)
	}
	res = m.ValidateManifest("ghost")
	if res.Valid || len(res.Errors) == 0 {
		t.Fatalf("expected failure for unknown project: %+v", res)
	}
}
