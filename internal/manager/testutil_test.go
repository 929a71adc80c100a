package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"projectd/internal/probe"
	"projectd/internal/proc"
)

type fakeLauncher struct {
	mu           sync.Mutex
	calls        []string
	startErr     error
	installErr   error
	terminateErr error
	nextPID      int
}

func (f *fakeLauncher) Start(command, dir string) (*proc.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start:"+command)
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.nextPID++
	return &proc.Handle{PID: 4000 + f.nextPID}, nil
}

func (f *fakeLauncher) Terminate(h *proc.Handle, wait time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("terminate:%d", h.PID))
	return f.terminateErr
}

func (f *fakeLauncher) RunInstall(ctx context.Context, command, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "install:"+command)
	return f.installErr
}

func (f *fakeLauncher) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

type fakeProber struct {
	mu    sync.Mutex
	res   probe.Result
	calls int
}

func (f *fakeProber) Probe(ctx context.Context, frontendPort, backendPort int) probe.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return probe.Result{
		FrontendRunning: f.res.FrontendRunning,
		BackendRunning:  f.res.BackendRunning,
		Errors:          append([]string{}, f.res.Errors...),
	}
}

func (f *fakeProber) set(res probe.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res = res
}

func (f *fakeProber) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestManager(t *testing.T, root string) (*Manager, *fakeLauncher, *fakeProber) {
	t.Helper()
	m := New(Config{
		ProjectsDir: root,
		SettleDelay: 10 * time.Millisecond,
		StopWait:    time.Second,
	}, zerolog.Nop())
	fl := &fakeLauncher{}
	fp := &fakeProber{}
	m.launcher = fl
	m.prober = fp
	return m, fl, fp
}

func writeProject(t *testing.T, root, dir string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		full := filepath.Join(path, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
