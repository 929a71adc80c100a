// Package proc launches project commands through a shell and terminates
// whole process trees.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Handle tracks one launched command.
type Handle struct {
	PID int

	cmd  *exec.Cmd
	done chan struct{}
}

// Done returns a channel closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Launcher starts detached dev servers and runs blocking install commands.
type Launcher struct {
	log zerolog.Logger
}

// NewLauncher returns a launcher logging subprocess output at debug level.
func NewLauncher(log zerolog.Logger) *Launcher {
	return &Launcher{log: log.With().Str("component", "launcher").Logger()}
}

// Start launches command through the platform shell with dir as working
// directory and returns immediately. The command's process group is kept
// separate so the whole tree can be signalled later.
func (l *Launcher) Start(command, dir string) (*Handle, error) {
	name := firstToken(command)
	if name == "" {
		return nil, errors.New("empty command")
	}
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrCommandUnavailable(name)
	}

	cmd := shellCommand(command)
	cmd.Dir = dir
	cmd.Env = commandEnv(command)
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	go drain(l.log, name, "stdout", stdout)
	go drain(l.log, name, "stderr", stderr)

	h := &Handle{PID: cmd.Process.Pid, cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()
	l.log.Debug().Str("command", command).Int("pid", h.PID).Msg("process started")
	return h, nil
}

// Terminate signals the process tree and waits up to wait for the leader to
// be reaped, escalating to a hard kill if it lingers.
func (l *Launcher) Terminate(h *Handle, wait time.Duration) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if err := killTree(h.cmd.Process.Pid); err != nil {
		l.log.Warn().Err(err).Int("pid", h.PID).Msg("tree terminate failed, killing leader")
		_ = h.cmd.Process.Kill()
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(wait):
	}
	_ = h.cmd.Process.Kill()
	select {
	case <-h.done:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("process %d did not exit after kill", h.PID)
	}
}

// RunInstall runs an install command to completion in dir. Output is logged
// at debug level; a nonzero exit comes back as an error.
func (l *Launcher) RunInstall(ctx context.Context, command, dir string) error {
	name := firstToken(command)
	if name == "" {
		return errors.New("empty command")
	}
	if _, err := exec.LookPath(name); err != nil {
		return ErrCommandUnavailable(name)
	}
	cmd := shellCommandContext(ctx, command)
	cmd.Dir = dir
	cmd.Env = commandEnv(command)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		l.log.Debug().Str("command", command).Msg(strings.TrimSpace(string(tail(out, 4096))))
	}
	if err != nil {
		return fmt.Errorf("install command %q: %w", command, err)
	}
	return nil
}

func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var packageManagers = map[string]bool{
	"npm":  true,
	"npx":  true,
	"pnpm": true,
	"yarn": true,
}

// commandEnv returns the inherited environment, with PATH widened to the
// usual package-manager install locations when the command invokes one.
// Dev servers spawned from a minimal service environment often miss those.
func commandEnv(command string) []string {
	env := os.Environ()
	for _, tok := range strings.Fields(command) {
		if packageManagers[tok] {
			return widenPath(env)
		}
	}
	return env
}

func widenPath(env []string) []string {
	var extra []string
	for _, dir := range extraPathDirs() {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); err == nil {
			extra = append(extra, dir)
		}
	}
	if len(extra) == 0 {
		return env
	}
	sep := string(os.PathListSeparator)
	prefix := strings.Join(extra, sep)
	for i, kv := range env {
		if len(kv) >= 5 && strings.EqualFold(kv[:5], "PATH=") {
			env[i] = kv[:5] + prefix + sep + kv[5:]
			return env
		}
	}
	return append(env, "PATH="+prefix)
}

func drain(log zerolog.Logger, name, stream string, r io.Reader) {
	if r == nil {
		return
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for s.Scan() {
		log.Debug().Str("process", name).Str("stream", stream).Msg(s.Text())
	}
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
