package hostconn

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"muxfleet/internal/config"
	"muxfleet/internal/logging"
	"muxfleet/internal/muxadapter"
	"muxfleet/internal/muxerrors"
	"muxfleet/pkg/types"
)

// bufferPool reuses copy buffers across the relay goroutines so a busy
// fleet of jump-hosted shells doesn't churn the allocator on every read.
var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 32*1024)
		return &b
	},
}

// nativeSSHBinary is overridable in tests.
var nativeSSHBinary = "ssh"

func buildNativeArgs(host types.HostConfig) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "BatchMode=no",
	}
	if host.JumpHost != nil {
		jump := fmt.Sprintf("%s@%s:%d", host.JumpHost.Username, host.JumpHost.Hostname, host.JumpHost.Port)
		args = append(args, "-J", jump)
		if host.JumpHost.Auth.PrivateKeyPath != "" {
			args = append(args, "-i", config.ExpandHome(host.JumpHost.Auth.PrivateKeyPath))
		}
	}
	if host.Auth.PrivateKeyPath != "" {
		args = append(args, "-i", config.ExpandHome(host.Auth.PrivateKeyPath))
	}
	args = append(args, "-p", strconv.Itoa(host.Port), fmt.Sprintf("%s@%s", host.Username, host.Hostname))
	return args
}

// passwordWatcher scans a PTY's output for case-insensitive "password:"
// prompts and answers the first two occurrences with the jump password
// then the target password, debounced 500ms so a single prompt echoed in
// fragments is not answered twice.
type passwordWatcher struct {
	mu           sync.Mutex
	lastTrigger  time.Time
	triggerCount int
	jumpPassword string
	targetPassword string
	write        func([]byte) (int, error)
}

func (w *passwordWatcher) feed(chunk []byte) {
	if !bytes.Contains(bytes.ToLower(chunk), []byte("password:")) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastTrigger) < 500*time.Millisecond {
		return
	}
	w.lastTrigger = time.Now()
	w.triggerCount++
	switch w.triggerCount {
	case 1:
		if w.jumpPassword != "" {
			w.write([]byte(w.jumpPassword + "\n"))
			return
		}
		fallthrough
	case 2:
		if w.targetPassword != "" {
			w.write([]byte(w.targetPassword + "\n"))
		}
	}
}

// OpenNativeShell spawns the native ssh binary in a PTY for interactive
// use, for host/auth combinations RequiresNativeFallback selects.
func (m *Manager) OpenNativeShell(ctx context.Context, host types.HostConfig, cols, rows int) (Shell, error) {
	args := buildNativeArgs(host)
	cmd := exec.CommandContext(ctx, nativeSSHBinary, args...)

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, fmt.Errorf("%w: spawning native ssh: %v", muxerrors.ErrNetworkError, err)
	}

	watcher := &passwordWatcher{
		jumpPassword:   config.ResolvePassword(derefJump(host).Auth),
		targetPassword: config.ResolvePassword(host.Auth),
		write:          f.Write,
	}

	shell := &ptyShell{cmd: cmd, f: f, watcher: watcher}
	return shell, nil
}

func derefJump(h types.HostConfig) types.HostConfig {
	if h.JumpHost == nil {
		return types.HostConfig{}
	}
	return *h.JumpHost
}

// ptyShell wraps a native ssh process's PTY as a Shell, watching every read
// for password prompts before handing bytes to the caller.
type ptyShell struct {
	cmd     *exec.Cmd
	f       *os.File
	watcher *passwordWatcher
	mu      sync.Mutex
}

func (s *ptyShell) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if n > 0 {
		s.watcher.feed(p[:n])
	}
	return n, err
}

func (s *ptyShell) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *ptyShell) Resize(cols, rows int) error {
	return pty.Setsize(s.f, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (s *ptyShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.f.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return nil
}

// execViaNative runs command through the native ssh binary non-interactively
// and returns captured, ANSI-stripped stdout, for exec() on hosts whose auth
// model requires the fallback path.
func (m *Manager) execViaNative(ctx context.Context, host types.HostConfig, command string) (string, error) {
	args := append(buildNativeArgs(host), command)
	cmd := exec.CommandContext(ctx, nativeSSHBinary, args...)

	f, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("%w: spawning native ssh: %v", muxerrors.ErrNetworkError, err)
	}
	defer f.Close()

	var out bytes.Buffer
	watcher := &passwordWatcher{
		jumpPassword:   config.ResolvePassword(derefJump(host).Auth),
		targetPassword: config.ResolvePassword(host.Auth),
		write:          f.Write,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bufPtr := bufferPool.Get().(*[]byte)
		defer bufferPool.Put(bufPtr)
		buf := *bufPtr
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				watcher.feed(buf[:n])
				out.Write(buf[:n])
			}
			if readErr != nil {
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	<-done

	cleaned := stripPromptEchoes(muxadapter.StripANSI(out.String()))
	if waitErr != nil {
		logging.S().Warnw("native ssh exec exited non-zero", "host_id", host.ID, "err", waitErr)
	}
	return cleaned, nil
}

// stripPromptEchoes removes password-prompt lines that were echoed into
// the captured transcript before the watcher answered them.
func stripPromptEchoes(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l), "password:") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
