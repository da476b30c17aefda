package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"muxfleet/internal/hostconn"
	"muxfleet/internal/muxerrors"
)

// localPTYShell wraps a locally spawned PTY process (used for the "local"
// host's attach command) as a hostconn.Shell, the same interface the
// Connection Manager returns for a remote SSH shell — the Bridge never
// needs to know which kind it holds.
type localPTYShell struct {
	cmd *exec.Cmd
	f   *os.File
}

// OpenLocalAttach spawns attachArgv (normally `tmux attach-session -t
// <target>`) under a PTY sized cols x rows. An empty attachArgv is an error;
// no login shell is started in its place.
func OpenLocalAttach(attachArgv []string) func(ctx context.Context, cols, rows int) (hostconn.Shell, error) {
	return func(ctx context.Context, cols, rows int) (hostconn.Shell, error) {
		if len(attachArgv) == 0 {
			return nil, fmt.Errorf("%w: empty attach command", muxerrors.ErrSessionNotFound)
		}
		cmd := exec.CommandContext(ctx, attachArgv[0], attachArgv[1:]...)
		f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
		if err != nil {
			return nil, fmt.Errorf("%w: spawning local attach: %v", muxerrors.ErrNetworkError, err)
		}
		return &localPTYShell{cmd: cmd, f: f}, nil
	}
}

func (s *localPTYShell) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *localPTYShell) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *localPTYShell) Resize(cols, rows int) error {
	return pty.Setsize(s.f, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}
func (s *localPTYShell) Close() error {
	_ = s.f.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return nil
}

// OpenRemoteAttach opens an interactive shell on hostID via the Connection
// Manager and immediately issues attachArgv as the shell's first command
// line, so the remote side lands directly inside the multiplexer attach
// rather than a bare login shell.
func OpenRemoteAttach(conns *hostconn.Manager, hostID string, attachArgv []string) func(ctx context.Context, cols, rows int) (hostconn.Shell, error) {
	return func(ctx context.Context, cols, rows int) (hostconn.Shell, error) {
		shell, err := conns.OpenShell(ctx, hostID, cols, rows)
		if err != nil {
			return nil, err
		}
		if len(attachArgv) > 0 {
			if _, err := shell.Write([]byte(joinArgvForShell(attachArgv) + "\n")); err != nil {
				shell.Close()
				return nil, err
			}
		}
		return shell, nil
	}
}

func joinArgvForShell(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += "'" + a + "'"
	}
	return out
}
