package api

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"muxfleet/internal/config"
	"muxfleet/internal/muxadapter"
	"muxfleet/pkg/types"
)

const (
	localSessionStartupWait  = 500 * time.Millisecond
	remoteSessionStartupWait = 1500 * time.Millisecond
)

// localHost is the reserved pseudo-host the Control Surface always exposes
// alongside whatever remote hosts are configured.
var localHost = types.HostConfig{ID: "local", Name: "local"}

// resolveHost looks up hostID among the configured remote hosts, plus the
// implicit local pseudo-host.
func (s *Server) resolveHost(hostID string) (types.HostConfig, bool) {
	if hostID == "local" {
		return localHost, true
	}
	return s.hosts.Get(hostID)
}

// execOnHost runs argv on host, locally via os/exec for the local
// pseudo-host or remotely via the Connection Manager otherwise — the same
// local/remote split the Discovery Engine uses, duplicated here because the
// Control Surface needs it for session lifecycle commands the Engine itself
// never issues (new-session, kill-session, attach existence checks).
func execOnHost(ctx context.Context, conns connExecutor, host types.HostConfig, argv []string) (string, error) {
	if host.IsLocal() {
		return execLocal(ctx, argv)
	}
	return conns.Exec(ctx, host.ID, argv)
}

// execLocal mirrors the Connection Manager's own exec semantics for the
// local pseudo-host: a non-zero exit with non-empty stderr is a failure,
// a non-zero exit with empty stderr yields "", nil.
func execLocal(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("%s", stderr.String())
			}
			return "", nil
		}
		return "", err
	}
	return stdout.String(), nil
}

func execMux(ctx context.Context, conns connExecutor, host types.HostConfig, args []string) (string, error) {
	return execOnHost(ctx, conns, host, append([]string{muxadapter.MuxBinary}, args...))
}

// workingDirectoryExists checks a create-session request's working
// directory, skipping the check entirely for "" or "~" (home directory is
// always assumed to exist). The remote case has no reliable error-free way
// to distinguish "missing" from "permission denied" through the Connection
// Manager's exec semantics, so it is treated the same as missing — the
// session creation attempt itself will surface a clearer error if the real
// problem is something else.
func workingDirectoryExists(ctx context.Context, conns connExecutor, host types.HostConfig, dir string) bool {
	if dir == "" || dir == "~" {
		return true
	}
	if host.IsLocal() {
		info, err := os.Stat(config.ExpandHome(dir))
		return err == nil && info.IsDir()
	}
	_, err := conns.Exec(ctx, host.ID, []string{"ls", "-d", dir})
	return err == nil
}

func sessionStartupWait(host types.HostConfig) time.Duration {
	if host.IsLocal() {
		return localSessionStartupWait
	}
	return remoteSessionStartupWait
}
