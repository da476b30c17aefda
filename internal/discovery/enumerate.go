package discovery

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"muxfleet/internal/logging"
	"muxfleet/internal/muxadapter"
	"muxfleet/pkg/types"
)

// execRaw runs argv[0](argv[1:]...) on host, locally via os/exec or
// remotely via the Host Connection Manager. A non-zero exit with no other
// error is treated as empty output, never as a failure: the multiplexer
// routinely exits non-zero simply because it is not running on that host.
func (e *Engine) execRaw(ctx context.Context, host types.HostConfig, argv []string) (string, error) {
	if host.IsLocal() {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		out, err := cmd.Output()
		if err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				return "", nil
			}
			return "", err
		}
		return string(out), nil
	}
	return e.conns.Exec(ctx, host.ID, argv)
}

func (e *Engine) execMux(ctx context.Context, host types.HostConfig, args []string) (string, error) {
	return e.execRaw(ctx, host, append([]string{muxBinary}, args...))
}

// enumerateHost lists every session and pane on host and builds one domain
// Session per pane. Host failures are isolated: a failing host logs and
// contributes an empty list rather than aborting the whole cycle.
func (e *Engine) enumerateHost(ctx context.Context, host types.HostConfig) []types.Session {
	out, err := e.execMux(ctx, host, muxadapter.BuildListSessionsArgs())
	if err != nil {
		logging.S().Warnw("discovery: list-sessions failed", "host_id", host.ID, "err", err)
		return nil
	}

	var sessions []types.Session
	for _, sl := range muxadapter.ParseListSessions(out) {
		panesOut, err := e.execMux(ctx, host, muxadapter.BuildListPanesArgs(sl.SessionName))
		if err != nil {
			logging.S().Warnw("discovery: list-panes failed", "host_id", host.ID, "session", sl.SessionName, "err", err)
			continue
		}
		for _, p := range muxadapter.ParsePanes(panesOut) {
			sessions = append(sessions, e.buildSession(ctx, host, sl, p))
		}
	}
	return sessions
}

func (e *Engine) buildSession(ctx context.Context, host types.HostConfig, sl muxadapter.SessionListing, p muxadapter.PaneListing) types.Session {
	id := host.ID + ":" + sl.MuxSessionID + ":" + p.PaneID

	sess := types.Session{
		ID:       id,
		Name:     sl.SessionName,
		HostID:   host.ID,
		HostName: host.Name,
		Mux: types.MuxCoordinates{
			SessionID:   sl.MuxSessionID,
			SessionName: sl.SessionName,
			PaneID:      p.PaneID,
			WindowIndex: p.WindowIndex,
		},
		Status:             types.SessionActive,
		IsAssistantSession: e.classifyAssistant(ctx, host, sl, p),
		Process:            types.ProcessInfo{PID: p.PID, CurrentCommand: p.CurrentCommand},
		CreatedAt:          time.Unix(sl.CreatedUnix, 0).UTC(),
		LastActivityAt:     time.Now().UTC(),
		Dimensions:         types.Dimensions{Cols: p.Width, Rows: p.Height},
		WorkingDirectory:   p.CurrentPath,
	}

	// Only local panes are enriched, to avoid amplifying SSH round-trips
	// (capture-pane/display-message/pgrep) across every remote pane on
	// every cycle.
	if host.IsLocal() {
		sess.Enrichment = e.enrichLocal(ctx, host, sl, p)
	}
	return sess
}

// classifyAssistant runs the fast classifier (current command is, or starts
// with, the assistant CLI name, word-bounded) and falls back to the deep
// classifier (inspecting child processes via pgrep) only when the session
// name hints at an assistant session but the fast path missed.
func (e *Engine) classifyAssistant(ctx context.Context, host types.HostConfig, sl muxadapter.SessionListing, p muxadapter.PaneListing) bool {
	if e.assistantCLIName == "" {
		return false
	}
	cmd := p.CurrentCommand
	if cmd == e.assistantCLIName || strings.HasPrefix(cmd, e.assistantCLIName+" ") {
		return true
	}
	if !strings.Contains(strings.ToLower(sl.SessionName), strings.ToLower(e.assistantCLIName)) {
		return false
	}
	out, err := e.execRaw(ctx, host, []string{"pgrep", "-P", strconv.Itoa(p.PID), "-a"})
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(out), strings.ToLower(e.assistantCLIName))
}
