// Package hostconn maintains at most one live SSH client per configured
// host id, with jump-host tunneling, exponential-backoff reconnection, and
// a native-ssh-process fallback for authentication combinations pure
// library tunneling cannot express. Every exported method is safe to call
// from multiple goroutines.
package hostconn

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"muxfleet/internal/config"
	"muxfleet/internal/logging"
	"muxfleet/internal/muxerrors"
	"muxfleet/pkg/types"
)

const (
	directTimeout = 10 * time.Second
	jumpTimeout   = 30 * time.Second
)

// Shell is a bidirectional byte stream over an interactive remote (or
// native-ssh-fallback) shell.
type Shell interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Close() error
}

// connRecord is the per-host bookkeeping entry. Exactly one exists per
// host id for the manager's lifetime; its fields are guarded by mu.
type connRecord struct {
	mu         sync.Mutex
	host       types.HostConfig
	state      types.ConnState
	client     *ssh.Client
	jumpClient *ssh.Client
	attempts   int
	reconnectTimer *time.Timer
	cancelReconnect context.CancelFunc
}

// Manager is the Host Connection Manager singleton, constructed once and
// held as a field of the top-level Server.
type Manager struct {
	hosts map[string]types.HostConfig

	recordsMu sync.Mutex
	records   map[string]*connRecord

	shuttingDown bool
}

// NewManager builds a Manager over the given host configuration list.
func NewManager(hosts []types.HostConfig) *Manager {
	m := &Manager{
		hosts:   make(map[string]types.HostConfig, len(hosts)),
		records: make(map[string]*connRecord, len(hosts)),
	}
	for _, h := range hosts {
		m.hosts[h.ID] = h
	}
	return m
}

func (m *Manager) recordFor(hostID string) (*connRecord, error) {
	m.recordsMu.Lock()
	defer m.recordsMu.Unlock()
	if r, ok := m.records[hostID]; ok {
		return r, nil
	}
	h, ok := m.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", muxerrors.ErrHostUnknown, hostID)
	}
	r := &connRecord{host: h, state: types.ConnDisconnected}
	m.records[hostID] = r
	return r, nil
}

// Connect establishes (or reuses) the single live SSH client for hostID.
// Serializes the connect-or-reuse decision per host via the record's own
// mutex, so two concurrent discovery goroutines can never both dial the
// same host. It drives the record's state machine with an explicit
// eventConnectRequested, so a caller-initiated connect always dials
// regardless of how many automatic attempts have already failed.
func (m *Manager) Connect(ctx context.Context, hostID string) (*ssh.Client, error) {
	rec, err := m.recordFor(hostID)
	if err != nil {
		return nil, err
	}
	if rec.host.IsLocal() {
		return nil, fmt.Errorf("%w: local host has no SSH client", muxerrors.ErrHostUnknown)
	}
	return m.connectViaEvent(ctx, rec, eventConnectRequested)
}

// connectViaEvent drives rec's state through transition() for ev — either
// eventConnectRequested (an explicit caller-initiated connect) or
// eventReconnectTimerFired (an armed backoff timer firing) — applying the
// resulting effects and performing the dial itself when the transition
// calls for one, since only the caller can hand the resulting client (or
// error) back up the stack. transition is the single source of truth for
// every state change; this method is its only effect-interpreter.
func (m *Manager) connectViaEvent(ctx context.Context, rec *connRecord, ev event) (*ssh.Client, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state == types.ConnConnected && rec.client != nil {
		return rec.client, nil
	}
	if ev == eventConnectRequested {
		// An explicit connect request preempts whatever automatic retry
		// might already be pending, so the two never race to dial at once.
		if rec.cancelReconnect != nil {
			rec.cancelReconnect()
			rec.cancelReconnect = nil
		}
	}

	next, effects := transition(rec.state, rec.attempts, ev)
	rec.state = next
	m.applyEffects(rec, effects)
	if !hasEffect(effects, effectDial) {
		return nil, fmt.Errorf("%w: host %s is not ready to dial (state=%s)", muxerrors.ErrNetworkError, rec.host.ID, rec.state)
	}

	client, jumpClient, dialErr := dial(ctx, rec.host)
	if dialErr != nil {
		next, effects = transition(rec.state, rec.attempts, eventErrorOccurred)
		rec.state = next
		m.applyEffects(rec, effects)
		return nil, dialErr
	}

	rec.client = client
	rec.jumpClient = jumpClient
	next, effects = transition(rec.state, rec.attempts, eventReadyReceived)
	rec.state = next
	m.applyEffects(rec, effects)
	logging.S().Infow("host connected", "host_id", rec.host.ID)
	return client, nil
}

// applyEffects carries out every non-dial effect transition returns.
// rec.mu must already be held by the caller. effectDial is interpreted by
// connectViaEvent itself, not here, since dialing needs to hand its result
// back to that method's caller.
func (m *Manager) applyEffects(rec *connRecord, effects []effect) {
	for _, eff := range effects {
		switch eff {
		case effectDial:
			// handled by connectViaEvent
		case effectResetAttemptCounter:
			rec.attempts = 0
		case effectCancelReconnectTimer:
			if rec.cancelReconnect != nil {
				rec.cancelReconnect()
				rec.cancelReconnect = nil
			}
			if rec.reconnectTimer != nil {
				rec.reconnectTimer.Stop()
				rec.reconnectTimer = nil
			}
		case effectMarkMaxAttempts:
			logging.S().Warnw("max reconnect attempts exceeded", "host_id", rec.host.ID)
		case effectScheduleReconnect:
			m.armReconnectTimer(rec)
		}
	}
}

func hasEffect(effects []effect, want effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}

// armReconnectTimer increments the attempt counter and arms a backoff timer
// that, on firing, drives the state machine with eventReconnectTimerFired —
// which is where transition() itself decides whether maxReconnectAttempts
// has been exceeded. rec.mu must already be held by the caller.
func (m *Manager) armReconnectTimer(rec *connRecord) {
	if m.shuttingDown {
		return
	}
	rec.attempts++
	delay := backoffDelay(rec.attempts)
	ctx, cancel := context.WithCancel(context.Background())
	rec.cancelReconnect = cancel
	if rec.reconnectTimer != nil {
		rec.reconnectTimer.Stop()
	}
	rec.reconnectTimer = time.AfterFunc(delay, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		dialCtx, dialCancel := context.WithTimeout(context.Background(), jumpTimeout)
		defer dialCancel()
		if _, err := m.connectViaEvent(dialCtx, rec, eventReconnectTimerFired); err != nil {
			logging.S().Warnw("reconnect attempt failed", "host_id", rec.host.ID, "attempt", rec.attempts, "err", err)
		}
	})
}

// Exec runs command on hostID and returns captured stdout. Non-zero exit
// with non-empty stderr is a failure; non-zero exit with empty stderr
// yields "" (multiplexer queries routinely exit non-zero when the
// multiplexer is not running on that host, which must not be an error).
// Hosts on the native-ssh fallback path run through a PTY, where stdout and
// stderr arrive merged: there a non-zero exit is logged and the cleaned
// output is returned without an error.
func (m *Manager) Exec(ctx context.Context, hostID string, argv []string) (string, error) {
	host, ok := m.hosts[hostID]
	if !ok {
		return "", fmt.Errorf("%w: %s", muxerrors.ErrHostUnknown, hostID)
	}
	if !host.IsLocal() && RequiresNativeFallback(host) {
		return m.execViaNative(ctx, host, shellQuote(argv))
	}

	client, err := m.Connect(ctx, hostID)
	if err != nil {
		return "", err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: %v", muxerrors.ErrNetworkError, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(shellQuote(argv)) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("%w: exec timed out", muxerrors.ErrTimeout)
	case runErr := <-done:
		if runErr != nil {
			if stderr.Len() > 0 {
				return "", fmt.Errorf("%w: %s", muxerrors.ErrNetworkError, stderr.String())
			}
			return "", nil
		}
		return stdout.String(), nil
	}
}

// OpenShell opens an interactive PTY-backed shell on hostID.
func (m *Manager) OpenShell(ctx context.Context, hostID string, cols, rows int) (Shell, error) {
	host, ok := m.hosts[hostID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", muxerrors.ErrHostUnknown, hostID)
	}
	if !host.IsLocal() && RequiresNativeFallback(host) {
		return m.OpenNativeShell(ctx, host, cols, rows)
	}

	client, err := m.Connect(ctx, hostID)
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", muxerrors.ErrNetworkError, err)
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: pty request failed: %v", muxerrors.ErrNetworkError, err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, err
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: %v", muxerrors.ErrNetworkError, err)
	}
	return &sshShell{session: session, stdin: stdin, stdout: stdout}, nil
}

type sshShell struct {
	session *ssh.Session
	stdin   interface{ Write([]byte) (int, error) }
	stdout  interface{ Read([]byte) (int, error) }
}

func (s *sshShell) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *sshShell) Write(p []byte) (int, error) { return s.stdin.Write(p) }
func (s *sshShell) Resize(cols, rows int) error { return s.session.WindowChange(rows, cols) }
func (s *sshShell) Close() error                { return s.session.Close() }

// TestResult is the outcome of TestDirect.
type TestResult struct {
	OK      bool
	Message string
}

// TestDirect builds a fresh, throwaway client to validate connectivity for
// hostCfg without ever touching the pooled connection for that host id.
func (m *Manager) TestDirect(ctx context.Context, hostCfg types.HostConfig) TestResult {
	timeout := directTimeout
	if hostCfg.JumpHost != nil {
		timeout = jumpTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, jumpClient, err := dial(dialCtx, hostCfg)
	if err != nil {
		return TestResult{OK: false, Message: err.Error()}
	}
	client.Close()
	if jumpClient != nil {
		jumpClient.Close()
	}
	return TestResult{OK: true}
}

// Disconnect tears down hostID's live client, if any, and cancels any
// pending reconnect timer, driving the record to ConnDisconnected through
// eventCloseReceived regardless of which state it was in.
func (m *Manager) Disconnect(hostID string) {
	m.recordsMu.Lock()
	rec, ok := m.records[hostID]
	m.recordsMu.Unlock()
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, effects := transition(rec.state, rec.attempts, eventCloseReceived)
	rec.state = next
	m.applyEffects(rec, effects)

	if rec.client != nil {
		rec.client.Close()
		rec.client = nil
	}
	if rec.jumpClient != nil {
		rec.jumpClient.Close()
		rec.jumpClient = nil
	}
}

// DisconnectAll tears down every live client; called last during graceful
// shutdown, after the Bridge registry has closed every bridge.
func (m *Manager) DisconnectAll() {
	m.recordsMu.Lock()
	m.shuttingDown = true
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.recordsMu.Unlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}

// State returns the current connection state for hostID, for the
// connection-change notifications the control surface exposes.
func (m *Manager) State(hostID string) types.ConnState {
	m.recordsMu.Lock()
	rec, ok := m.records[hostID]
	m.recordsMu.Unlock()
	if !ok {
		return types.ConnDisconnected
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state
}

// dial assembles effective auth in priority order (password, key, agent)
// and performs the (possibly jump-tunneled) handshake. When the auth model
// requires native-ssh fallback, Exec/OpenShell route the host to the native
// path (nativessh.go) instead: dial only covers the pure-library path.
func dial(ctx context.Context, host types.HostConfig) (client *ssh.Client, jumpClient *ssh.Client, err error) {
	authMethods, resolveErr := assembleAuth(host)
	if resolveErr != nil {
		return nil, nil, resolveErr
	}
	if len(authMethods) == 0 {
		return nil, nil, fmt.Errorf("%w: no auth method configured for host %s", muxerrors.ErrAuthFailed, host.ID)
	}

	clientCfg := &ssh.ClientConfig{
		User:            host.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         directTimeout,
	}

	addr := net.JoinHostPort(host.Hostname, strconv.Itoa(host.Port))

	if host.JumpHost == nil {
		c, dialErr := dialWithContext(ctx, "tcp", addr, clientCfg)
		if dialErr != nil {
			return nil, nil, fmt.Errorf("%w: %v", muxerrors.ErrNetworkError, dialErr)
		}
		return c, nil, nil
	}

	jumpAuth, jumpErr := assembleAuth(*host.JumpHost)
	if jumpErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", muxerrors.ErrJumpHostFailed, jumpErr)
	}
	jumpCfg := &ssh.ClientConfig{
		User:            host.JumpHost.Username,
		Auth:            jumpAuth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         directTimeout,
	}
	jumpAddr := net.JoinHostPort(host.JumpHost.Hostname, strconv.Itoa(host.JumpHost.Port))
	jc, dialErr := dialWithContext(ctx, "tcp", jumpAddr, jumpCfg)
	if dialErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", muxerrors.ErrJumpHostFailed, dialErr)
	}

	conn, chanErr := jc.Dial("tcp", addr)
	if chanErr != nil {
		jc.Close()
		return nil, nil, fmt.Errorf("%w: direct-tcpip channel: %v", muxerrors.ErrJumpHostFailed, chanErr)
	}

	ncc, chans, reqs, handshakeErr := ssh.NewClientConn(conn, addr, clientCfg)
	if handshakeErr != nil {
		conn.Close()
		jc.Close()
		return nil, nil, fmt.Errorf("%w: %v", muxerrors.ErrAuthFailed, handshakeErr)
	}
	return ssh.NewClient(ncc, chans, reqs), jc, nil
}

func dialWithContext(ctx context.Context, network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(ncc, chans, reqs), nil
}

// assembleAuth computes effective auth methods in the documented priority
// order: password, then private key, then agent — every one present is
// included, not just the first.
func assembleAuth(host types.HostConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if pw := config.ResolvePassword(host.Auth); pw != "" {
		methods = append(methods, ssh.Password(pw))
	}
	if host.Auth.PrivateKeyPath != "" {
		keyPath := config.ExpandHome(host.Auth.PrivateKeyPath)
		keyBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: reading private key: %v", muxerrors.ErrAuthFailed, err)
		}
		passphrase := config.ResolvePassphrase(host.Auth)
		var signer ssh.Signer
		if passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing private key: %v", muxerrors.ErrAuthFailed, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if host.Auth.UseAgent {
		if am, err := agentAuthMethod(); err == nil {
			methods = append(methods, am)
		}
	}
	return methods, nil
}

// RequiresNativeFallback reports whether hostCfg's auth chain needs the
// native-ssh-process fallback: any hop (jump or target) using password or
// passphrase-protected-key auth, which most SSH libraries cannot express
// across a nested jump handshake. Key-only jump chains use the library
// path.
func RequiresNativeFallback(host types.HostConfig) bool {
	if host.JumpHost == nil {
		return false
	}
	return hopNeedsPassword(*host.JumpHost) || hopNeedsPassword(host)
}

func hopNeedsPassword(h types.HostConfig) bool {
	if config.ResolvePassword(h.Auth) != "" {
		return true
	}
	return h.Auth.PrivateKeyPath != "" && config.ResolvePassphrase(h.Auth) != ""
}

// shellQuote joins an argv into a single command string for session.Run,
// which (unlike os/exec) always executes through the remote user's shell;
// each argument is single-quoted to prevent the remote shell from
// re-splitting or expanding it.
func shellQuote(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
