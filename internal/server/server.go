// Package server composes the Host Connection Manager, Session Discovery
// Engine, Terminal Bridge Registry, Client Fan-out Hub, and HTTP Control
// Surface into one running process, and owns the shutdown ordering between
// them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"muxfleet/internal/api"
	"muxfleet/internal/bridge"
	"muxfleet/internal/config"
	"muxfleet/internal/discovery"
	"muxfleet/internal/hostconn"
	"muxfleet/internal/hub"
	"muxfleet/internal/httpmw"
	"muxfleet/internal/jwtauth"
	"muxfleet/internal/logging"
	"muxfleet/internal/metrics"
	"muxfleet/internal/muxadapter"
	"muxfleet/internal/store"
	"muxfleet/pkg/types"
)

const shutdownGrace = 15 * time.Second

// Server is the top-level process: every long-lived collaborator plus the
// HTTP listener that fronts them.
type Server struct {
	cfg config.Config

	hostStore *config.HostStore
	conns     *hostconn.Manager
	store     *store.Store
	discovery *discovery.Engine
	bridges   *bridge.Registry
	hub       *hub.Hub
	api       *api.Server

	collector  *metrics.PeriodicCollector
	httpServer *http.Server
}

// Options bundles the on-disk locations New needs in addition to the
// already-validated Config.
type Options struct {
	Config    config.Config
	DataDir   string // workspaces.json, session-workspaces.json, hidden-sessions.json, todos.json, backlog.json
	HostsPath string // hosts.json, the mutable remote-host list
}

// New constructs every collaborator and wires them together. It does not
// start the discovery loop or the HTTP listener; call Start for that.
func New(opts Options) (*Server, error) {
	hostStore, err := config.NewHostStore(opts.HostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading host store: %w", err)
	}

	st, err := store.New(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading persistence layer: %w", err)
	}

	conns := hostconn.NewManager(hostStore.List())

	pollInterval := time.Duration(opts.Config.Discovery.PollMS) * time.Millisecond
	disc := discovery.NewEngine(conns, st.Bindings, hostStore.List(), opts.Config.Discovery.AssistantCLIName, pollInterval)

	bridges := bridge.NewRegistry()

	srv := &Server{
		cfg:       opts.Config,
		hostStore: hostStore,
		conns:     conns,
		store:     st,
		discovery: disc,
		bridges:   bridges,
	}

	heartbeat := time.Duration(opts.Config.WebSocket.HeartbeatMS) * time.Millisecond
	srv.hub = hub.New(disc, bridges, srv.shellOpenerFor, heartbeat)
	srv.api = api.NewServer(st, hostStore, conns, disc, bridges)

	srv.collector = metrics.NewPeriodicCollector(srv, 10*time.Second)

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Config.Server.Host, opts.Config.Server.Port),
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.PrometheusMiddleware())
	r.Use(httpmw.SecurityHeaders())
	r.Use(httpmw.RateLimit(1000, 3600))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.PrometheusHandlerHTTP()))
	r.GET(s.cfg.WebSocket.Path, func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	if s.cfg.Auth.Enabled {
		r.POST("/api/auth/login", s.login)
	}
	apiGroup.Use(api.AuthMiddleware(s.cfg.Auth.Enabled, s.verifyToken))
	s.api.RegisterRoutes(apiGroup)
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login is the one login endpoint the core's auth boundary needs a
// concrete implementation of: check the configured operator credentials
// and issue a token, entirely outside the HTTP Control Surface the core
// owns (internal/api never sees this route or issues tokens itself).
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username and password are required"})
		return
	}
	if req.Username != s.cfg.Auth.Username {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}
	ok, err := jwtauth.VerifyPassword(req.Password, s.cfg.Auth.PasswordHash)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
		return
	}
	ttl := time.Duration(s.cfg.Auth.TokenExpiryS) * time.Second
	token, err := jwtauth.IssueToken(req.Username, s.cfg.Auth.Secret, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": token, "expires_in": s.cfg.Auth.TokenExpiryS}})
}

// verifyToken is the api.TokenVerifier this process plugs into the Control
// Surface's auth middleware: it is the only place outside internal/jwtauth
// that ever calls Verify, keeping every JWT-specific detail out of
// internal/api entirely.
func (s *Server) verifyToken(token string) (string, error) {
	claims, err := jwtauth.Verify(token, s.cfg.Auth.Secret)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// shellOpenerFor resolves how a session's shell gets opened: a local PTY
// running the attach command directly, or a remote shell through the
// Connection Manager with the attach command issued as its first line.
func (s *Server) shellOpenerFor(session types.Session) (bridge.Opener, error) {
	attachArgs := muxadapter.BuildAttachSessionArgs(session.Mux.SessionName, session.Mux.PaneID)
	argv := append([]string{muxadapter.MuxBinary}, attachArgs...)
	if session.HostID == "local" {
		return bridge.OpenLocalAttach(argv), nil
	}
	return bridge.OpenRemoteAttach(s.conns, session.HostID, argv), nil
}

// Start runs the discovery loop, the periodic metrics collector, and the
// HTTP listener. It blocks until ctx is canceled, returning the listener's
// terminal error (nil on a clean shutdown via Shutdown).
func (s *Server) Start(ctx context.Context) error {
	go s.discovery.Start(ctx)
	s.collector.Start(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	logging.S().Infow("server listening", "addr", s.httpServer.Addr, "ws_path", s.cfg.WebSocket.Path)

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	}
}

// Shutdown drains the HTTP listener, closes every live terminal bridge, and
// disconnects every pooled SSH connection, in that order: no new session
// traffic is accepted, in-flight streams are torn down, then the
// connections backing them are released.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("http server shutdown: %w", err)
	}
	s.discovery.Stop()
	s.collector.Stop()
	s.bridges.CloseAll()
	s.conns.DisconnectAll()
	return firstErr
}

// BridgeCount implements metrics.Gaugeable.
func (s *Server) BridgeCount() int { return s.bridges.Count() }

// WebSocketClientCount implements metrics.Gaugeable.
func (s *Server) WebSocketClientCount() int { return s.hub.ClientCount() }

// DiscoveredSessionCounts implements metrics.Gaugeable.
func (s *Server) DiscoveredSessionCounts() map[string]int { return s.discovery.DiscoveredCountsByHost() }

// ManagedSessionCount implements metrics.Gaugeable.
func (s *Server) ManagedSessionCount() int { return s.discovery.ManagedCount() }
