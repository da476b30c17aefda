package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"muxfleet/internal/bridge"
	"muxfleet/internal/config"
	"muxfleet/internal/discovery"
	"muxfleet/internal/hostconn"
	"muxfleet/internal/store"
	"muxfleet/pkg/types"
)

// connExecutor is the narrow slice of hostconn.Manager the Control Surface
// depends on, letting tests substitute a fake rather than dial real SSH
// clients — the same narrowing discovery.hostExecutor applies one layer
// down.
type connExecutor interface {
	Exec(ctx context.Context, hostID string, argv []string) (string, error)
	Disconnect(hostID string)
	TestDirect(ctx context.Context, hostCfg types.HostConfig) hostconn.TestResult
}

// Server holds every collaborator the Control Surface's handlers need. It
// owns none of them — all are constructed and shut down by internal/server.
type Server struct {
	store     *store.Store
	hosts     *config.HostStore
	conns     connExecutor
	discovery *discovery.Engine
	bridges   *bridge.Registry
}

// NewServer wires a Server over the already-constructed core components.
func NewServer(st *store.Store, hosts *config.HostStore, conns *hostconn.Manager, disc *discovery.Engine, bridges *bridge.Registry) *Server {
	return &Server{store: st, hosts: hosts, conns: conns, discovery: disc, bridges: bridges}
}

// RegisterRoutes mounts every endpoint documented for the Control Surface
// under router, typically the root engine or an "/api" group.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	hosts := r.Group("/hosts")
	{
		hosts.GET("", s.ListHosts)
		hosts.POST("", s.CreateHost)
		hosts.PUT("/:id", s.UpdateHost)
		hosts.DELETE("/:id", s.DeleteHost)
		hosts.POST("/test", s.TestHost)
	}

	workspaces := r.Group("/workspaces")
	{
		workspaces.GET("", s.ListWorkspaces)
		workspaces.POST("", s.CreateWorkspace)
		workspaces.PUT("/:id", s.UpdateWorkspace)
		workspaces.DELETE("/:id", s.DeleteWorkspace)
	}

	sessions := r.Group("/sessions")
	{
		sessions.GET("", s.ListSessions)
		sessions.GET("/available", s.ListAvailableSessions)
		sessions.POST("", s.CreateSession)
		sessions.POST("/attach", s.AttachSession)
		sessions.DELETE("/:id", s.DeleteSession)
		sessions.POST("/:id/hide", s.HideSession)
	}

	todos := r.Group("/todos")
	{
		todos.GET("", s.ListTodos)
		todos.POST("", s.CreateTodo)
		todos.PUT("/:id", s.UpdateTodo)
		todos.DELETE("/:id", s.DeleteTodo)
	}

	backlog := r.Group("/backlog")
	{
		backlog.GET("", s.ListBacklog)
		backlog.POST("", s.CreateBacklogItem)
		backlog.PUT("/:id", s.UpdateBacklogItem)
		backlog.DELETE("/:id", s.DeleteBacklogItem)
	}
}
