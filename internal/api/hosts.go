package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"muxfleet/pkg/types"
)

// ListHosts returns the reserved local pseudo-host followed by every
// configured remote host.
func (s *Server) ListHosts(c *gin.Context) {
	out := append([]types.HostConfig{localHost}, s.hosts.List()...)
	ok(c, http.StatusOK, out)
}

type hostRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Hostname string          `json:"hostname"`
	Port     int             `json:"port"`
	Username string          `json:"username"`
	Auth     types.HostAuth  `json:"auth"`
	JumpHost *types.HostConfig `json:"jump_host"`
}

func (r hostRequest) toConfig() types.HostConfig {
	return types.HostConfig{
		ID:       r.ID,
		Name:     r.Name,
		Hostname: r.Hostname,
		Port:     r.Port,
		Username: r.Username,
		Auth:     r.Auth,
		JumpHost: r.JumpHost,
	}
}

// CreateHost adds a new remote host.
func (s *Server) CreateHost(c *gin.Context) {
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h := req.toConfig()
	if err := s.hosts.Add(h); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusCreated, h)
}

// UpdateHost replaces a host's mutable fields; the id in the path is
// authoritative over any id in the request body.
func (s *Server) UpdateHost(c *gin.Context) {
	id := c.Param("id")
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h := req.toConfig()
	if err := s.hosts.Update(id, h); err != nil {
		failFromError(c, err)
		return
	}
	h.ID = id
	ok(c, http.StatusOK, h)
}

// DeleteHost removes a host record. Sessions previously discovered on it
// are left alone — the next discovery cycle simply stops enumerating it and
// any still-managed sessions are carried forward as terminated.
func (s *Server) DeleteHost(c *gin.Context) {
	id := c.Param("id")
	if id == "local" {
		fail(c, http.StatusBadRequest, "the local host cannot be removed", "VALIDATION_ERROR")
		return
	}
	s.conns.Disconnect(id)
	if err := s.hosts.Remove(id); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// TestHost validates connectivity for a host configuration without
// persisting it and without touching the pooled connection for any
// already-configured host of the same id.
func (s *Server) TestHost(c *gin.Context) {
	var req hostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	h := req.toConfig()
	if h.Port == 0 {
		h.Port = 22
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	result := s.conns.TestDirect(ctx, h)
	ok(c, http.StatusOK, result)
}
