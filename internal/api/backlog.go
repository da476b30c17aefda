package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListBacklog returns every backlog item, oldest first.
func (s *Server) ListBacklog(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Backlog.List())
}

type createBacklogRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// CreateBacklogItem adds a new planning entry, defaulting to status "open".
func (s *Server) CreateBacklogItem(c *gin.Context) {
	var req createBacklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	item, err := s.store.Backlog.Create(req.Type, req.Title, req.Description, req.Priority)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

type updateBacklogRequest struct {
	Status string `json:"status"`
}

// UpdateBacklogItem updates a backlog item's status.
func (s *Server) UpdateBacklogItem(c *gin.Context) {
	id := c.Param("id")
	var req updateBacklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := s.store.Backlog.SetStatus(id, req.Status); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// DeleteBacklogItem removes a backlog item.
func (s *Server) DeleteBacklogItem(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Backlog.Delete(id); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}
