package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListWorkspaces returns every workspace, oldest first.
func (s *Server) ListWorkspaces(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Workspaces.List())
}

type createWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateWorkspace adds a new workspace.
func (s *Server) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	w, err := s.store.Workspaces.Create(req.Name, req.Description)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Hidden      *bool   `json:"hidden"`
}

// UpdateWorkspace renames, redescribes, or hides/unhides a workspace; every
// field is optional and only supplied fields are changed.
func (s *Server) UpdateWorkspace(c *gin.Context) {
	id := c.Param("id")
	var req updateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	w, err := s.store.Workspaces.Update(id, req.Name, req.Description, req.Hidden)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// DeleteWorkspace removes a workspace and null-binds every session that
// referenced it. Todos bound to the workspace are left as they are.
func (s *Server) DeleteWorkspace(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteWorkspace(id); err != nil {
		failFromError(c, err)
		return
	}
	s.discovery.Republish()
	ok(c, http.StatusOK, gin.H{"id": id})
}
