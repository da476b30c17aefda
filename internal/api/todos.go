package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListTodos returns the todos scoped to ?workspace_id=, or the unbound
// (global) todo list when the query parameter is omitted.
func (s *Server) ListTodos(c *gin.Context) {
	workspaceID := workspaceIDQuery(c)
	ok(c, http.StatusOK, s.store.Todos.ListByWorkspace(workspaceID))
}

type createTodoRequest struct {
	WorkspaceID *string `json:"workspace_id"`
	Text        string  `json:"text"`
}

// CreateTodo adds a new checklist item, optionally scoped to a workspace.
func (s *Server) CreateTodo(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	td, err := s.store.Todos.Create(req.WorkspaceID, req.Text)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusCreated, td)
}

type updateTodoRequest struct {
	Completed bool `json:"completed"`
}

// UpdateTodo toggles a todo's completed flag.
func (s *Server) UpdateTodo(c *gin.Context) {
	id := c.Param("id")
	var req updateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := s.store.Todos.SetCompleted(id, req.Completed); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id, "completed": req.Completed})
}

// DeleteTodo removes a todo.
func (s *Server) DeleteTodo(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.Todos.Delete(id); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// workspaceIDQuery reads the optional workspace_id filter; omitted means
// the unbound (global) todo list.
func workspaceIDQuery(c *gin.Context) *string {
	v, present := c.GetQuery("workspace_id")
	if !present || v == "" {
		return nil
	}
	return &v
}
