// Package api implements the HTTP Control Surface: thin Gin handlers over
// hosts, workspaces, sessions, todos, and backlog items, wired to the
// Persistence Store, the Session Discovery Engine, and the Host Connection
// Manager. Every response uses the same envelope as the rest of this
// project's handlers: {"success": true, "data": ...} on success,
// {"error": "...", "code": "..."} on failure.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"muxfleet/internal/muxerrors"
)

// response is the shape every endpoint in this package answers with.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message, code string) {
	c.JSON(status, response{Success: false, Error: message, Code: code})
}

// failFromError classifies a store/domain error by message content, the
// same way this project's handlers distinguish failure kinds without a
// dedicated sentinel for every per-field validation case.
func failFromError(c *gin.Context, err error) {
	if code := muxerrors.Code(err); code != "" {
		fail(c, muxerrors.HTTPStatus(err), err.Error(), code)
		return
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		fail(c, http.StatusNotFound, msg, "NOT_FOUND")
	case strings.Contains(msg, "already exists"):
		fail(c, http.StatusConflict, msg, "ALREADY_EXISTS")
	case strings.Contains(msg, "required"), strings.Contains(msg, "exceeds"), strings.Contains(msg, "out of range"), strings.Contains(msg, "no effective auth"):
		fail(c, http.StatusBadRequest, msg, "VALIDATION_ERROR")
	default:
		fail(c, http.StatusInternalServerError, msg, "INTERNAL_ERROR")
	}
}
