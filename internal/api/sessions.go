package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"muxfleet/internal/muxadapter"
	"muxfleet/internal/muxerrors"
	"muxfleet/pkg/types"
)

// ListSessions returns the default client-facing snapshot: every managed,
// non-hidden session.
func (s *Server) ListSessions(c *gin.Context) {
	ok(c, http.StatusOK, s.discovery.Snapshot(false))
}

// ListAvailableSessions returns mux sessions on ?hostId= that are not
// currently managed, plus any hidden managed sessions on that host, for
// the attach dialog.
func (s *Server) ListAvailableSessions(c *gin.Context) {
	hostID := c.Query("hostId")
	if hostID == "" {
		fail(c, http.StatusBadRequest, "hostId is required", "VALIDATION_ERROR")
		return
	}
	ok(c, http.StatusOK, s.discovery.ListAvailableFor(hostID))
}

type createSessionRequest struct {
	HostID           string  `json:"hostId"`
	SessionName      string  `json:"sessionName"`
	WorkingDirectory string  `json:"workingDirectory"`
	Command          string  `json:"command"`
	WorkspaceID      *string `json:"workspaceId"`
}

// CreateSession validates the working directory, creates a new mux session
// on the target host, and binds the newly-discovered session id, following
// the documented sequence: create, wait for the multiplexer to register
// the session, refresh discovery, locate it by name, bind it.
func (s *Server) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if req.SessionName == "" {
		fail(c, http.StatusBadRequest, "sessionName is required", "VALIDATION_ERROR")
		return
	}

	host, found := s.resolveHost(req.HostID)
	if !found {
		fail(c, muxerrors.HTTPStatus(muxerrors.ErrHostUnknown), "unknown host: "+req.HostID, muxerrors.Code(muxerrors.ErrHostUnknown))
		return
	}

	ctx := c.Request.Context()
	if !workingDirectoryExists(ctx, s.conns, host, req.WorkingDirectory) {
		fail(c, http.StatusBadRequest, "working directory does not exist: "+req.WorkingDirectory, "VALIDATION_ERROR")
		return
	}

	createArgs := muxadapter.BuildCreateSessionArgs(req.SessionName, req.WorkingDirectory, req.Command)
	if _, err := execMux(ctx, s.conns, host, createArgs); err != nil {
		failFromError(c, err)
		return
	}

	select {
	case <-time.After(sessionStartupWait(host)):
	case <-ctx.Done():
		fail(c, http.StatusInternalServerError, ctx.Err().Error(), "INTERNAL_ERROR")
		return
	}

	s.discovery.RunCycle(ctx)

	found2 := findByHostAndName(s.discovery.ListAvailableFor(host.ID), host.ID, req.SessionName)
	if found2 == nil {
		fail(c, http.StatusInternalServerError, "session was created but could not be located after refresh", "INTERNAL_ERROR")
		return
	}

	if err := s.discovery.AddManaged(found2.ID, req.WorkspaceID); err != nil {
		failFromError(c, err)
		return
	}

	created := *found2
	created.WorkspaceID = req.WorkspaceID
	ok(c, http.StatusCreated, created)
}

type attachSessionRequest struct {
	HostID      string `json:"hostId"`
	SessionName string `json:"sessionName"`
}

// AttachSession verifies the mux session exists on the host, then either
// unhides it (if already managed) or adds it fresh to the binding map —
// never both, since re-adding an already-managed session would clobber its
// existing workspace assignment.
func (s *Server) AttachSession(c *gin.Context) {
	var req attachSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	host, foundHost := s.resolveHost(req.HostID)
	if !foundHost {
		fail(c, muxerrors.HTTPStatus(muxerrors.ErrHostUnknown), "unknown host: "+req.HostID, muxerrors.Code(muxerrors.ErrHostUnknown))
		return
	}

	ctx := c.Request.Context()
	hasArgs := muxadapter.BuildHasSessionArgs(req.SessionName)
	if _, err := execMux(ctx, s.conns, host, hasArgs); err != nil {
		fail(c, muxerrors.HTTPStatus(muxerrors.ErrSessionNotFound), "mux session not found: "+req.SessionName, muxerrors.Code(muxerrors.ErrSessionNotFound))
		return
	}

	s.discovery.RunCycle(ctx)

	sess := findByHostAndName(s.discovery.ListAvailableFor(host.ID), host.ID, req.SessionName)
	if sess == nil {
		// Already managed and not hidden: nothing on the "available" side to
		// find, but the session may already be visible in the default list.
		sess = findByHostAndName(s.discovery.Snapshot(true), host.ID, req.SessionName)
	}
	if sess == nil {
		fail(c, http.StatusNotFound, "session not found after refresh: "+req.SessionName, "SESSION_NOT_FOUND")
		return
	}

	var err error
	if s.discovery.IsManaged(sess.ID) {
		err = s.discovery.Unhide(sess.ID)
	} else {
		err = s.discovery.AddManaged(sess.ID, nil)
	}
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, *sess)
}

// DeleteSession kills the underlying mux session and removes it from the
// binding map, closing any live bridge so subscribers see the session end.
func (s *Server) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	sess := findByID(s.discovery.Snapshot(true), id)
	if sess == nil {
		fail(c, http.StatusNotFound, "session not found: "+id, "SESSION_NOT_FOUND")
		return
	}
	host, foundHost := s.resolveHost(sess.HostID)
	if !foundHost {
		fail(c, muxerrors.HTTPStatus(muxerrors.ErrHostUnknown), "unknown host: "+sess.HostID, muxerrors.Code(muxerrors.ErrHostUnknown))
		return
	}

	ctx := c.Request.Context()
	killArgs := muxadapter.BuildKillSessionArgs(sess.Mux.SessionName)
	if _, err := execMux(ctx, s.conns, host, killArgs); err != nil {
		failFromError(c, err)
		return
	}

	s.bridges.Close(id)
	if err := s.discovery.RemoveManaged(id); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// HideSession removes a managed session from the default listing without
// un-managing it.
func (s *Server) HideSession(c *gin.Context) {
	id := c.Param("id")
	if !s.discovery.IsManaged(id) {
		fail(c, http.StatusNotFound, "session not found: "+id, "SESSION_NOT_FOUND")
		return
	}
	if err := s.discovery.Hide(id); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func findByHostAndName(sessions []types.Session, hostID, name string) *types.Session {
	for i := range sessions {
		if sessions[i].HostID == hostID && sessions[i].Mux.SessionName == name {
			return &sessions[i]
		}
	}
	return nil
}

func findByID(sessions []types.Session, id string) *types.Session {
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i]
		}
	}
	return nil
}
