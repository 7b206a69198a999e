package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// SaveProjectRequest stores a session's files as a named project.
type SaveProjectRequest struct {
	SessionID id.SessionID `json:"session_id" binding:"required"`
	Name      string       `json:"name"`
}

// LoadProjectRequest replaces a session's workspace with a saved project.
type LoadProjectRequest struct {
	SessionID id.SessionID `json:"session_id" binding:"required"`
}

// ListProjects lists the caller's saved projects, newest first. The
// session named by ?session_id receives the failure notice, if any.
func (h *Handlers) ListProjects(c *gin.Context) {
	s, ok := h.sessionByID(c, id.SessionID(c.Query("session_id")))
	if !ok {
		return
	}
	list, err := s.ListProjects(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": list})
}

// SaveProject saves the session's current files
func (h *Handlers) SaveProject(c *gin.Context) {
	var req SaveProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	s, ok := h.sessionByID(c, req.SessionID)
	if !ok {
		return
	}
	p, err := s.SaveProject(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// LoadProject opens a saved project in the session
func (h *Handlers) LoadProject(c *gin.Context) {
	var req LoadProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	s, ok := h.sessionByID(c, req.SessionID)
	if !ok {
		return
	}
	if err := s.LoadProject(c.Request.Context(), id.ProjectID(c.Param("pid"))); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(s))
}

// DeleteProject removes a saved project
func (h *Handlers) DeleteProject(c *gin.Context) {
	s, ok := h.sessionByID(c, id.SessionID(c.Query("session_id")))
	if !ok {
		return
	}
	if err := s.DeleteProject(c.Request.Context(), id.ProjectID(c.Param("pid"))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// NewProject starts the session over from the starter project
func (h *Handlers) NewProject(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.NewProject(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(s))
}
