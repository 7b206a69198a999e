package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// SessionView is the JSON form of a session.
type SessionView struct {
	ID         id.SessionID     `json:"id"`
	Mode       playground.Mode  `json:"mode"`
	Scope      string           `json:"scope"`
	SignedIn   bool             `json:"signed_in"`
	CreatedAt  time.Time        `json:"created_at"`
	Generation uint64           `json:"generation"`
	Active     id.FileID        `json:"active"`
	Files      []workspace.File `json:"files"`
}

func viewSession(s *playground.Session) SessionView {
	return SessionView{
		ID:         s.ID(),
		Mode:       s.Mode(),
		Scope:      s.Scope(),
		SignedIn:   s.User() != "",
		CreatedAt:  s.Created(),
		Generation: s.Generation(),
		Active:     s.Active().ID,
		Files:      s.Files(),
	}
}

// CreateSessionRequest is the body of POST /sessions. Every field is
// optional.
type CreateSessionRequest struct {
	Mode string `json:"mode"`
}

// CreateSession opens a session for the caller
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	var mode playground.Mode
	if req.Mode != "" {
		m, err := playground.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode = m
	}

	s, err := h.manager.Create(c.Request.Context(), playground.CreateOptions{
		User: middleware.User(c),
		Mode: mode,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewSession(s))
}

// GetSession returns the session and its files
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewSession(s))
}

// DeleteSession closes the session and destroys its preview
func (h *Handlers) DeleteSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.manager.Close(s.ID())
	c.Status(http.StatusNoContent)
}

// Reset restores the starter project and clears the console
func (h *Handlers) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Reset(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(s))
}

// Save persists the workspace to the autosave store immediately
func (h *Handlers) Save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Save(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export downloads the standalone project document
func (h *Handlers) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", preview.ExportFilename))
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.Export())
}

// Preview serves the synthesized document. The sandbox policy gives the
// document an opaque origin with scripts enabled and nothing else.
func (h *Handlers) Preview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	doc := s.Document()
	c.Header("Content-Security-Policy", "sandbox allow-scripts")
	c.Header("Cache-Control", "no-store")
	c.Header("X-Preview-Generation", strconv.FormatUint(s.Generation(), 10))
	c.Header("ETag", strconv.Quote(doc.Fingerprint))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.HTML))
}

// Reload re-runs the current document without changing it
func (h *Handlers) Reload(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Reload(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation": s.Generation()})
}

// Notices returns the session's recent notifications
func (h *Handlers) Notices(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": s.Notices()})
}
