package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxRelaySize bounds one relayed wire message.
const maxRelaySize = 1 << 20

// DispatchRequest fires a user event in the headless preview.
type DispatchRequest struct {
	Selector string `json:"selector" binding:"required"`
	Type     string `json:"type"`
}

// Logs returns the console records. With ?settle=true the call first
// waits until the running preview has finished loading and its queued
// output has been delivered.
func (h *Handlers) Logs(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if c.Query("settle") == "true" {
		ctx, cancel := h.frameContext(c)
		defer cancel()
		if err := s.Settle(ctx); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": s.Generation(),
		"records":    s.Logs(),
	})
}

// ClearConsole empties the console
func (h *Handlers) ClearConsole(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.ClearConsole()
	c.Status(http.StatusNoContent)
}

// Relay accepts one message posted by a client-side preview. The body is
// the message data as the iframe posted it.
func (h *Handlers) Relay(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRelaySize)
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message is too large"})
		return
	}
	if err := s.Relay(data); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Dispatch fires an event at the first element matching a selector in the
// headless preview
func (h *Handlers) Dispatch(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selector is required"})
		return
	}
	if req.Type == "" {
		req.Type = "click"
	}

	ctx, cancel := h.frameContext(c)
	defer cancel()
	if err := s.Dispatch(ctx, req.Selector, req.Type); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DOM serializes the headless preview's live document
func (h *Handlers) DOM(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx, cancel := h.frameContext(c)
	defer cancel()
	html, err := s.Snapshot(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": s.Generation(),
		"html":       html,
	})
}
