package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// AddSecretRequest stores a key/value pair in the session.
type AddSecretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ListSecrets lists the session's secrets with hidden values masked
func (h *Handlers) ListSecrets(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"secrets": s.Secrets()})
}

func (h *Handlers) AddSecret(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req AddSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sec, err := s.AddSecret(req.Key, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sec)
}

func (h *Handlers) DeleteSecret(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.DeleteSecret(id.SecretID(c.Param("sid"))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevealSecret toggles whether a secret is listed in clear
func (h *Handlers) RevealSecret(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	revealed, err := s.RevealSecret(id.SecretID(c.Param("sid")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revealed": revealed})
}
