package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/domain/secrets"
	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/sandbox"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
	"github.com/GriffinCanCode/livecode/internal/storage/projects"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *playground.Manager
	logger  *zap.Logger
	// timeout bounds waits on a headless preview.
	timeout time.Duration
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(manager *playground.Manager, logger *zap.Logger, timeout time.Duration) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handlers{manager: manager, logger: logger, timeout: timeout, started: time.Now()}
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.manager.Len(),
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	})
}

// session resolves the :id parameter to a session owned by the caller. On
// failure the response is written and ok is false.
func (h *Handlers) session(c *gin.Context) (*playground.Session, bool) {
	return h.sessionByID(c, id.SessionID(c.Param("id")))
}

func (h *Handlers) sessionByID(c *gin.Context, sessionID id.SessionID) (*playground.Session, bool) {
	if !id.HasPrefix(sessionID.String(), id.SessionPrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	s, err := h.manager.Lookup(sessionID, middleware.User(c))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}

// frameContext bounds a wait on the headless preview.
func (h *Handlers) frameContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// fail writes the JSON error response for err.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.String("trace_id", string(tracing.GetTraceID(c.Request.Context()))),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, secrets.ErrNotFound),
		errors.Is(err, projects.ErrNotFound),
		errors.Is(err, playground.ErrSessionNotFound),
		errors.Is(err, sandbox.ErrNoElement):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrEmptyName),
		errors.Is(err, workspace.ErrUnknownKind),
		errors.Is(err, workspace.ErrBinaryContent),
		errors.Is(err, projects.ErrNameRequired),
		errors.Is(err, secrets.ErrIncomplete),
		errors.Is(err, sandbox.ErrInvalidSelector):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrLastOfKind),
		errors.Is(err, secrets.ErrDuplicateKey),
		errors.Is(err, playground.ErrWrongMode),
		errors.Is(err, playground.ErrNoFrame),
		errors.Is(err, sandbox.ErrDestroyed):
		return http.StatusConflict
	case errors.Is(err, projects.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, playground.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, playground.ErrClosed):
		return http.StatusGone
	case errors.Is(err, projects.ErrUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
