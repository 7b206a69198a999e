package http

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed ui/index.html
var indexPage []byte

// Index serves the host page. It drives the API and, for browser-mode
// sessions, runs the preview in a sandboxed iframe and relays its console
// messages over the session stream.
func (h *Handlers) Index(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}
