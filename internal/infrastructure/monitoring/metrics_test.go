package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConsoleRecord("log")
		m.Dropped()
		m.FrameReloaded()
		m.SessionOpened()
		m.StorageOp("kv", "save", nil)
		m.RecordHTTPRequest("GET", "/", "200", 0, 0)
	})
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ConsoleRecord("log")
	m.ConsoleRecord("log")
	m.ConsoleRecord("error")
	m.Dropped()
	m.StorageOp("kv", "save", errors.New("disk full"))
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConsoleRecords.WithLabelValues("log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsoleRecords.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("kv", "save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsTotal))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, p := range []string{"/sessions/a", "/sessions/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/sessions/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
