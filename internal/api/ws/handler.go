package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/console"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	pollInterval = 100 * time.Millisecond
	maxInbound   = 1 << 20
)

// Server → client message types.
const (
	TypeSnapshot = "snapshot"
	TypeConsole  = "console"
	TypeNotice   = "notice"
	TypeReload   = "reload"
	TypePong     = "pong"
	TypeError    = "error"
)

// Outbound is a message sent to the client. Only the fields of its type
// are set.
type Outbound struct {
	Type       string              `json:"type"`
	Generation uint64              `json:"generation,omitempty"`
	Records    []console.Record    `json:"records,omitempty"`
	Notices    []playground.Notice `json:"notices,omitempty"`
	Event      *console.Event      `json:"event,omitempty"`
	Notice     *playground.Notice  `json:"notice,omitempty"`
	Message    string              `json:"message,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// Inbound is a message received from the client. Console messages carry
// the data a client-side preview posted, unchanged.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Handler streams a session's console and notices over a WebSocket
type Handler struct {
	manager  *playground.Manager
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. Upgrades are accepted from
// the listed origins; "*" or an empty list accepts any.
func NewHandler(manager *playground.Manager, logger *zap.Logger, metrics *monitoring.Metrics, origins []string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")
	return &Handler{
		manager: manager,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

// HandleConnection upgrades the request and streams until either side
// closes or the session ends
func (h *Handler) HandleConnection(c *gin.Context) {
	s, err := h.manager.Lookup(id.SessionID(c.Param("id")), middleware.User(c))
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, playground.ErrForbidden) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.WSConnected()
	defer h.metrics.WSDisconnected()

	logger := h.logger.With(zap.String("session", s.ID().String()))
	logger.Debug("Stream connected")

	// Subscribe before taking the snapshot so nothing falls in between.
	events, cancelEvents := s.Console().Subscribe(256)
	defer cancelEvents()
	notices, cancelNotices := s.SubscribeNotices(32)
	defer cancelNotices()

	records := s.Logs()
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.ID] = struct{}{}
	}
	generation := s.Generation()
	if err := h.send(conn, Outbound{
		Type:       TypeSnapshot,
		Generation: generation,
		Records:    records,
		Notices:    s.Notices(),
	}); err != nil {
		return
	}

	stop := make(chan struct{})
	replies := make(chan Outbound, 8)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.read(conn, s, replies, stop, logger)
	}()
	defer func() {
		close(stop)
		conn.Close()
		<-readerDone
		logger.Debug("Stream closed")
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		var out Outbound
		select {
		case <-readerDone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == console.EventAppend && ev.Record != nil {
				if _, dup := seen[ev.Record.ID]; dup {
					continue
				}
			}
			out = Outbound{Type: TypeConsole, Event: &ev}
		case n, ok := <-notices:
			if !ok {
				return
			}
			out = Outbound{Type: TypeNotice, Notice: &n}
		case out = <-replies:
		case <-poll.C:
			g := s.Generation()
			if g == generation {
				continue
			}
			generation = g
			out = Outbound{Type: TypeReload, Generation: g}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		if err := h.send(conn, out); err != nil {
			logger.Debug("Stream write failed", zap.Error(err))
			return
		}
	}
}

// read handles inbound messages until the connection fails.
func (h *Handler) read(conn *websocket.Conn, s *playground.Session, replies chan<- Outbound, stop <-chan struct{}, logger *zap.Logger) {
	conn.SetReadLimit(maxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(out Outbound) bool {
		select {
		case replies <- out:
			return true
		case <-stop:
			return false
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.metrics.WSMessage("in")

		var msg Inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			if !reply(Outbound{Type: TypeError, Message: "malformed message"}) {
				return
			}
			continue
		}

		var out *Outbound
		switch msg.Type {
		case TypeConsole:
			if err := s.Relay(msg.Data); err != nil {
				out = &Outbound{Type: TypeError, Message: err.Error()}
			}
		case "ping":
			out = &Outbound{Type: TypePong}
		default:
			out = &Outbound{Type: TypeError, Message: "unknown message type"}
		}
		if out != nil && !reply(*out) {
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, out Outbound) error {
	out.Timestamp = time.Now().UnixMilli()
	data, err := sonic.Marshal(out)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.metrics.WSMessage("out")
	return nil
}
