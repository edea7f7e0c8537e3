// Package ws carries the two WebSocket surfaces: the consumer state
// stream and the supervised agent's bridge channel.
package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/lifecycle"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true // consumers connect from arbitrary local origins
	},
}

// frame is one message pushed to a stream consumer.
type frame struct {
	Type  string           `json:"type"`
	State *lifecycle.State `json:"state,omitempty"`
}

// Stream pushes lifecycle snapshots to WebSocket consumers.
type Stream struct {
	coord   *lifecycle.Coordinator
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewStream creates a stream handler over the coordinator.
func NewStream(coord *lifecycle.Coordinator, logger *zap.Logger, metrics *monitoring.Metrics) *Stream {
	return &Stream{
		coord:   coord,
		logger:  logger,
		metrics: metrics,
	}
}

// Handle upgrades the request and forwards published updates until the
// consumer disconnects. Every update carries the complete snapshot; a
// controller change additionally produces a reload frame.
func (s *Stream) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.coord.Subscribe()
	defer sub.Cancel()

	if s.metrics != nil {
		s.metrics.IncStreamClients()
		defer s.metrics.DecStreamClients()
	}

	// Reads only detect the consumer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The request context descends from the server's base context, so
	// daemon shutdown releases hijacked connections too.
	ctx := c.Request.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case u, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := s.push(conn, u); err != nil {
				s.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Stream) push(conn *websocket.Conn, u lifecycle.Update) error {
	state := u.State
	if err := s.send(conn, frame{Type: "state", State: &state}); err != nil {
		return err
	}
	if u.Reload {
		return s.send(conn, frame{Type: "reload"})
	}
	return nil
}

func (s *Stream) send(conn *websocket.Conn, f frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
