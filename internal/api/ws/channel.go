package ws

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
)

// Channel accepts the supervised agent's bridge connection.
type Channel struct {
	registrar *agent.Registrar
	logger    *zap.Logger
}

// NewChannel creates the bridge attach handler.
func NewChannel(registrar *agent.Registrar, logger *zap.Logger) *Channel {
	return &Channel{
		registrar: registrar,
		logger:    logger,
	}
}

// Handle upgrades the request and hands the connection to the
// registrar. The agent reports its release version as a query
// parameter so controller changes can be detected.
func (ch *Channel) Handle(c *gin.Context) {
	version := c.Query("version")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ch.logger.Warn("agent channel upgrade failed", zap.Error(err))
		return
	}
	ch.registrar.AttachConn(conn, version)
}
