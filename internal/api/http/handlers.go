package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/lifecycle"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/utils"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/storage"
)

// AgentInfo is the registrar view reported in health payloads.
type AgentInfo interface {
	State() agent.State
	Version() string
	Attached() bool
}

// Handlers serves the consumer REST surface over the coordinator.
type Handlers struct {
	coord     *lifecycle.Coordinator
	agent     AgentInfo
	store     *storage.Manager
	stats     *StatsAggregator
	validator *utils.PayloadValidator
	logger    *zap.Logger
	version   string
}

// NewHandlers creates the handler set.
func NewHandlers(
	coord *lifecycle.Coordinator,
	agentInfo AgentInfo,
	store *storage.Manager,
	stats *StatsAggregator,
	logger *zap.Logger,
	version string,
) *Handlers {
	return &Handlers{
		coord:     coord,
		agent:     agentInfo,
		store:     store,
		stats:     stats,
		validator: utils.DefaultPayloadValidator(),
		logger:    logger,
		version:   version,
	}
}

// Root returns the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "workspaced",
		"version": h.version,
	})
}

// Health reports per-component status plus aggregated statistics.
func (h *Handlers) Health(c *gin.Context) {
	snap := h.coord.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"agent": gin.H{
			"state":    h.agent.State().String(),
			"version":  h.agent.Version(),
			"attached": h.agent.Attached(),
		},
		"connectivity": gin.H{
			"online": snap.IsOnline,
		},
		"install": gin.H{
			"installed":  snap.IsInstalled,
			"standalone": snap.IsStandalone,
		},
		"storage": gin.H{
			"supported": h.store.Supported(),
		},
		"stats": h.stats.Report(),
	})
}

// Lifecycle returns the current lifecycle snapshot.
func (h *Handlers) Lifecycle(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Snapshot())
}

// Install runs the deferred install prompt.
func (h *Handlers) Install(c *gin.Context) {
	outcome, ok := h.coord.Install()
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"reason":  "no pending install prompt",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"outcome": string(outcome),
	})
}

// ApplyUpdate promotes a staged release and tells consumers to reload.
func (h *Handlers) ApplyUpdate(c *gin.Context) {
	if !h.coord.ApplyUpdate() {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"reason":  "no update pending",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CacheWorkflows forwards a workflow payload to the agent cache.
func (h *Handlers) CacheWorkflows(c *gin.Context) {
	h.cache(c, h.coord.CacheWorkflow)
}

// CacheTasks forwards a task payload to the agent cache.
func (h *Handlers) CacheTasks(c *gin.Context) {
	h.cache(c, h.coord.CacheTask)
}

// cache validates the request body and hands it to the coordinator.
// Delivery is best-effort: a missing agent drops the payload without
// failing the request.
func (h *Handlers) cache(c *gin.Context, forward func(json.RawMessage) bool) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}
	if err := h.validator.Validate(payload); err != nil {
		h.logger.Debug("rejecting cache payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"delivered": forward(payload),
	})
}

// StoragePersist asks the platform to pin the workspace data.
func (h *Handlers) StoragePersist(c *gin.Context) {
	if !h.store.Supported() {
		c.JSON(http.StatusOK, gin.H{
			"supported": false,
			"persisted": false,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"supported": true,
		"persisted": h.coord.RequestPersistence(c.Request.Context()),
	})
}

// StorageEstimate reports workspace usage against its quota.
func (h *Handlers) StorageEstimate(c *gin.Context) {
	est, ok := h.coord.QueryEstimate(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"supported": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"supported": true,
		"usage":     est.Usage,
		"quota":     est.Quota,
	})
}
