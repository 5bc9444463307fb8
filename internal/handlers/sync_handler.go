package handlers

import (
	"context"
	"fmt"
	"net/http"

	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type syncResponse struct {
	*models.SyncResult
	Message string `json:"message"`
}

// SyncHandler triggers device syncs and reports device reachability
type SyncHandler struct {
	sync   SyncServiceInterface
	device DeviceServiceInterface
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(sync SyncServiceInterface, device DeviceServiceInterface) *SyncHandler {
	return &SyncHandler{sync: sync, device: device}
}

// SyncAll handles POST /pixel/sync-sms
func (h *SyncHandler) SyncAll(c *gin.Context) {
	logger.Info("SMS synchronization initiated", zap.String("username", c.GetString(middleware.UsernameKey)))
	result, err := h.sync.SyncAll(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse{
		SyncResult: result,
		Message: fmt.Sprintf("Sync complete: %d imported, %d existing, %d errors",
			result.Inserted, result.Skipped, result.Errors),
	})
}

// SyncUnread handles POST /pixel/sync-unread-only
func (h *SyncHandler) SyncUnread(c *gin.Context) {
	logger.Info("Unread SMS synchronization initiated", zap.String("username", c.GetString(middleware.UsernameKey)))
	result, err := h.sync.SyncUnread(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse{
		SyncResult: result,
		Message:    fmt.Sprintf("%d unread SMS imported, %d existing", result.Inserted, result.Skipped),
	})
}

// Status handles GET /pixel/sync-status
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.sync.State(), "last": h.sync.LastResult()})
}

func (h *SyncHandler) syncFailed(c *gin.Context, err error) {
	logger.Error("SMS synchronization failed",
		zap.String("username", c.GetString(middleware.UsernameKey)),
		zap.Error(err),
	)
	c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
}

// Health handles GET /pixel-status
func (h *SyncHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.device.Health(c.Request.Context()))
}

// DeviceStatus handles GET /pixel/device-status
func (h *SyncHandler) DeviceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.device.Connection(c.Request.Context()))
}
