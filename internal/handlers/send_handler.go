package handlers

import (
	"context"
	"errors"
	"net/http"

	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SendHandler handles outbound SMS requests made over REST
type SendHandler struct {
	send SendServiceInterface
}

// NewSendHandler creates a new send handler
func NewSendHandler(send SendServiceInterface) *SendHandler {
	return &SendHandler{send: send}
}

// Quick handles POST /send-sms-quick. A device failure still answers 200
// with success false; the attempt is stored either way.
func (h *SendHandler) Quick(c *gin.Context) {
	var req models.SendQuickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Quick send missing parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrMissingMessage.Error()})
		return
	}

	logger.Info("Quick send received",
		zap.String("username", c.GetString(middleware.UsernameKey)),
		zap.Int("length", len(req.Message)),
	)
	result, err := h.send.Quick(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		if errors.Is(err, services.ErrMissingMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "Failed to send SMS", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Bulk handles POST /send-bulk. The run continues in the background and is
// followed through GET /send-status or the live channel.
func (h *SendHandler) Bulk(c *gin.Context) {
	var req models.BulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrNoRecipients.Error()})
		return
	}

	if _, err := h.send.StartBulk(c.Request.Context(), req); err != nil {
		switch {
		case errors.Is(err, services.ErrNoRecipients):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrBulkInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			internalError(c, "Failed to start bulk send", err)
		}
		return
	}

	progress := h.send.Progress()
	logger.Info("Bulk send started",
		zap.String("username", c.GetString(middleware.UsernameKey)),
		zap.Int("recipients", progress.Total),
	)
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "total": progress.Total})
}

// Status handles GET /send-status
func (h *SendHandler) Status(c *gin.Context) {
	noCache(c)
	c.JSON(http.StatusOK, h.send.Progress())
}
