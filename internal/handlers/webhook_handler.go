package handlers

import (
	"errors"
	"net/http"

	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookSecretHeader carries the shared secret on device deliveries
const WebhookSecretHeader = "X-Pixel-Webhook-Secret"

// WebhookHandler receives SMS pushed by the gateway device
type WebhookHandler struct {
	webhook WebhookServiceInterface
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhook WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{webhook: webhook}
}

// Incoming handles POST /pixel/incoming
func (h *WebhookHandler) Incoming(c *gin.Context) {
	if err := h.webhook.Authorize(c.GetHeader(WebhookSecretHeader)); err != nil {
		logger.Warn("Webhook rejected", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read body"})
		return
	}

	items, err := h.webhook.Decode(body)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWebhookBody) {
			logger.Warn("Webhook body rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": services.ErrInvalidWebhookBody.Error()})
			return
		}
		internalError(c, "Failed to decode webhook", err)
		return
	}

	c.JSON(http.StatusOK, h.webhook.Process(c.Request.Context(), items))
}
