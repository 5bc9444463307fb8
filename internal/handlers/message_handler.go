package handlers

import (
	"errors"
	"net/http"

	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler serves stored message history and read acknowledgements
type MessageHandler struct {
	conversations ConversationServiceInterface
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(conversations ConversationServiceInterface) *MessageHandler {
	return &MessageHandler{conversations: conversations}
}

// Unread handles GET /unread-sms
func (h *MessageHandler) Unread(c *gin.Context) {
	unread, err := h.conversations.Unread(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to list unread messages", err)
		return
	}
	c.JSON(http.StatusOK, unread)
}

// MarkRead handles POST /mark-sms-read/:id
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "Failed to mark message read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message marked as read"})
}

// MarkConversationRead handles POST /mark-conversation-read
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	var req models.MarkConversationReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidContactKey.Error()})
		return
	}
	n, err := h.conversations.MarkConversationRead(c.Request.Context(), req.ContactKey)
	if err != nil {
		if errors.Is(err, services.ErrInvalidContactKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Mark conversation as read failed",
			zap.String("contact_key", req.ContactKey),
			zap.String("user_id", c.GetString(middleware.UserIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark conversation read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Conversation marked as read",
		"contactKey": req.ContactKey,
		"updated":    n,
	})
}

// Archive handles GET /sent-messages-archive
func (h *MessageHandler) Archive(c *gin.Context) {
	entries, err := h.conversations.Archive(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to load message archive", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Conversation handles GET /conversations/:key
func (h *MessageHandler) Conversation(c *gin.Context) {
	entries, err := h.conversations.Conversation(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidContactKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "Failed to load conversation", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// AddReceived handles POST /add-received-sms
func (h *MessageHandler) AddReceived(c *gin.Context) {
	var req models.AddReceivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrMissingBody.Error()})
		return
	}
	m, err := h.conversations.AddReceived(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrParticipantNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			internalError(c, "Failed to record received message", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message recorded", "id": m.ID})
}
