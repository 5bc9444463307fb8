package handlers

import (
	"context"
	"encoding/json"
	"time"

	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bulkMessage is the payload of an inbound bulk-sms event. Recipients are
// participant ids.
type bulkMessage struct {
	Recipients []int64  `json:"recipients"`
	Phones     []string `json:"phones"`
	Message    string   `json:"message"`
	CallbackID string   `json:"callbackId"`
}

// LiveHandler upgrades dashboard connections and answers their send requests
type LiveHandler struct {
	hub      *live.Hub
	registry *live.Registry
	send     SendServiceInterface
	maxDelay time.Duration
}

// NewLiveHandler creates the handler and registers its inbound events on the
// hub. maxDelay is the longest pause between two bulk sends; a bulk reply may
// take that long per extra recipient on top of the registry timeout.
func NewLiveHandler(hub *live.Hub, registry *live.Registry, send SendServiceInterface, maxDelay time.Duration) *LiveHandler {
	h := &LiveHandler{hub: hub, registry: registry, send: send, maxDelay: maxDelay}
	hub.Handle(live.EventSendQuick, h.quick)
	hub.Handle(live.EventBulkSMS, h.bulk)
	return h
}

// Serve handles GET /ws
func (h *LiveHandler) Serve(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request, c.GetString(middleware.UserIDKey)); err != nil {
		logger.Warn("Websocket upgrade failed", zap.String("client_ip", c.ClientIP()), zap.Error(err))
	}
}

func (h *LiveHandler) quick(ctx context.Context, c *live.Client, msg live.Message) {
	var req models.SendQuickRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.fail(c, live.EventSMSSent, "", "invalid payload")
		return
	}
	logger.Info("Live quick send received", zap.String("client_id", c.ID()), zap.String("callback_id", req.CallbackID))

	h.await(c, req.CallbackID, 0, live.EventSMSSent, func() any {
		result, err := h.send.SendOne(ctx, req)
		if err != nil {
			return models.SendQuickResult{Success: false, Error: err.Error(), CallbackID: req.CallbackID}
		}
		ev := models.NewSentEvent(result.Message, req.Phone, result.Error)
		h.hub.BroadcastExcept(c.ID(), live.EventSMSSent, ev)
		reply := *ev
		reply.CallbackID = req.CallbackID
		return &reply
	})
}

func (h *LiveHandler) bulk(ctx context.Context, c *live.Client, msg live.Message) {
	var in bulkMessage
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		h.fail(c, live.EventBulkResponse, "", "invalid payload")
		return
	}
	logger.Info("Live bulk send received",
		zap.String("client_id", c.ID()),
		zap.Int("recipients", len(in.Recipients)+len(in.Phones)),
		zap.String("callback_id", in.CallbackID),
	)

	n := len(in.Recipients) + len(in.Phones)
	budget := h.registry.Timeout()
	if n > 1 {
		budget += time.Duration(n-1) * h.maxDelay
	}

	h.await(c, in.CallbackID, budget, live.EventBulkResponse, func() any {
		result, err := h.send.SendBulk(ctx, models.BulkSendRequest{
			IDs:        in.Recipients,
			Phones:     in.Phones,
			Message:    in.Message,
			CallbackID: in.CallbackID,
		})
		if err != nil {
			return gin.H{"success": false, "callbackId": in.CallbackID, "error": err.Error()}
		}
		return result
	})
}

// await runs fn and delivers its result to the client that asked for it.
// With a callback id the request goes through the registry: a result that
// arrives after the entry expired is dropped.
func (h *LiveHandler) await(c *live.Client, callbackID string, timeout time.Duration, event string, fn func() any) {
	if callbackID == "" {
		h.deliver(c.ID(), event, fn())
		return
	}

	if _, err := h.registry.Register(callbackID, c.ID(), timeout); err != nil {
		h.fail(c, event, callbackID, err.Error())
		return
	}

	result := fn()

	clientID, ok := h.registry.Resolve(callbackID)
	if !ok {
		logger.Warn("Live result arrived after timeout, dropped",
			zap.String("callback_id", callbackID),
			zap.String("event", event),
		)
		return
	}
	h.deliver(clientID, event, result)
}

func (h *LiveHandler) deliver(clientID, event string, data any) {
	if err := h.hub.SendTo(clientID, event, data); err != nil {
		logger.Warn("Live reply not delivered", zap.String("client_id", clientID), zap.Error(err))
	}
}

func (h *LiveHandler) fail(c *live.Client, event, callbackID, reason string) {
	h.deliver(c.ID(), event, gin.H{"success": false, "callbackId": callbackID, "error": reason})
}
