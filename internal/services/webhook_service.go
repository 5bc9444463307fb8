package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/dedupe"
	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/metrics"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrInvalidWebhookSecret is returned when the shared secret does not match
	ErrInvalidWebhookSecret = errors.New("invalid webhook secret")

	// ErrInvalidWebhookBody is returned when the body is not a JSON object or array
	ErrInvalidWebhookBody = errors.New("webhook body must be a JSON object or array")
)

// WebhookService stores messages pushed by the device
type WebhookService struct {
	secret    string
	extractor *extract.Extractor
	received  db.ReceivedRepository
	resolver  *Resolver
	notifier  Notifier
	seen      *dedupe.Cache
	now       func() time.Time
}

// NewWebhookService creates the receiver. An empty secret disables the
// header check.
func NewWebhookService(secret string, extractor *extract.Extractor, received db.ReceivedRepository,
	resolver *Resolver, notifier Notifier, seen *dedupe.Cache) *WebhookService {
	if extractor == nil {
		extractor = extract.Default()
	}
	if seen == nil {
		seen = dedupe.New(dedupe.DefaultTTL)
	}
	return &WebhookService{
		secret:    secret,
		extractor: extractor,
		received:  received,
		resolver:  resolver,
		notifier:  orNop(notifier),
		seen:      seen,
		now:       time.Now,
	}
}

// Authorize compares the presented secret in constant time
func (s *WebhookService) Authorize(presented string) error {
	if s.secret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.secret)) != 1 {
		return ErrInvalidWebhookSecret
	}
	return nil
}

// Decode splits a webhook body into items: a single record or an array of
// records. Non-object array members are ignored.
func (s *WebhookService) Decode(body []byte) ([]extract.Record, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookBody, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return []extract.Record{v}, nil
	case []any:
		items := make([]extract.Record, 0, len(v))
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok {
				items = append(items, rec)
			}
		}
		return items, nil
	default:
		return nil, ErrInvalidWebhookBody
	}
}

// Process stores each item as an unread received message. Incomplete items
// and ids seen within the dedupe window are skipped; storage errors are
// collected and do not stop the batch.
func (s *WebhookService) Process(ctx context.Context, items []extract.Record) *models.WebhookResult {
	result := &models.WebhookResult{Success: true, Errors: []string{}}
	logger.Info("Webhook received", zap.Int("items", len(items)))

	for _, item := range items {
		data := s.extractor.Unwrap(item)
		messageID := s.extractor.MessageID(data, item)

		msg, err := s.extractor.Extract(data)
		if err != nil {
			result.Skipped++
			metrics.WebhookItems.WithLabelValues("skipped").Inc()
			logger.Warn("Webhook SMS ignored", zap.String("message_id", messageID), zap.Error(err))
			continue
		}

		if s.seen.Seen(messageID) {
			result.Skipped++
			metrics.WebhookItems.WithLabelValues("duplicate").Inc()
			logger.Warn("Webhook SMS duplicate ignored",
				zap.String("message_id", messageID),
				zap.String("sender", msg.Sender),
			)
			continue
		}

		participantID, err := s.resolver.ResolveID(ctx, msg.Sender)
		if err != nil {
			logger.Warn("Participant lookup failed", zap.String("sender", msg.Sender), zap.Error(err))
			participantID = nil
		}

		row := &models.ReceivedMessage{
			ParticipantID: participantID,
			Body:          msg.Body,
			SenderNumber:  msg.Sender,
			ReceivedAt:    msg.ReceivedAt(s.now()),
		}
		if err := s.received.Insert(ctx, row); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", msg.Sender, err))
			metrics.WebhookItems.WithLabelValues("error").Inc()
			logger.Error("Failed to store webhook SMS", zap.String("sender", msg.Sender), zap.Error(err))
			continue
		}

		result.Inserted++
		metrics.WebhookItems.WithLabelValues("inserted").Inc()
		s.notifier.Broadcast(live.EventNewSMS, row)
		logger.Info("Webhook SMS inserted",
			zap.Int64("id", row.ID),
			zap.Bool("participant_found", participantID != nil),
			zap.Int("length", len(msg.Body)),
		)
	}

	logger.Info("Webhook processing completed",
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}
