package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/phone"
	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrMessageNotFound is returned when no received message has the id
	ErrMessageNotFound = errors.New("message not found")

	// ErrParticipantNotFound is returned when no participant has the id
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrInvalidContactKey is returned for an empty conversation key
	ErrInvalidContactKey = errors.New("contact key is required")

	// ErrMissingBody is returned when a manual received message has no text
	ErrMissingBody = errors.New("participant id and message are required")
)

// ConversationService reads and acknowledges message history
type ConversationService struct {
	participants db.ParticipantRepository
	received     db.ReceivedRepository
	sent         db.SentRepository
	notifier     Notifier
}

// NewConversationService creates a new ConversationService
func NewConversationService(participants db.ParticipantRepository, received db.ReceivedRepository,
	sent db.SentRepository, notifier Notifier) *ConversationService {
	return &ConversationService{
		participants: participants,
		received:     received,
		sent:         sent,
		notifier:     orNop(notifier),
	}
}

// Unread returns every unread received message, newest first
func (s *ConversationService) Unread(ctx context.Context) ([]*models.UnreadMessage, error) {
	return s.received.ListUnread(ctx)
}

// MarkRead flags a single received message as read
func (s *ConversationService) MarkRead(ctx context.Context, id int64) error {
	n, err := s.received.MarkRead(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkConversationRead acknowledges every unread message of a contact. The
// key is a participant id, or a phone number that is matched to a
// participant first and to raw senders otherwise. Returns the number of
// messages changed.
func (s *ConversationService) MarkConversationRead(ctx context.Context, key string) (int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, ErrInvalidContactKey
	}

	if !phone.LooksLikePhone(key) {
		id, _ := strconv.ParseInt(key, 10, 64)
		n, err := s.received.MarkReadByParticipant(ctx, id)
		if err != nil {
			return 0, err
		}
		logger.Info("Conversation marked as read",
			zap.Int64("participant_id", id),
			zap.Int64("affected", n),
		)
		return n, nil
	}

	p, err := s.participantForPhone(ctx, key)
	if err != nil {
		return 0, err
	}
	if p != nil {
		n, err := s.received.MarkReadByParticipant(ctx, p.ID)
		if err != nil {
			return 0, err
		}
		logger.Info("Conversation marked as read by phone",
			zap.String("phone", key),
			zap.Int64("participant_id", p.ID),
			zap.Int64("affected", n),
		)
		return n, nil
	}

	n, err := s.received.MarkReadBySender(ctx, key, phone.Digits(key))
	if err != nil {
		return 0, err
	}
	logger.Info("Conversation marked as read for unknown sender",
		zap.String("phone", key),
		zap.Int64("affected", n),
	)
	return n, nil
}

// participantForPhone matches a typed number exactly against stored phones,
// with and without the leading country code.
func (s *ConversationService) participantForPhone(ctx context.Context, raw string) (*models.Participant, error) {
	d := phone.Digits(raw)
	p, err := s.participants.FindByDigits(ctx, d)
	if err != nil || p != nil {
		return p, err
	}
	n := phone.Normalize(raw)
	if len(n) != 10 {
		return nil, nil
	}
	alt := "1" + n
	if d != n {
		// typed with the country code, stored without
		alt = n
	}
	return s.participants.FindByDigits(ctx, alt)
}

// Archive returns every sent and received message newest first, with numbers
// in display form
func (s *ConversationService) Archive(ctx context.Context) ([]*models.ConversationEntry, error) {
	return s.entries(ctx, db.EntryFilter{})
}

// Conversation returns the history of one contact. A participant id key
// selects its linked messages. A phone key selects the participant it
// resolves to, or the unlinked messages of that number.
func (s *ConversationService) Conversation(ctx context.Context, key string) ([]*models.ConversationEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidContactKey
	}

	var filter db.EntryFilter
	if !phone.LooksLikePhone(key) {
		id, _ := strconv.ParseInt(key, 10, 64)
		filter.ParticipantID = &id
	} else {
		p, err := s.participantForPhone(ctx, key)
		if err != nil {
			return nil, err
		}
		if p != nil {
			filter.ParticipantID = &p.ID
		} else {
			filter.PhoneDigits = phone.Last10(key)
		}
	}
	return s.entries(ctx, filter)
}

func (s *ConversationService) entries(ctx context.Context, filter db.EntryFilter) ([]*models.ConversationEntry, error) {
	sent, err := s.sent.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	received, err := s.received.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}

	all := append(sent, received...)
	for _, e := range all {
		e.Phone = displayPtr(e.Phone)
		e.SenderNumber = displayPtr(e.SenderNumber)
		e.RecipientNumber = displayPtr(e.RecipientNumber)
	}
	slices.SortStableFunc(all, func(a, b *models.ConversationEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return all, nil
}

func displayPtr(s *string) *string {
	if s == nil {
		return nil
	}
	d := phone.Display(*s)
	return &d
}

// AddReceived records an inbound message typed in by staff. The sender
// defaults to the participant's phone.
func (s *ConversationService) AddReceived(ctx context.Context, req models.AddReceivedRequest) (*models.ReceivedMessage, error) {
	body := strings.TrimSpace(req.Body)
	if req.ParticipantID == 0 || body == "" {
		return nil, ErrMissingBody
	}

	p, err := s.participants.GetByID(ctx, req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	sender := strings.TrimSpace(req.SenderNumber)
	if sender == "" {
		sender = p.Phone
	}

	id := p.ID
	m := &models.ReceivedMessage{
		ParticipantID: &id,
		Body:          body,
		SenderNumber:  sender,
	}
	if err := s.received.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to record received message: %w", err)
	}

	logger.Info("Received message recorded manually",
		zap.Int64("message_id", m.ID),
		zap.Int64("participant_id", id),
	)
	s.notifier.Broadcast(live.EventNewSMS, m)
	return m, nil
}
