package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/metrics"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/phone"
	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

const (
	sendKindQuick = "quick"
	sendKindBulk  = "bulk"

	statusSending = "sending"
)

var (
	// ErrMissingMessage is returned when the text or the number is empty
	ErrMissingMessage = errors.New("message and phone are required")

	// ErrNoRecipients is returned when a bulk send targets nobody
	ErrNoRecipients = errors.New("message and recipients are required")

	// ErrBulkInProgress is returned when a bulk send is already running
	ErrBulkInProgress = errors.New("a bulk send is already in progress")
)

// Sleeper waits d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacing bounds the random pause between two bulk sends
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

func (p Pacing) next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int64N(int64(p.Max-p.Min)+1))
}

// Recipient is one target of a bulk send. Key identifies it in the progress
// details: the participant id, or manual-<digits> for a typed number.
type Recipient struct {
	Key           string
	ParticipantID *int64
	Phone         string
	Missing       bool
}

// SendService sends SMS through the device and records every attempt
type SendService struct {
	gw           Gateway
	participants db.ParticipantRepository
	sent         db.SentRepository
	resolver     *Resolver
	notifier     Notifier
	pacing       Pacing
	sleep        Sleeper

	mu       sync.Mutex
	progress models.SendProgress
	runs     sync.WaitGroup
}

// NewSendService creates the send pipeline. A nil notifier drops events.
func NewSendService(gw Gateway, participants db.ParticipantRepository, sent db.SentRepository,
	resolver *Resolver, notifier Notifier, pacing Pacing) *SendService {
	return &SendService{
		gw:           gw,
		participants: participants,
		sent:         sent,
		resolver:     resolver,
		notifier:     orNop(notifier),
		pacing:       pacing,
		sleep:        sleepContext,
		progress:     models.SendProgress{Details: map[string]string{}},
	}
}

// SetSleeper replaces the pause between bulk sends
func (s *SendService) SetSleeper(fn Sleeper) {
	s.sleep = fn
}

// Progress returns a copy of the current or last bulk run
func (s *SendService) Progress() models.SendProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// SendOne sends one message and stores the attempt. A device failure is
// reported in the result, not as an error; only invalid input errors.
func (s *SendService) SendOne(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error) {
	ctx = context.WithoutCancel(ctx)
	text := strings.TrimSpace(req.Message)
	raw := strings.TrimSpace(req.Phone)
	if text == "" || raw == "" {
		return nil, ErrMissingMessage
	}

	participantID := req.ParticipantID
	if participantID == nil {
		id, err := s.resolver.ResolveID(ctx, raw)
		if err != nil {
			logger.Warn("Participant lookup failed", zap.String("phone", raw), zap.Error(err))
		}
		participantID = id
	}

	record, sendErr := s.attempt(ctx, sendKindQuick, participantID, raw, text)

	result := &models.SendQuickResult{
		Success:    sendErr == nil,
		MessageID:  record.ID,
		Status:     record.Status,
		CallbackID: req.CallbackID,
		Message:    record,
	}
	if sendErr != nil {
		result.Error = sendErr.Error()
	}
	return result, nil
}

// Quick is SendOne for callers without a live connection of their own: the
// attempt is announced to everyone as a one-recipient progress run.
func (s *SendService) Quick(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error) {
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, ErrMissingMessage
	}
	key := strings.TrimSpace(req.Phone)
	s.notifier.Broadcast(live.EventProgress, models.SendProgress{
		Total: 1, Running: true, Details: map[string]string{key: statusSending},
	})

	result, err := s.SendOne(ctx, req)
	if err != nil {
		return nil, err
	}

	done := models.SendProgress{Total: 1, Current: 1, Details: map[string]string{key: result.Status}}
	s.notifier.Broadcast(live.EventProgress, done)
	s.notifier.Broadcast(live.EventFinish, done)
	s.notifier.Broadcast(live.EventSMSSent, models.NewSentEvent(result.Message, key, result.Error))
	return result, nil
}

// attempt calls the device once and stores the outcome. The stored row is
// returned even when the insert failed, so the caller can still report it.
func (s *SendService) attempt(ctx context.Context, kind string, participantID *int64, raw, text string) (*models.SentMessage, error) {
	to := phone.ToE164(raw)
	status := models.StatusSuccess

	resp, sendErr := s.gw.Send(ctx, []string{to}, text)
	if sendErr != nil {
		status = models.StatusFailure
		logger.Error("SMS send failed",
			zap.String("kind", kind),
			zap.String("phone", to),
			zap.Error(sendErr),
		)
	} else {
		fields := []zap.Field{zap.String("kind", kind), zap.String("phone", to)}
		if resp != nil && resp.ID != "" {
			fields = append(fields, zap.String("device_id", resp.ID))
		}
		logger.Info("SMS sent", fields...)
	}
	metrics.SendAttempts.WithLabelValues(kind, status).Inc()

	record := &models.SentMessage{
		ParticipantID:   participantID,
		Body:            text,
		RecipientNumber: raw,
		Status:          status,
	}
	if err := s.sent.Insert(ctx, record); err != nil {
		logger.Error("Failed to store sent SMS",
			zap.String("phone", raw),
			zap.String("status", status),
			zap.Error(err),
		)
		if record.SentAt.IsZero() {
			record.SentAt = time.Now()
		}
	}
	return record, sendErr
}

// Recipients turns a bulk request into targets. Ids win over phones; ids
// that match no participant are kept and marked Missing.
func (s *SendService) Recipients(ctx context.Context, req models.BulkSendRequest) ([]Recipient, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrNoRecipients
	}

	var out []Recipient
	switch {
	case len(req.IDs) > 0:
		found, err := s.participants.GetByIDs(ctx, req.IDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipients: %w", err)
		}
		byID := make(map[int64]*models.Participant, len(found))
		for _, p := range found {
			byID[p.ID] = p
		}
		for _, id := range req.IDs {
			r := Recipient{Key: strconv.FormatInt(id, 10), ParticipantID: &id}
			if p, ok := byID[id]; ok {
				r.Phone = p.Phone
			} else {
				r.Missing = true
			}
			out = append(out, r)
		}
	case len(req.Phones) > 0:
		for _, p := range req.Phones {
			if strings.TrimSpace(p) == "" {
				continue
			}
			out = append(out, Recipient{Key: "manual-" + phone.Digits(p), Phone: p})
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

func (s *SendService) begin(total int) (models.SendProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress.Running {
		return models.SendProgress{}, ErrBulkInProgress
	}
	s.progress = models.SendProgress{Total: total, Running: true, Details: map[string]string{}}
	return s.progress.Clone(), nil
}

// SendBulk sends the same text to every recipient and returns once all
// attempts are done
func (s *SendService) SendBulk(ctx context.Context, req models.BulkSendRequest) (*models.BulkSendResult, error) {
	recipients, err := s.Recipients(ctx, req)
	if err != nil {
		return nil, err
	}
	start, err := s.begin(len(recipients))
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(live.EventProgress, start)
	return s.run(ctx, recipients, strings.TrimSpace(req.Message), req.CallbackID), nil
}

// StartBulk validates the request and runs it in the background. The returned
// channel yields the result once the run ends.
func (s *SendService) StartBulk(ctx context.Context, req models.BulkSendRequest) (<-chan *models.BulkSendResult, error) {
	recipients, err := s.Recipients(ctx, req)
	if err != nil {
		return nil, err
	}
	start, err := s.begin(len(recipients))
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(live.EventProgress, start)

	done := make(chan *models.BulkSendResult, 1)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		done <- s.run(context.WithoutCancel(ctx), recipients, strings.TrimSpace(req.Message), req.CallbackID)
		close(done)
	}()
	return done, nil
}

// Wait blocks until every run started by StartBulk has ended
func (s *SendService) Wait() {
	s.runs.Wait()
}

// run sends sequentially with a random pause between attempts. A failure
// never stops the loop; progress is broadcast after every attempt.
func (s *SendService) run(ctx context.Context, recipients []Recipient, text, callbackID string) *models.BulkSendResult {
	result := &models.BulkSendResult{
		Total:      len(recipients),
		Details:    make(map[string]string, len(recipients)),
		CallbackID: callbackID,
	}

	logger.Info("Bulk send started", zap.Int("recipients", len(recipients)))

	for i, r := range recipients {
		status := models.StatusFailure
		if r.Missing {
			result.Errors = append(result.Errors, fmt.Sprintf("participant %s: not found", r.Key))
			metrics.SendAttempts.WithLabelValues(sendKindBulk, status).Inc()
		} else {
			record, err := s.attempt(ctx, sendKindBulk, r.ParticipantID, r.Phone, text)
			status = record.Status
			errText := ""
			if err != nil {
				errText = err.Error()
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", phone.ToE164(r.Phone), err))
			}
			s.notifier.Broadcast(live.EventSMSSent, models.NewSentEvent(record, r.Phone, errText))
		}

		if status == models.StatusSuccess {
			result.SuccessCount++
		} else {
			result.FailCount++
		}
		result.Details[r.Key] = status

		s.mu.Lock()
		s.progress.Details[r.Key] = status
		s.progress.Current++
		snapshot := s.progress.Clone()
		s.mu.Unlock()
		s.notifier.Broadcast(live.EventProgress, snapshot)

		if i < len(recipients)-1 && !r.Missing {
			if err := s.sleep(ctx, s.pacing.next()); err != nil {
				logger.Warn("Bulk send pacing interrupted", zap.Error(err))
			}
		}
	}

	s.mu.Lock()
	s.progress.Running = false
	final := s.progress.Clone()
	s.mu.Unlock()
	s.notifier.Broadcast(live.EventFinish, final)

	result.Success = result.FailCount == 0
	logger.Info("Bulk send completed",
		zap.Int("total", result.Total),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailCount),
	)
	return result
}
