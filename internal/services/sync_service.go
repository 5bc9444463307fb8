package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/metrics"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

const (
	syncModeAll    = "all"
	syncModeUnread = "unread"
)

// SyncOptions lists where to look for inbound messages on the device
type SyncOptions struct {
	Endpoints       []string
	GenericEndpoint string
	QueryVariants   []string
}

// Discovery is the endpoint adopted by a probe and what it returned
type Discovery struct {
	Endpoint string
	Records  []extract.Record
}

// SyncService pulls inbound messages from the device into the database
type SyncService struct {
	gw        Gateway
	extractor *extract.Extractor
	received  db.ReceivedRepository
	resolver  *Resolver
	notifier  Notifier
	opts      SyncOptions
	now       func() time.Time

	run   sync.Mutex
	mu    sync.RWMutex
	state models.SyncState
	last  *models.SyncResult
}

// NewSyncService creates a sync service. A nil notifier drops events.
func NewSyncService(gw Gateway, extractor *extract.Extractor, received db.ReceivedRepository,
	resolver *Resolver, notifier Notifier, opts SyncOptions) *SyncService {
	if extractor == nil {
		extractor = extract.Default()
	}
	return &SyncService{
		gw:        gw,
		extractor: extractor,
		received:  received,
		resolver:  resolver,
		notifier:  orNop(notifier),
		opts:      opts,
		now:       time.Now,
		state:     models.SyncIdle,
	}
}

// State returns the phase of the current run, or idle/complete between runs
func (s *SyncService) State() models.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastResult returns the result of the last finished run, nil before any
func (s *SyncService) LastResult() *models.SyncResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

func (s *SyncService) setState(state models.SyncState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	logger.Debug("Sync state changed", zap.String("state", string(state)))
}

// Discover probes the configured endpoints in order and adopts the first
// that yields inbound records. The generic endpoint is retried with query
// variants when it answers with sent-message logs. Variant failures during
// the first pass are ignored; only the fallback pass and base endpoints
// keep the last transport error, returned when nothing succeeded.
func (s *SyncService) Discover(ctx context.Context) (*Discovery, error) {
	var lastErr error

	for _, ep := range s.opts.Endpoints {
		records, err := s.gw.Fetch(ctx, ep)
		if err != nil {
			lastErr = err
			logger.Warn("Sync endpoint probe failed", zap.String("endpoint", ep), zap.Error(err))
			continue
		}

		if len(records) > 0 && ep == s.opts.GenericEndpoint && s.extractor.LooksLikeSentLog(records[0]) {
			if d := s.tryVariants(ctx, ep, nil); d != nil {
				return d, nil
			}
			logger.Info("Endpoint returned sent records, skipping", zap.String("endpoint", ep))
			continue
		}

		logger.Info("Sync endpoint adopted", zap.String("endpoint", ep), zap.Int("records", len(records)))
		return &Discovery{Endpoint: ep, Records: records}, nil
	}

	if d := s.tryVariants(ctx, s.opts.GenericEndpoint, &lastErr); d != nil {
		return d, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return &Discovery{}, nil
}

// tryVariants returns the first variant of base whose first record has a
// body-like field. Transport errors are stored in lastErr when it is set.
func (s *SyncService) tryVariants(ctx context.Context, base string, lastErr *error) *Discovery {
	if base == "" {
		return nil
	}
	for _, q := range s.opts.QueryVariants {
		ep := base + q
		records, err := s.gw.Fetch(ctx, ep)
		if err != nil {
			if lastErr != nil {
				*lastErr = err
			}
			continue
		}
		if len(records) > 0 && s.extractor.HasBodyField(records[0]) {
			logger.Info("Sync endpoint adopted", zap.String("endpoint", ep), zap.Int("records", len(records)))
			return &Discovery{Endpoint: ep, Records: records}
		}
	}
	return nil
}

// SyncAll stores every new inbound message the device reports
func (s *SyncService) SyncAll(ctx context.Context) (*models.SyncResult, error) {
	return s.sync(ctx, syncModeAll)
}

// SyncUnread stores only messages explicitly marked inbound and not yet
// read on the device; they are stored unread
func (s *SyncService) SyncUnread(ctx context.Context) (*models.SyncResult, error) {
	return s.sync(ctx, syncModeUnread)
}

func (s *SyncService) sync(ctx context.Context, mode string) (*models.SyncResult, error) {
	// A started run finishes even when the caller goes away; device calls are
	// still bounded by the gateway timeouts.
	ctx = context.WithoutCancel(ctx)

	s.run.Lock()
	defer s.run.Unlock()

	start := s.now()
	logger.Info("Sync started", zap.String("mode", mode))

	s.setState(models.SyncProbing)
	found, err := s.Discover(ctx)
	if err != nil {
		s.setState(models.SyncIdle)
		metrics.SyncRuns.WithLabelValues(mode, "error").Inc()
		logger.Error("Sync failed: no usable endpoint", zap.String("mode", mode), zap.Error(err))
		return nil, err
	}

	s.setState(models.SyncFiltering)
	candidates := make([]extract.Record, 0, len(found.Records))
	for _, rec := range found.Records {
		if s.keep(rec, mode) {
			candidates = append(candidates, rec)
		}
	}

	s.setState(models.SyncPersisting)
	result := &models.SyncResult{
		Success:  true,
		Endpoint: found.Endpoint,
		Total:    len(candidates),
	}
	for _, rec := range candidates {
		switch s.persist(ctx, rec, mode) {
		case outcomeInserted:
			result.Inserted++
		case outcomeSkipped:
			result.Skipped++
		case outcomeError:
			result.Errors++
		}
	}

	s.setState(models.SyncComplete)
	result.State = models.SyncComplete

	metrics.SyncRuns.WithLabelValues(mode, "success").Inc()
	metrics.SyncRecords.WithLabelValues(mode, "inserted").Add(float64(result.Inserted))
	metrics.SyncRecords.WithLabelValues(mode, "skipped").Add(float64(result.Skipped))
	metrics.SyncRecords.WithLabelValues(mode, "error").Add(float64(result.Errors))

	s.mu.Lock()
	last := *result
	s.last = &last
	s.mu.Unlock()

	logger.Info("Sync complete",
		zap.String("mode", mode),
		zap.String("endpoint", result.Endpoint),
		zap.Int("total", result.Total),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	s.notifier.Broadcast(live.EventSyncComplete, result)
	return result, nil
}

func (s *SyncService) keep(rec extract.Record, mode string) bool {
	if mode == syncModeUnread {
		return s.extractor.IsInbound(rec) && !s.extractor.IsRead(rec)
	}
	return s.extractor.IsReceived(rec)
}

// outcome is what persist did with one record
type outcome int

const (
	outcomeInserted outcome = iota
	outcomeSkipped
	outcomeError
)

// persist stores one record and reports what happened to it
func (s *SyncService) persist(ctx context.Context, rec extract.Record, mode string) outcome {
	msg, err := s.extractor.Extract(rec)
	if errors.Is(err, extract.ErrNotExtractable) {
		logger.Debug("Sync record skipped: incomplete")
		return outcomeSkipped
	}
	if err != nil {
		logger.Warn("Sync record rejected", zap.Error(err))
		return outcomeError
	}

	exists, err := s.received.Exists(ctx, msg.Sender, msg.Body)
	if err != nil {
		logger.Error("Duplicate check failed", zap.String("sender", msg.Sender), zap.Error(err))
		return outcomeError
	}
	if exists {
		return outcomeSkipped
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
		IsRead:        mode == syncModeAll && msg.IsRead,
		ReceivedAt:    msg.ReceivedAt(s.now()),
	}
	if err := s.received.Insert(ctx, row); err != nil {
		logger.Error("Failed to store synced message", zap.String("sender", msg.Sender), zap.Error(err))
		return outcomeError
	}

	s.notifier.Broadcast(live.EventNewSMS, row)
	return outcomeInserted
}

// Run syncs every interval until ctx is cancelled. Errors are logged and the
// loop keeps going.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Background sync started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Background sync stopped")
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx); err != nil {
				logger.Warn("Background sync failed", zap.Error(err))
			}
		}
	}
}
