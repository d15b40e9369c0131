package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/detector"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

// ObservationStore is the persistence surface the ingest pipeline needs.
// *store.Store satisfies it; tests use in-memory fakes.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs *models.Observation) (string, error)
	GetLatestForKey(ctx context.Context, sku, sellerID string) (*models.LatestState, error)
	LatestPerKey(ctx context.Context) ([]models.LatestState, error)
	GetTrackersForSKU(ctx context.Context, sku string) ([]models.TrackedItem, error)
	InsertAlert(ctx context.Context, alert *models.Alert) (bool, error)
}

// LatestStateIndex is the derived per-key baseline cache.
type LatestStateIndex interface {
	GetLatestState(ctx context.Context, sku, sellerID string) (*models.LatestState, error)
	UpsertLatestState(ctx context.Context, state *models.LatestState) (bool, error)
}

// AlertPublisher emits alert-raised events for downstream notifiers.
type AlertPublisher interface {
	PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error
}

// IngestService runs the observation pipeline: validate, serialize per
// key, drop stale data, append, detect, record alerts, update the index.
type IngestService struct {
	store     ObservationStore
	index     LatestStateIndex
	publisher AlertPublisher
	detector  *detector.Detector
	locks     *keyLocks
	timeout   time.Duration
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store ObservationStore,
	index LatestStateIndex,
	publisher AlertPublisher,
	cfg config.BusinessConfig,
) *IngestService {
	return &IngestService{
		store:     store,
		index:     index,
		publisher: publisher,
		detector:  detector.New(cfg.EpsilonPct),
		locks:     newKeyLocks(128),
		timeout:   cfg.StorageTimeout,
		logger:    util.GetLogger(),
	}
}

// IngestResult reports what one observation produced.
type IngestResult struct {
	Status         string              `json:"status"`
	Event          *models.ChangeEvent `json:"event,omitempty"`
	AlertsRecorded int                 `json:"alerts_recorded"`
}

const maxPrice = 999999

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

var scrapedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseRecord validates an ingestion record and converts it to an
// observation. All failures are ValidationError: the producer must fix
// and resubmit, retrying cannot help.
func ParseRecord(rec *models.ObservationRecord) (*models.Observation, error) {
	if rec.SKU == "" {
		return nil, fmt.Errorf("%w: missing sku", ErrValidation)
	}
	if rec.SellerID == "" {
		return nil, fmt.Errorf("%w: missing seller_id", ErrValidation)
	}
	if rec.Price <= 0 || rec.Price > maxPrice {
		return nil, fmt.Errorf("%w: price %v out of range", ErrValidation, rec.Price)
	}
	if !currencyPattern.MatchString(rec.Currency) {
		return nil, fmt.Errorf("%w: currency %q is not a 3-letter code", ErrValidation, rec.Currency)
	}
	if rec.InStock != 0 && rec.InStock != 1 {
		return nil, fmt.Errorf("%w: in_stock must be 0 or 1", ErrValidation)
	}

	var observedAt time.Time
	var err error
	for _, layout := range scrapedAtLayouts {
		observedAt, err = time.Parse(layout, rec.ScrapedAt)
		if err == nil {
			break
		}
	}
	if err != nil || observedAt.IsZero() {
		return nil, fmt.Errorf("%w: unparseable scraped_at %q", ErrValidation, rec.ScrapedAt)
	}

	obs := &models.Observation{
		SKU:        rec.SKU,
		SellerID:   rec.SellerID,
		Price:      decimal.NewFromFloat(rec.Price),
		Currency:   rec.Currency,
		InStock:    rec.InStock == 1,
		ObservedAt: observedAt.UTC(),
	}
	if rec.OriginalPrice != nil {
		obs.OriginalPrice = decimal.NewNullDecimal(decimal.NewFromFloat(*rec.OriginalPrice))
	}
	if rec.DiscountPct != nil {
		obs.DiscountPct = decimal.NewNullDecimal(decimal.NewFromFloat(*rec.DiscountPct))
	}
	return obs, nil
}

// Ingest processes one observation record end to end. The section from
// prior-state read to index update runs under the key's lock so two
// near-simultaneous observations for one (sku, seller) can never both
// compare against the same stale baseline.
func (s *IngestService) Ingest(ctx context.Context, rec *models.ObservationRecord) (*IngestResult, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.Ingest")
	defer span.End()

	start := time.Now()
	defer func() {
		util.IngestLatency.Observe(time.Since(start).Seconds())
	}()

	obs, err := ParseRecord(rec)
	if err != nil {
		util.ObservationsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	util.SpanKey(span, obs.SKU, obs.SellerID)

	key := obs.SKU + "|" + obs.SellerID
	mu := s.locks.lock(key)
	defer mu.Unlock()

	prior, err := s.priorState(ctx, obs.SKU, obs.SellerID)
	if err != nil {
		return nil, err
	}

	if prior != nil && obs.ObservedAt.Before(prior.ObservedAt) {
		util.ObservationsStaleTotal.Inc()
		s.logger.Debug("Dropping stale observation",
			zap.String("sku", obs.SKU),
			zap.String("seller_id", obs.SellerID),
			zap.Time("observed_at", obs.ObservedAt),
			zap.Time("latest", prior.ObservedAt))
		return &IngestResult{Status: models.AppendStale}, nil
	}

	status, err := s.appendObservation(ctx, obs)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Status: status}

	// A same-instant rewrite replaces the stored row (last write wins)
	// but is not a transition, so detection is skipped.
	sameInstant := prior != nil && obs.ObservedAt.Equal(prior.ObservedAt)
	if !sameInstant {
		util.ObservationsIngestedTotal.Inc()
		if event := s.detector.Evaluate(obs, prior); event != nil {
			util.ChangeEventsTotal.WithLabelValues(event.Type).Inc()
			recorded, err := s.recordAlerts(ctx, event)
			if err != nil {
				return nil, err
			}
			result.Event = event
			result.AlertsRecorded = recorded
		}
	} else {
		util.ObservationsDuplicateTotal.Inc()
	}

	if err := s.updateIndex(ctx, obs); err != nil {
		return nil, err
	}
	return result, nil
}

// priorState reads the baseline from the index, falling back to the
// observation store when the index has no entry or is unreachable.
func (s *IngestService) priorState(ctx context.Context, sku, sellerID string) (*models.LatestState, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prior, err := s.index.GetLatestState(opCtx, sku, sellerID)
	if err != nil {
		s.logger.Warn("Index lookup failed, falling back to store",
			zap.String("sku", sku),
			zap.String("seller_id", sellerID),
			zap.Error(err))
	}
	if prior != nil {
		return prior, nil
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, s.timeout)
	defer dbCancel()

	prior, err = s.store.GetLatestForKey(dbCtx, sku, sellerID)
	if err != nil {
		return nil, fmt.Errorf("%w: prior-state lookup: %v", ErrUnavailable, err)
	}
	return prior, nil
}

func (s *IngestService) appendObservation(ctx context.Context, obs *models.Observation) (string, error) {
	var status string
	err := s.withRetry(ctx, func(opCtx context.Context) error {
		var err error
		status, err = s.store.InsertObservation(opCtx, obs)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: observation append: %v", ErrUnavailable, err)
	}
	return status, nil
}

// recordAlerts fans a change event out to the users tracking its SKU.
// Trackers with notifications off only receive target-price hits. When
// nobody tracks the SKU one unscoped ledger row still records the event.
// Each row carries the triggering observed_at, so a replayed observation
// (crash before offset commit, retry after a partial failure) dedupes
// against rows already written instead of appending a second set.
func (s *IngestService) recordAlerts(ctx context.Context, event *models.ChangeEvent) (int, error) {
	trackCtx, cancel := context.WithTimeout(ctx, s.timeout)
	trackers, err := s.store.GetTrackersForSKU(trackCtx, event.SKU)
	cancel()
	if err != nil {
		util.AlertWriteFailedTotal.WithLabelValues("tracker_lookup").Inc()
		return 0, fmt.Errorf("%w: tracker lookup: %v", ErrUnavailable, err)
	}

	alerts := make([]*models.Alert, 0, len(trackers)+1)
	for i := range trackers {
		tracker := &trackers[i]
		targetHit := event.Type == models.AlertTypePriceDrop &&
			tracker.TargetPrice.Valid &&
			event.CurrentValue.LessThanOrEqual(tracker.TargetPrice.Decimal)
		if !tracker.NotifyOnDrop && !targetHit {
			continue
		}
		userID := tracker.UserID
		alerts = append(alerts, &models.Alert{
			UserID:        &userID,
			SKU:           event.SKU,
			SellerID:      event.SellerID,
			AlertType:     event.Type,
			PreviousValue: event.PreviousValue,
			CurrentValue:  event.CurrentValue,
			ChangePct:     event.ChangePct,
			TargetHit:     targetHit,
			ObservedAt:    event.ObservedAt,
		})
	}
	if len(alerts) == 0 {
		alerts = append(alerts, &models.Alert{
			SKU:           event.SKU,
			SellerID:      event.SellerID,
			AlertType:     event.Type,
			PreviousValue: event.PreviousValue,
			CurrentValue:  event.CurrentValue,
			ChangePct:     event.ChangePct,
			ObservedAt:    event.ObservedAt,
		})
	}

	recorded := 0
	for _, alert := range alerts {
		var inserted bool
		err := s.withRetry(ctx, func(opCtx context.Context) error {
			var err error
			inserted, err = s.store.InsertAlert(opCtx, alert)
			return err
		})
		if err != nil {
			// Surface the failure so the batch records it; the change
			// event must not vanish silently.
			util.AlertWriteFailedTotal.WithLabelValues("insert").Inc()
			s.logger.Error("Alert write failed after retries",
				zap.String("sku", event.SKU),
				zap.String("seller_id", event.SellerID),
				zap.String("type", event.Type),
				zap.Error(err))
			return recorded, fmt.Errorf("%w: alert write: %v", ErrUnavailable, err)
		}
		if !inserted {
			continue
		}
		recorded++
		util.AlertsRecordedTotal.Inc()
		s.publishAlert(ctx, alert)
	}

	s.logger.Info("Change event recorded",
		zap.String("sku", event.SKU),
		zap.String("seller_id", event.SellerID),
		zap.String("type", event.Type),
		zap.Float64("change_pct", event.ChangePct),
		zap.Int("alerts", recorded))
	return recorded, nil
}

func (s *IngestService) publishAlert(ctx context.Context, alert *models.Alert) {
	if s.publisher == nil {
		return
	}
	event := &models.AlertRaisedEvent{
		AlertID:       alert.ID,
		UserID:        alert.UserID,
		SKU:           alert.SKU,
		SellerID:      alert.SellerID,
		AlertType:     alert.AlertType,
		PreviousValue: alert.PreviousValue.InexactFloat64(),
		CurrentValue:  alert.CurrentValue.InexactFloat64(),
		ChangePct:     alert.ChangePct,
		TargetHit:     alert.TargetHit,
	}
	if err := s.publisher.PublishAlertRaised(ctx, event); err != nil {
		s.logger.Error("Failed to publish AlertRaised event",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
	}
}

func (s *IngestService) updateIndex(ctx context.Context, obs *models.Observation) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	applied, err := s.index.UpsertLatestState(opCtx, detector.StateFromObservation(obs))
	if err != nil {
		// The observation and its alerts are durable; a retry
		// re-evaluates against the stale baseline and its alert writes
		// land on the dedupe index.
		return fmt.Errorf("%w: index update: %v", ErrUnavailable, err)
	}
	if !applied {
		s.logger.Debug("Index already beyond observation",
			zap.String("sku", obs.SKU),
			zap.String("seller_id", obs.SellerID),
			zap.Time("observed_at", obs.ObservedAt))
	}
	return nil
}

// SyncLatestStateToRedis rebuilds the latest-state index by replaying
// the most recent observation per key from the store.
func (s *IngestService) SyncLatestStateToRedis(ctx context.Context) error {
	s.logger.Info("Starting latest-state index rebuild")

	states, err := s.store.LatestPerKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to replay latest states: %w", err)
	}

	for i := range states {
		if _, err := s.index.UpsertLatestState(ctx, &states[i]); err != nil {
			s.logger.Error("Failed to seed index entry",
				zap.String("sku", states[i].SKU),
				zap.String("seller_id", states[i].SellerID),
				zap.Error(err))
		}
	}

	util.LatestStateRebuildTotal.Inc()
	s.logger.Info("Latest-state index rebuild completed", zap.Int("keys", len(states)))
	return nil
}

const retryAttempts = 3

// withRetry runs op with the storage timeout, retrying transient
// failures with doubling backoff.
func (s *IngestService) withRetry(ctx context.Context, op func(context.Context) error) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = op(opCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < retryAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}
