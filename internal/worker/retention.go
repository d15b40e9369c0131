package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/redisclient"
	"github.com/aghaPathan/noon-e-commerce/internal/store"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

const retentionLockTTL = 10 * time.Minute

// RetentionWorker periodically purges observations and alerts past their
// retention horizon. A Redis lock keeps the purge single-flight when
// several instances run.
type RetentionWorker struct {
	store  *store.Store
	redis  *redisclient.Client
	cfg    config.BusinessConfig
	logger *zap.Logger
}

// NewRetentionWorker creates a new retention worker
func NewRetentionWorker(store *store.Store, redis *redisclient.Client, cfg config.BusinessConfig) *RetentionWorker {
	return &RetentionWorker{
		store:  store,
		redis:  redis,
		cfg:    cfg,
		logger: util.NamedLogger("retention"),
	}
}

// Start runs the purge loop until the context is cancelled.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info("Starting retention worker",
		zap.Duration("interval", w.cfg.RetentionInterval),
		zap.Duration("observation_retention", w.cfg.ObservationRetention),
		zap.Duration("alert_retention", w.cfg.AlertRetention))

	ticker := time.NewTicker(w.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Retention worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	if w.redis != nil {
		acquired, err := w.redis.AcquireLock(ctx, "retention", retentionLockTTL)
		if err != nil {
			w.logger.Warn("Retention lock unavailable, skipping run", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := w.redis.ReleaseLock(ctx, "retention"); err != nil {
				w.logger.Warn("Failed to release retention lock", zap.Error(err))
			}
		}()
	}

	now := time.Now().UTC()

	opCtx, cancel := context.WithTimeout(ctx, w.cfg.StorageTimeout)
	purged, err := w.store.PurgeObservationsBefore(opCtx, now.Add(-w.cfg.ObservationRetention))
	cancel()
	if err != nil {
		w.logger.Error("Observation purge failed", zap.Error(err))
	} else if purged > 0 {
		util.RetentionPurgedTotal.WithLabelValues("observations").Add(float64(purged))
		w.logger.Info("Purged expired observations", zap.Int64("rows", purged))
	}

	opCtx, cancel = context.WithTimeout(ctx, w.cfg.StorageTimeout)
	purged, err = w.store.PurgeAlertsBefore(opCtx, now.Add(-w.cfg.AlertRetention))
	cancel()
	if err != nil {
		w.logger.Error("Alert purge failed", zap.Error(err))
	} else if purged > 0 {
		util.RetentionPurgedTotal.WithLabelValues("price_alerts").Add(float64(purged))
		w.logger.Info("Purged expired alerts", zap.Int64("rows", purged))
	}
}
