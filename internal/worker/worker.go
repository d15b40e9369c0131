package worker

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/aghaPathan/noon-e-commerce/internal/broker"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/service"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

// IngestWorker consumes scraped observations from Kafka and drives the
// ingest pipeline. Messages are keyed by (sku, seller), so one key's
// observations arrive in order within a partition.
type IngestWorker struct {
	consumer *broker.Consumer
	ingest   *service.IngestService
	logger   *zap.Logger
}

// NewIngestWorker creates a new ingest worker
func NewIngestWorker(consumer *broker.Consumer, ingest *service.IngestService) *IngestWorker {
	return &IngestWorker{
		consumer: consumer,
		ingest:   ingest,
		logger:   util.NamedLogger("ingest-worker"),
	}
}

// Start starts the worker
func (w *IngestWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ingest worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *IngestWorker) Stop() error {
	w.logger.Info("Stopping ingest worker")
	return w.consumer.Close()
}

func (w *IngestWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	rec, err := broker.DecodeObservationScraped(msg)
	if err != nil {
		// Undecodable payloads are committed, not replayed; they can
		// never succeed.
		w.logger.Error("Dropping undecodable observation message",
			zap.String("key", string(msg.Key)),
			zap.Error(err))
		return nil
	}

	result, err := w.ingest.Ingest(ctx, rec)
	if errors.Is(err, service.ErrValidation) {
		// Same: the producer must fix and resubmit.
		w.logger.Warn("Dropping invalid observation",
			zap.String("sku", rec.SKU),
			zap.String("seller_id", rec.SellerID),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if result.Status == models.AppendStale {
		w.logger.Debug("Observation superseded",
			zap.String("sku", rec.SKU),
			zap.String("seller_id", rec.SellerID))
	}
	return nil
}
