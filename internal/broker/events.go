package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishAlertRaised publishes an AlertRaised event to the notifications
// topic, keyed by (sku, seller).
func (ep *EventPublisher) PublishAlertRaised(ctx context.Context, event *models.AlertRaisedEvent) error {
	if event.EventID == "" {
		event.BaseEvent = models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAlertRaised,
			Timestamp: time.Now().UTC(),
		}
	}
	key := fmt.Sprintf("%s|%s", event.SKU, event.SellerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishObservation publishes a scraped observation to the observations
// topic. Used by the scrape job's loader; the ingest worker consumes it.
func (ep *EventPublisher) PublishObservation(ctx context.Context, rec *models.ObservationRecord) error {
	event := &models.ObservationScrapedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeObservationScraped,
			Timestamp: time.Now().UTC(),
		},
		Record: *rec,
	}
	key := fmt.Sprintf("%s|%s", rec.SKU, rec.SellerID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// DecodeObservationScraped unmarshals an observation message, tolerating
// both the enveloped event and a bare ingestion record.
func DecodeObservationScraped(msg kafka.Message) (*models.ObservationRecord, error) {
	var event models.ObservationScrapedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observation event: %w", err)
	}
	if event.Record.SKU != "" {
		return &event.Record, nil
	}

	var rec models.ObservationRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal observation record: %w", err)
	}
	return &rec, nil
}
