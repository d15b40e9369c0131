package models

import "time"

// Event types
const (
	EventTypeObservationScraped = "OBSERVATION_SCRAPED"
	EventTypeAlertRaised        = "ALERT_RAISED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ObservationRecord is the ingestion wire format produced by the scrape
// job. Prices arrive as JSON numbers, in_stock as 0|1 and scraped_at as
// an ISO-8601 timestamp; the ingest service validates and converts it to
// an Observation.
type ObservationRecord struct {
	SKU           string   `json:"sku"`
	SellerID      string   `json:"seller_id"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	DiscountPct   *float64 `json:"discount_pct,omitempty"`
	Currency      string   `json:"currency"`
	InStock       int      `json:"in_stock"`
	ScrapedAt     string   `json:"scraped_at"`
}

// ObservationScrapedEvent carries one scraped observation. Messages are
// keyed by "sku|seller_id" so a partition sees a key's observations in
// order.
type ObservationScrapedEvent struct {
	BaseEvent
	Record ObservationRecord `json:"record"`
}

// AlertRaisedEvent published when an alert has been durably recorded,
// consumed by external notification channels.
type AlertRaisedEvent struct {
	BaseEvent
	AlertID       int64   `json:"alert_id"`
	UserID        *int64  `json:"user_id,omitempty"`
	SKU           string  `json:"sku"`
	SellerID      string  `json:"seller_id"`
	AlertType     string  `json:"alert_type"`
	PreviousValue float64 `json:"previous_value"`
	CurrentValue  float64 `json:"current_value"`
	ChangePct     float64 `json:"change_pct"`
	TargetHit     bool    `json:"target_hit"`
}
