package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one scraped price/stock fact for a (SKU, seller) pair.
// Observations are append-only and uniquely identified by
// (sku, seller_id, observed_at); a duplicate at the same instant is
// resolved last-write-wins.
type Observation struct {
	ID            int64               `db:"id" json:"id"`
	SKU           string              `db:"sku" json:"sku"`
	SellerID      string              `db:"seller_id" json:"seller_id"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	OriginalPrice decimal.NullDecimal `db:"original_price" json:"original_price,omitempty"`
	DiscountPct   decimal.NullDecimal `db:"discount_pct" json:"discount_pct,omitempty"`
	Currency      string              `db:"currency" json:"currency"`
	InStock       bool                `db:"in_stock" json:"in_stock"`
	ObservedAt    time.Time           `db:"observed_at" json:"observed_at"`
}

// LatestState is the most recent observation per (SKU, seller), used as
// the comparison baseline by the change detector. It is a derived view:
// on loss it is rebuilt by replaying the observation store.
type LatestState struct {
	SKU           string              `db:"sku" json:"sku"`
	SellerID      string              `db:"seller_id" json:"seller_id"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	OriginalPrice decimal.NullDecimal `db:"original_price" json:"original_price,omitempty"`
	DiscountPct   decimal.NullDecimal `db:"discount_pct" json:"discount_pct,omitempty"`
	InStock       bool                `db:"in_stock" json:"in_stock"`
	ObservedAt    time.Time           `db:"observed_at" json:"observed_at"`
}

// Alert types
const (
	AlertTypePriceDrop     = "price_drop"
	AlertTypePriceIncrease = "price_increase"
	AlertTypeStockChange   = "stock_change"
)

// ChangeEvent is a detected transition between the prior latest state and
// a newly accepted observation. Exactly one is produced per qualifying
// transition; persistence happens in the alert ledger.
type ChangeEvent struct {
	SKU           string          `json:"sku"`
	SellerID      string          `json:"seller_id"`
	Type          string          `json:"type"`
	PreviousValue decimal.Decimal `json:"previous_value"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	ChangePct     float64         `json:"change_pct"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// Alert is a persisted ChangeEvent with per-user read state. UserID is
// nil for the unscoped ledger row recorded when no user tracks the SKU.
// ObservedAt is the triggering observation's timestamp; together with
// (user_id, sku, seller_id) it dedupes the row, so replaying an
// observation cannot double-record its alerts. Factual fields are
// immutable once written; only ReadAt may change.
type Alert struct {
	ID            int64           `db:"id" json:"id"`
	UserID        *int64          `db:"user_id" json:"user_id,omitempty"`
	SKU           string          `db:"sku" json:"sku"`
	SellerID      string          `db:"seller_id" json:"seller_id"`
	AlertType     string          `db:"alert_type" json:"alert_type"`
	PreviousValue decimal.Decimal `db:"previous_value" json:"previous_value"`
	CurrentValue  decimal.Decimal `db:"current_value" json:"current_value"`
	ChangePct     float64         `db:"change_pct" json:"change_pct"`
	TargetHit     bool            `db:"target_hit" json:"target_hit"`
	ObservedAt    time.Time       `db:"observed_at" json:"observed_at"`
	ReadAt        *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Acknowledged reports whether the alert has been marked read.
func (a *Alert) Acknowledged() bool {
	return a.ReadAt != nil
}

// TrackedItem is a user's watchlist entry for a SKU. Owned by the
// user/session store; read here to scope alert fan-out and queries.
type TrackedItem struct {
	UserID       int64               `db:"user_id" json:"user_id"`
	SKU          string              `db:"sku" json:"sku"`
	TargetPrice  decimal.NullDecimal `db:"target_price" json:"target_price,omitempty"`
	NotifyOnDrop bool                `db:"notify_on_drop" json:"notify_on_drop"`
}

// DailyStat is one day's price rollup for a SKU across sellers.
type DailyStat struct {
	Day         time.Time       `db:"day" json:"date"`
	MinPrice    decimal.Decimal `db:"min_price" json:"min_price"`
	MaxPrice    decimal.Decimal `db:"max_price" json:"max_price"`
	AvgPrice    decimal.Decimal `db:"avg_price" json:"avg_price"`
	SellerCount int             `db:"seller_count" json:"seller_count"`
}

// CompetitorPrice is the latest observation per seller for one SKU.
type CompetitorPrice struct {
	SellerID      string              `db:"seller_id" json:"seller_id"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	OriginalPrice decimal.NullDecimal `db:"original_price" json:"original_price,omitempty"`
	DiscountPct   decimal.NullDecimal `db:"discount_pct" json:"discount_pct,omitempty"`
	InStock       bool                `db:"in_stock" json:"in_stock"`
	ObservedAt    time.Time           `db:"observed_at" json:"observed_at"`
}

// Append outcomes for the observation store.
const (
	AppendAccepted  = "ACCEPTED"
	AppendDuplicate = "DUPLICATE"
	AppendStale     = "STALE"
)
