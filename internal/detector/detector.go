package detector

import (
	"github.com/shopspring/decimal"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// DefaultEpsilonPct is the minimum absolute price change percentage that
// counts as a real change; anything below it with unchanged stock is
// scrape noise.
const DefaultEpsilonPct = 0.01

// Detector classifies an accepted observation against the prior latest
// state for its (sku, seller) key. It is pure: the caller owns the
// critical section that makes evaluate-then-update atomic per key.
type Detector struct {
	epsilonPct decimal.Decimal
}

// New creates a detector with the given epsilon threshold percentage.
// Non-positive values fall back to the default.
func New(epsilonPct float64) *Detector {
	if epsilonPct <= 0 {
		epsilonPct = DefaultEpsilonPct
	}
	return &Detector{epsilonPct: decimal.NewFromFloat(epsilonPct)}
}

// Evaluate returns the change event for an observation, or nil when no
// reportable change occurred.
//
// The first observation for a key only seeds the index, so prior == nil
// yields nil. When price and stock change in the same observation the
// price classification wins; the stock flip is still visible through the
// observation itself.
func (d *Detector) Evaluate(obs *models.Observation, prior *models.LatestState) *models.ChangeEvent {
	if prior == nil {
		return nil
	}

	changePct := decimal.Zero
	if prior.Price.IsPositive() {
		changePct = obs.Price.Sub(prior.Price).
			Div(prior.Price).
			Mul(decimal.NewFromInt(100))
	}

	// Threshold check happens before rounding so sub-epsilon noise
	// cannot round itself over the line.
	priceChanged := changePct.Abs().GreaterThanOrEqual(d.epsilonPct)
	stockChanged := obs.InStock != prior.InStock

	if !priceChanged && !stockChanged {
		return nil
	}

	event := &models.ChangeEvent{
		SKU:           obs.SKU,
		SellerID:      obs.SellerID,
		PreviousValue: prior.Price,
		CurrentValue:  obs.Price,
		ChangePct:     changePct.Round(2).InexactFloat64(),
		ObservedAt:    obs.ObservedAt,
	}

	switch {
	case priceChanged && obs.Price.LessThan(prior.Price):
		event.Type = models.AlertTypePriceDrop
	case priceChanged:
		event.Type = models.AlertTypePriceIncrease
	default:
		event.Type = models.AlertTypeStockChange
	}
	return event
}

// StateFromObservation derives the latest-state entry an accepted
// observation produces.
func StateFromObservation(obs *models.Observation) *models.LatestState {
	return &models.LatestState{
		SKU:           obs.SKU,
		SellerID:      obs.SellerID,
		Price:         obs.Price,
		OriginalPrice: obs.OriginalPrice,
		DiscountPct:   obs.DiscountPct,
		InStock:       obs.InStock,
		ObservedAt:    obs.ObservedAt,
	}
}
