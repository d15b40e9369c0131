package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

func obs(price float64, inStock bool) *models.Observation {
	return &models.Observation{
		SKU:        "N12345678",
		SellerID:   "noon",
		Price:      decimal.NewFromFloat(price),
		Currency:   "SAR",
		InStock:    inStock,
		ObservedAt: time.Date(2026, 2, 2, 3, 0, 0, 0, time.UTC),
	}
}

func prior(price float64, inStock bool) *models.LatestState {
	return &models.LatestState{
		SKU:        "N12345678",
		SellerID:   "noon",
		Price:      decimal.NewFromFloat(price),
		InStock:    inStock,
		ObservedAt: time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateFirstObservationSeedsOnly(t *testing.T) {
	d := New(DefaultEpsilonPct)
	assert.Nil(t, d.Evaluate(obs(100, true), nil))
}

func TestEvaluatePriceDrop(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(90, true), prior(100, true))
	require.NotNil(t, event)

	assert.Equal(t, models.AlertTypePriceDrop, event.Type)
	assert.True(t, event.PreviousValue.Equal(decimal.NewFromInt(100)))
	assert.True(t, event.CurrentValue.Equal(decimal.NewFromInt(90)))
	assert.InDelta(t, -10.0, event.ChangePct, 1e-9)
	assert.Equal(t, "N12345678", event.SKU)
	assert.Equal(t, "noon", event.SellerID)
}

func TestEvaluatePriceIncrease(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(110, true), prior(100, true))
	require.NotNil(t, event)

	assert.Equal(t, models.AlertTypePriceIncrease, event.Type)
	assert.InDelta(t, 10.0, event.ChangePct, 1e-9)
}

func TestEvaluateStockChangeOnly(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(100, false), prior(100, true))
	require.NotNil(t, event)

	assert.Equal(t, models.AlertTypeStockChange, event.Type)
	assert.True(t, event.PreviousValue.Equal(event.CurrentValue))
	assert.Zero(t, event.ChangePct)
}

func TestEvaluateNoiseBelowEpsilonIsNoOp(t *testing.T) {
	d := New(DefaultEpsilonPct)

	// 0.005% movement with unchanged stock is scrape noise.
	assert.Nil(t, d.Evaluate(obs(100.005, true), prior(100, true)))
}

func TestEvaluateEpsilonBoundaryQualifies(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(100.01, true), prior(100, true))
	require.NotNil(t, event)
	assert.Equal(t, models.AlertTypePriceIncrease, event.Type)
}

func TestEvaluatePriceChangeWinsOverStockFlip(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(90, false), prior(100, true))
	require.NotNil(t, event)

	assert.Equal(t, models.AlertTypePriceDrop, event.Type)
}

func TestEvaluateStockFlipBelowEpsilonStillFires(t *testing.T) {
	d := New(DefaultEpsilonPct)

	event := d.Evaluate(obs(100.001, false), prior(100, true))
	require.NotNil(t, event)

	assert.Equal(t, models.AlertTypeStockChange, event.Type)
}

func TestEvaluateCustomEpsilon(t *testing.T) {
	d := New(5.0)

	assert.Nil(t, d.Evaluate(obs(96, true), prior(100, true)))

	event := d.Evaluate(obs(94, true), prior(100, true))
	require.NotNil(t, event)
	assert.Equal(t, models.AlertTypePriceDrop, event.Type)
}

func TestStateFromObservation(t *testing.T) {
	o := obs(249.99, true)
	o.OriginalPrice = decimal.NewNullDecimal(decimal.NewFromInt(300))

	state := StateFromObservation(o)

	assert.Equal(t, o.SKU, state.SKU)
	assert.Equal(t, o.SellerID, state.SellerID)
	assert.True(t, state.Price.Equal(o.Price))
	assert.True(t, state.OriginalPrice.Decimal.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, o.InStock, state.InStock)
	assert.Equal(t, o.ObservedAt, state.ObservedAt)
}
