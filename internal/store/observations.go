package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// InsertObservation appends an observation. A row already present at the
// same (sku, seller_id, observed_at) is overwritten last-write-wins and
// reported as a duplicate. Ordering against the latest state is enforced
// by the ingest service before this is called.
func (s *Store) InsertObservation(ctx context.Context, obs *models.Observation) (string, error) {
	query := `
		INSERT INTO observations (sku, seller_id, price, original_price, discount_pct, currency, in_stock, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sku, seller_id, observed_at) DO UPDATE SET
			price = EXCLUDED.price,
			original_price = EXCLUDED.original_price,
			discount_pct = EXCLUDED.discount_pct,
			currency = EXCLUDED.currency,
			in_stock = EXCLUDED.in_stock
		RETURNING id, (xmax = 0) AS inserted`

	var row struct {
		ID       int64 `db:"id"`
		Inserted bool  `db:"inserted"`
	}
	err := s.db.GetContext(ctx, &row, query,
		obs.SKU, obs.SellerID, obs.Price, obs.OriginalPrice, obs.DiscountPct,
		obs.Currency, obs.InStock, obs.ObservedAt)
	if err != nil {
		return "", err
	}

	obs.ID = row.ID
	if !row.Inserted {
		return models.AppendDuplicate, nil
	}
	return models.AppendAccepted, nil
}

// observationColumns enumerates the selected columns so rows scan into
// models.Observation regardless of what else the table carries.
const observationColumns = "id, sku, seller_id, price, original_price, discount_pct, currency, in_stock, observed_at"

// RangeQuery returns observations for a SKU ordered by observed_at
// ascending. sellerID narrows to one seller when non-empty. The cursor is
// stateless: pass the last returned observed_at as after to resume.
func (s *Store) RangeQuery(ctx context.Context, sku, sellerID string, from, to, after time.Time, limit int) ([]models.Observation, error) {
	if after.IsZero() {
		// Exclusive cursor just below the inclusive lower bound.
		after = from.Add(-time.Millisecond)
	}

	var obs []models.Observation
	var err error
	if sellerID != "" {
		err = s.db.SelectContext(ctx, &obs, `
			SELECT `+observationColumns+` FROM observations
			WHERE sku = $1 AND seller_id = $2 AND observed_at > $3 AND observed_at >= $4 AND observed_at <= $5
			ORDER BY observed_at ASC, seller_id ASC
			LIMIT $6`,
			sku, sellerID, after, from, to, limit)
	} else {
		err = s.db.SelectContext(ctx, &obs, `
			SELECT `+observationColumns+` FROM observations
			WHERE sku = $1 AND observed_at > $2 AND observed_at >= $3 AND observed_at <= $4
			ORDER BY observed_at ASC, seller_id ASC
			LIMIT $5`,
			sku, after, from, to, limit)
	}
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = []models.Observation{}
	}
	return obs, nil
}

// LatestPerKey replays the most recent observation per (sku, seller_id),
// used to rebuild the latest-state index after a cold start.
func (s *Store) LatestPerKey(ctx context.Context) ([]models.LatestState, error) {
	var states []models.LatestState
	err := s.db.SelectContext(ctx, &states, `
		SELECT DISTINCT ON (sku, seller_id)
			sku, seller_id, price, original_price, discount_pct, in_stock, observed_at
		FROM observations
		ORDER BY sku, seller_id, observed_at DESC`)
	return states, err
}

// GetLatestForKey returns the most recent observation for one key, or
// nil when the key has never been observed. Used as the fallback when
// the index has no entry.
func (s *Store) GetLatestForKey(ctx context.Context, sku, sellerID string) (*models.LatestState, error) {
	var state models.LatestState
	err := s.db.GetContext(ctx, &state, `
		SELECT sku, seller_id, price, original_price, discount_pct, in_stock, observed_at
		FROM observations
		WHERE sku = $1 AND seller_id = $2
		ORDER BY observed_at DESC
		LIMIT 1`, sku, sellerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetCompetitorPrices returns the latest observation per seller for a
// SKU, cheapest first.
func (s *Store) GetCompetitorPrices(ctx context.Context, sku string) ([]models.CompetitorPrice, error) {
	var prices []models.CompetitorPrice
	err := s.db.SelectContext(ctx, &prices, `
		SELECT * FROM (
			SELECT DISTINCT ON (seller_id)
				seller_id, price, original_price, discount_pct, in_stock, observed_at
			FROM observations
			WHERE sku = $1
			ORDER BY seller_id, observed_at DESC
		) latest
		ORDER BY price ASC`, sku)
	if err != nil {
		return nil, err
	}
	if prices == nil {
		prices = []models.CompetitorPrice{}
	}
	return prices, nil
}

// PurgeObservationsBefore deletes observations older than the cutoff and
// returns the number of rows removed.
func (s *Store) PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM observations WHERE observed_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
