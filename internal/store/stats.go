package store

import (
	"context"
	"time"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// DailyStats groups a SKU's observations by UTC day and reduces with
// min/max/avg and distinct-seller count. Truncation pins the bucket
// boundary to UTC rather than the session timezone, so results do not
// shift between deployments. Days with no observations are omitted; an
// expired or empty range yields an empty slice, not an error.
func (s *Store) DailyStats(ctx context.Context, sku string, from, to time.Time) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := s.db.SelectContext(ctx, &stats, `
		SELECT
			date_trunc('day', observed_at AT TIME ZONE 'UTC') AS day,
			MIN(price) AS min_price,
			MAX(price) AS max_price,
			ROUND(AVG(price), 2) AS avg_price,
			COUNT(DISTINCT seller_id) AS seller_count
		FROM observations
		WHERE sku = $1 AND observed_at >= $2 AND observed_at <= $3
		GROUP BY day
		ORDER BY day ASC`, sku, from, to)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []models.DailyStat{}
	}
	return stats, nil
}
