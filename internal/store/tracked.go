package store

import (
	"context"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// Tracked items are owned by the user/watchlist service; this store only
// reads them to decide alert fan-out and query scoping.

// GetTrackersForSKU returns every user tracking a SKU.
func (s *Store) GetTrackersForSKU(ctx context.Context, sku string) ([]models.TrackedItem, error) {
	var items []models.TrackedItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT user_id, sku, target_price, notify_on_drop
		FROM tracked_items
		WHERE sku = $1`, sku)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.TrackedItem{}
	}
	return items, nil
}
