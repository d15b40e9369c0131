package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

// StatsStore is the read-side storage surface for aggregations.
type StatsStore interface {
	DailyStats(ctx context.Context, sku string, from, to time.Time) ([]models.DailyStat, error)
	RangeQuery(ctx context.Context, sku, sellerID string, from, to, after time.Time, limit int) ([]models.Observation, error)
	GetCompetitorPrices(ctx context.Context, sku string) ([]models.CompetitorPrice, error)
}

// StatsCache holds short-lived serialized rollups.
type StatsCache interface {
	GetStatsCache(ctx context.Context, key string) ([]byte, error)
	SetStatsCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// StatsService serves price-history reads and daily rollups. Rollups are
// computed lazily from the observation store and cached briefly; results
// always reflect every observation up to the requested bound at compute
// time.
type StatsService struct {
	store    StatsStore
	cache    StatsCache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(store StatsStore, cache StatsCache, cfg config.BusinessConfig) *StatsService {
	return &StatsService{
		store:    store,
		cache:    cache,
		cacheTTL: cfg.StatsCacheTTL,
		timeout:  cfg.StorageTimeout,
		logger:   util.GetLogger(),
	}
}

// DailyStats returns one row per day with at least one observation for
// the SKU in [from, to]; empty days are omitted.
func (s *StatsService) DailyStats(ctx context.Context, sku string, from, to time.Time) ([]models.DailyStat, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: missing sku", ErrValidation)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to precedes from", ErrInvalidArgument)
	}

	cacheKey := fmt.Sprintf("daily:%s:%d:%d", sku, from.Unix(), to.Unix())
	if s.cache != nil {
		if raw, err := s.cache.GetStatsCache(ctx, cacheKey); err == nil && raw != nil {
			var stats []models.DailyStat
			if err := json.Unmarshal(raw, &stats); err == nil {
				return stats, nil
			}
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.store.DailyStats(opCtx, sku, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: daily stats: %v", ErrUnavailable, err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.SetStatsCache(ctx, cacheKey, raw, s.cacheTTL); err != nil {
				s.logger.Debug("Stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// PriceHistoryResponse is a page of raw observations with a summary over
// the returned page.
type PriceHistoryResponse struct {
	SKU      string               `json:"sku"`
	History  []models.Observation `json:"history"`
	MinPrice *decimal.Decimal     `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal     `json:"max_price,omitempty"`
	AvgPrice *decimal.Decimal     `json:"avg_price,omitempty"`
	// NextAfter restarts the range query where this page ended.
	NextAfter *time.Time `json:"next_after,omitempty"`
}

// PriceHistory range-queries the observation store. A range that has
// been fully expired by retention comes back empty, not as an error.
func (s *StatsService) PriceHistory(ctx context.Context, sku, sellerID string, from, to, after time.Time, limit int) (*PriceHistoryResponse, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: missing sku", ErrValidation)
	}
	if limit < 1 || limit > 1000 {
		return nil, fmt.Errorf("%w: limit must be in [1, 1000], got %d", ErrInvalidArgument, limit)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to precedes from", ErrInvalidArgument)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	history, err := s.store.RangeQuery(opCtx, sku, sellerID, from, to, after, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: range query: %v", ErrUnavailable, err)
	}

	resp := &PriceHistoryResponse{SKU: sku, History: history}
	if len(history) > 0 {
		min, max, sum := history[0].Price, history[0].Price, decimal.Zero
		for _, obs := range history {
			if obs.Price.LessThan(min) {
				min = obs.Price
			}
			if obs.Price.GreaterThan(max) {
				max = obs.Price
			}
			sum = sum.Add(obs.Price)
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(history)))).Round(2)
		resp.MinPrice = &min
		resp.MaxPrice = &max
		resp.AvgPrice = &avg

		if len(history) == limit {
			last := history[len(history)-1].ObservedAt
			resp.NextAfter = &last
		}
	}
	return resp, nil
}

// CompetitorsResponse lists the latest price per seller for one SKU.
type CompetitorsResponse struct {
	SKU          string                   `json:"sku"`
	Competitors  []models.CompetitorPrice `json:"competitors"`
	LowestPrice  *decimal.Decimal         `json:"lowest_price,omitempty"`
	HighestPrice *decimal.Decimal         `json:"highest_price,omitempty"`
	SellerCount  int                      `json:"seller_count"`
}

// Competitors returns the cheapest-first latest observation per seller.
func (s *StatsService) Competitors(ctx context.Context, sku string) (*CompetitorsResponse, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: missing sku", ErrValidation)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	competitors, err := s.store.GetCompetitorPrices(opCtx, sku)
	if err != nil {
		return nil, fmt.Errorf("%w: competitor prices: %v", ErrUnavailable, err)
	}

	resp := &CompetitorsResponse{
		SKU:         sku,
		Competitors: competitors,
		SellerCount: len(competitors),
	}
	if len(competitors) > 0 {
		low, high := competitors[0].Price, competitors[0].Price
		for _, c := range competitors {
			if c.Price.LessThan(low) {
				low = c.Price
			}
			if c.Price.GreaterThan(high) {
				high = c.Price
			}
		}
		resp.LowestPrice = &low
		resp.HighestPrice = &high
	}
	return resp, nil
}
