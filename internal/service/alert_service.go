package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/store"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

// AlertLedger is the mutation/read surface the query service needs from
// storage.
type AlertLedger interface {
	ListAlerts(ctx context.Context, f store.AlertFilter) ([]models.Alert, int, error)
	CountUnreadAlerts(ctx context.Context, userID *int64) (int, error)
	MarkAlertRead(ctx context.Context, id int64, userID *int64) error
	MarkAllAlertsRead(ctx context.Context, userID *int64) (int64, error)
}

// AlertService serves alert listings and acknowledgment operations.
// Every operation is scoped by the caller: a nil user id is the admin
// view over the whole ledger.
type AlertService struct {
	ledger      AlertLedger
	maxPageSize int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAlertService creates a new alert query service
func NewAlertService(ledger AlertLedger, cfg config.BusinessConfig) *AlertService {
	return &AlertService{
		ledger:      ledger,
		maxPageSize: cfg.MaxPageSize,
		timeout:     cfg.StorageTimeout,
		logger:      util.GetLogger(),
	}
}

// ListAlertsRequest carries validated-on-entry list parameters.
type ListAlertsRequest struct {
	UserID     *int64
	UnreadOnly bool
	Page       int
	PageSize   int
}

// ListAlertsResponse is one page of the ledger, newest first.
type ListAlertsResponse struct {
	Items    []models.Alert `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ListAlerts returns a page of alerts. Out-of-bounds pagination is
// rejected, never clamped.
func (s *AlertService) ListAlerts(ctx context.Context, req *ListAlertsRequest) (*ListAlertsResponse, error) {
	if req.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidArgument, req.Page)
	}
	if req.PageSize < 1 || req.PageSize > s.maxPageSize {
		return nil, fmt.Errorf("%w: page_size must be in [1, %d], got %d",
			ErrInvalidArgument, s.maxPageSize, req.PageSize)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, total, err := s.ledger.ListAlerts(opCtx, store.AlertFilter{
		UserID:     req.UserID,
		UnreadOnly: req.UnreadOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: alert listing: %v", ErrUnavailable, err)
	}

	return &ListAlertsResponse{
		Items:    items,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// UnreadCount returns the number of unacknowledged alerts in the
// caller's scope.
func (s *AlertService) UnreadCount(ctx context.Context, userID *int64) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.ledger.CountUnreadAlerts(opCtx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: unread count: %v", ErrUnavailable, err)
	}
	return count, nil
}

// MarkRead acknowledges one alert. Idempotent: re-marking a read alert
// succeeds without changing state. A missing id is NotFound.
func (s *AlertService) MarkRead(ctx context.Context, id int64, userID *int64) error {
	ctx, span := util.StartSpan(ctx, "AlertService.MarkRead")
	defer span.End()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.ledger.MarkAlertRead(opCtx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: alert %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: mark read: %v", ErrUnavailable, err)
	}

	util.AlertsMarkedReadTotal.Inc()
	return nil
}

// MarkAllRead acknowledges every alert unread at the moment the call
// starts. The snapshot is taken by the ledger's own clock, so alerts
// recorded while the update runs stay unread regardless of app clock
// skew.
func (s *AlertService) MarkAllRead(ctx context.Context, userID *int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.MarkAllRead")
	defer span.End()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	marked, err := s.ledger.MarkAllAlertsRead(opCtx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark all read: %v", ErrUnavailable, err)
	}

	util.AlertsMarkedReadTotal.Add(float64(marked))
	s.logger.Info("Marked all alerts read", zap.Int64("marked", marked))
	return marked, nil
}
