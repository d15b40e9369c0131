package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/store"
)

// fakeLedger is an in-memory AlertLedger.
type fakeLedger struct {
	mu     sync.Mutex
	alerts []*models.Alert
	calls  int
}

func (f *fakeLedger) add(alert models.Alert) *models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert.ID = int64(len(f.alerts) + 1)
	cp := alert
	f.alerts = append(f.alerts, &cp)
	return &cp
}

func (f *fakeLedger) matches(alert *models.Alert, userID *int64) bool {
	return userID == nil || (alert.UserID != nil && *alert.UserID == *userID)
}

func (f *fakeLedger) ListAlerts(_ context.Context, filter store.AlertFilter) ([]models.Alert, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var scoped []models.Alert
	for i := len(f.alerts) - 1; i >= 0; i-- {
		alert := f.alerts[i]
		if !f.matches(alert, filter.UserID) {
			continue
		}
		if filter.UnreadOnly && alert.ReadAt != nil {
			continue
		}
		scoped = append(scoped, *alert)
	}

	total := len(scoped)
	offset := (filter.Page - 1) * filter.PageSize
	if offset >= total {
		return nil, total, nil
	}
	end := offset + filter.PageSize
	if end > total {
		end = total
	}
	return scoped[offset:end], total, nil
}

func (f *fakeLedger) CountUnreadAlerts(_ context.Context, userID *int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, alert := range f.alerts {
		if f.matches(alert, userID) && alert.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) MarkAlertRead(_ context.Context, id int64, userID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, alert := range f.alerts {
		if alert.ID != id || !f.matches(alert, userID) {
			continue
		}
		if alert.ReadAt == nil {
			now := time.Now().UTC()
			alert.ReadAt = &now
		}
		return nil
	}
	return sql.ErrNoRows
}

// MarkAllAlertsRead snapshots its own clock, the way the SQL statement
// pins the bound to the database's now().
func (f *fakeLedger) MarkAllAlertsRead(_ context.Context, userID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := time.Now().UTC()
	var marked int64
	for _, alert := range f.alerts {
		if !f.matches(alert, userID) || alert.ReadAt != nil {
			continue
		}
		if alert.CreatedAt.After(snapshot) {
			continue
		}
		at := snapshot
		alert.ReadAt = &at
		marked++
	}
	return marked, nil
}

func alertSvc(ledger *fakeLedger) *AlertService {
	return NewAlertService(ledger, config.BusinessConfig{
		MaxPageSize:    200,
		StorageTimeout: 2 * time.Second,
	})
}

func userPtr(id int64) *int64 { return &id }

func seedLedger() *fakeLedger {
	ledger := &fakeLedger{}
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ledger.add(models.Alert{
			UserID:    userPtr(1),
			SKU:       "N1",
			SellerID:  "noon",
			AlertType: models.AlertTypePriceDrop,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	ledger.add(models.Alert{
		UserID:    userPtr(2),
		SKU:       "N2",
		SellerID:  "noon",
		AlertType: models.AlertTypeStockChange,
		CreatedAt: base.Add(10 * time.Hour),
	})
	return ledger
}

func TestListAlertsRejectsBadPagination(t *testing.T) {
	ledger := seedLedger()
	svc := alertSvc(ledger)
	ctx := context.Background()

	tests := []struct {
		name     string
		page     int
		pageSize int
	}{
		{"zero page", 0, 50},
		{"negative page", -1, 50},
		{"zero page size", 1, 0},
		{"page size over limit", 1, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ListAlerts(ctx, &ListAlertsRequest{Page: tt.page, PageSize: tt.pageSize})
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// Rejection happens before any storage round trip.
	assert.Zero(t, ledger.calls)
}

func TestListAlertsScopesAndPaginates(t *testing.T) {
	svc := alertSvc(seedLedger())
	ctx := context.Background()

	page, err := svc.ListAlerts(ctx, &ListAlertsRequest{UserID: userPtr(1), Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	// Newest first.
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))

	// A page past the end is empty, not an error.
	page, err = svc.ListAlerts(ctx, &ListAlertsRequest{UserID: userPtr(1), Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.Total)

	// Admin scope sees everything.
	page, err = svc.ListAlerts(ctx, &ListAlertsRequest{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ledger := seedLedger()
	svc := alertSvc(ledger)
	ctx := context.Background()

	require.NoError(t, svc.MarkRead(ctx, 1, userPtr(1)))

	firstReadAt := *ledger.alerts[0].ReadAt
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, svc.MarkRead(ctx, 1, userPtr(1)))
	assert.Equal(t, firstReadAt, *ledger.alerts[0].ReadAt, "second mark must not move read_at")

	count, err := svc.UnreadCount(ctx, userPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMarkReadMissingAlert(t *testing.T) {
	svc := alertSvc(seedLedger())
	err := svc.MarkRead(context.Background(), 999, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadOutsideCallerScope(t *testing.T) {
	svc := alertSvc(seedLedger())
	// Alert 1 belongs to user 1; user 2 cannot see it.
	err := svc.MarkRead(context.Background(), 1, userPtr(2))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkAllReadIsSnapshotBounded(t *testing.T) {
	ledger := seedLedger()
	svc := alertSvc(ledger)
	ctx := context.Background()

	marked, err := svc.MarkAllRead(ctx, userPtr(1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), marked)

	// An alert recorded after the snapshot stays unread.
	ledger.add(models.Alert{
		UserID:    userPtr(1),
		SKU:       "N1",
		SellerID:  "noon",
		AlertType: models.AlertTypePriceIncrease,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	})

	count, err := svc.UnreadCount(ctx, userPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// User 2's alert was out of scope.
	count, err = svc.UnreadCount(ctx, userPtr(2))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
