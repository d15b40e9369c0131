package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aghaPathan/noon-e-commerce/config"
	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/service"
	"github.com/aghaPathan/noon-e-commerce/internal/store"
)

// fakeLedger serves canned alerts and records the scope each call saw.
type fakeLedger struct {
	lastScope  *int64
	scopeSeen  bool
	markAllHit bool
}

func (f *fakeLedger) ListAlerts(_ context.Context, filter store.AlertFilter) ([]models.Alert, int, error) {
	f.lastScope, f.scopeSeen = filter.UserID, true
	return []models.Alert{}, 0, nil
}

func (f *fakeLedger) CountUnreadAlerts(_ context.Context, userID *int64) (int, error) {
	f.lastScope, f.scopeSeen = userID, true
	return 0, nil
}

func (f *fakeLedger) MarkAlertRead(_ context.Context, _ int64, userID *int64) error {
	f.lastScope, f.scopeSeen = userID, true
	return nil
}

func (f *fakeLedger) MarkAllAlertsRead(_ context.Context, userID *int64) (int64, error) {
	f.lastScope, f.scopeSeen = userID, true
	f.markAllHit = true
	return 0, nil
}

func newTestRouter(ledger *fakeLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	alerts := service.NewAlertService(ledger, config.BusinessConfig{
		MaxPageSize:    200,
		StorageTimeout: 2 * time.Second,
	})
	router := gin.New()
	NewHandler(nil, alerts, nil, nil).SetupRoutes(router)
	return router
}

func TestAlertRoutesRejectIdentitylessCallers(t *testing.T) {
	ledger := &fakeLedger{}
	router := newTestRouter(ledger)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/alerts"},
		{http.MethodGet, "/api/v1/alerts/unread-count"},
		{http.MethodPost, "/api/v1/alerts/1/read"},
		{http.MethodPost, "/api/v1/alerts/mark-all-read"},
	}

	for _, tt := range requests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	assert.False(t, ledger.scopeSeen, "no ledger call without an identity")
	assert.False(t, ledger.markAllHit)
}

func TestAlertRoutesScopeByUserHeader(t *testing.T) {
	ledger := &fakeLedger{}
	router := newTestRouter(ledger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("X-User-ID", "7")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ledger.lastScope)
	assert.Equal(t, int64(7), *ledger.lastScope)
}

func TestAlertRoutesAdminGetsLedgerWideScope(t *testing.T) {
	ledger := &fakeLedger{}
	router := newTestRouter(ledger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/mark-all-read", nil)
	req.Header.Set("X-User-Role", "admin")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ledger.markAllHit)
	assert.Nil(t, ledger.lastScope)
}

func TestBadUserHeaderIsRejectedNotWidened(t *testing.T) {
	ledger := &fakeLedger{}
	router := newTestRouter(ledger)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/unread-count", nil)
	req.Header.Set("X-User-ID", "not-a-number")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ledger.scopeSeen)
}
