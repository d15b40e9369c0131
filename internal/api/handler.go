package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
	"github.com/aghaPathan/noon-e-commerce/internal/service"
	"github.com/aghaPathan/noon-e-commerce/internal/util"
)

// ReadinessProbe reports whether a backing dependency is reachable.
type ReadinessProbe func() error

// Handler contains HTTP handlers
type Handler struct {
	ingest *service.IngestService
	alerts *service.AlertService
	stats  *service.StatsService
	probes map[string]ReadinessProbe
}

// NewHandler creates a new HTTP handler
func NewHandler(ingest *service.IngestService, alerts *service.AlertService, stats *service.StatsService, probes map[string]ReadinessProbe) *Handler {
	return &Handler{
		ingest: ingest,
		alerts: alerts,
		stats:  stats,
		probes: probes,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/observations", h.ingestObservation)

		v1.GET("/alerts", h.listAlerts)
		v1.GET("/alerts/unread-count", h.unreadCount)
		v1.POST("/alerts/:id/read", h.markAlertRead)
		v1.POST("/alerts/mark-all-read", h.markAllRead)

		v1.GET("/skus/:sku/price-history", h.priceHistory)
		v1.GET("/skus/:sku/daily-stats", h.dailyStats)
		v1.GET("/skus/:sku/competitors", h.competitors)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes backing dependencies and returns 503 until all
// of them answer.
func (h *Handler) readinessCheck(c *gin.Context) {
	deps := gin.H{}
	ready := true
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			deps[name] = err.Error()
			ready = false
		} else {
			deps[name] = "ok"
		}
	}
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not ready",
			"dependencies": deps,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}

// callerScope extracts the user scope from the request. Authentication
// lives upstream; the gateway forwards the verified identity in headers.
// Only the explicit admin role gets the nil ledger-wide scope; a request
// carrying neither a valid X-User-ID nor the admin role is rejected so
// an identity-less caller can never read or acknowledge other users'
// alerts.
func callerScope(c *gin.Context) (*int64, bool) {
	if c.GetHeader("X-User-Role") == "admin" {
		return nil, true
	}
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid caller identity"})
		return nil, false
	}
	return &id, true
}

// ingestObservation accepts one ingestion record, for backfills and
// deployments without the Kafka path.
func (h *Handler) ingestObservation(c *gin.Context) {
	var rec models.ObservationRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), &rec)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Status != models.AppendAccepted {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// alertView is the wire shape served to the UI.
type alertView struct {
	ID            int64   `json:"id"`
	SKU           string  `json:"sku"`
	SellerID      string  `json:"seller_id"`
	AlertType     string  `json:"alert_type"`
	PreviousValue float64 `json:"previous_value"`
	CurrentValue  float64 `json:"current_value"`
	ChangePct     float64 `json:"change_pct"`
	TargetHit     bool    `json:"target_hit"`
	Acknowledged  bool    `json:"acknowledged"`
	CreatedAt     string  `json:"created_at"`
}

func toAlertView(a *models.Alert) alertView {
	return alertView{
		ID:            a.ID,
		SKU:           a.SKU,
		SellerID:      a.SellerID,
		AlertType:     a.AlertType,
		PreviousValue: a.PreviousValue.InexactFloat64(),
		CurrentValue:  a.CurrentValue.InexactFloat64(),
		ChangePct:     a.ChangePct,
		TargetHit:     a.TargetHit,
		Acknowledged:  a.Acknowledged(),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) listAlerts(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page parameter"})
		return
	}
	pageSize, err := intQuery(c, "page_size", 20)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size parameter"})
		return
	}

	scope, ok := callerScope(c)
	if !ok {
		return
	}

	resp, err := h.alerts.ListAlerts(c.Request.Context(), &service.ListAlertsRequest{
		UserID:     scope,
		UnreadOnly: c.Query("unread_only") == "true",
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]alertView, 0, len(resp.Items))
	for i := range resp.Items {
		items = append(items, toAlertView(&resp.Items[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     resp.Total,
		"page":      resp.Page,
		"page_size": resp.PageSize,
	})
}

func (h *Handler) unreadCount(c *gin.Context) {
	scope, ok := callerScope(c)
	if !ok {
		return
	}

	count, err := h.alerts.UnreadCount(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *Handler) markAlertRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	scope, ok := callerScope(c)
	if !ok {
		return
	}

	if err := h.alerts.MarkRead(c.Request.Context(), id, scope); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alert_id": id})
}

func (h *Handler) markAllRead(c *gin.Context) {
	scope, ok := callerScope(c)
	if !ok {
		return
	}

	marked, err := h.alerts.MarkAllRead(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marked": marked})
}

func (h *Handler) priceHistory(c *gin.Context) {
	from, to, ok := timeRange(c, 30*24*time.Hour)
	if !ok {
		return
	}

	var after time.Time
	if raw := c.Query("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after cursor"})
			return
		}
		after = parsed
	}

	limit, err := intQuery(c, "limit", 500)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	resp, err := h.stats.PriceHistory(c.Request.Context(),
		c.Param("sku"), c.Query("seller_id"), from, to, after, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) dailyStats(c *gin.Context) {
	from, to, ok := timeRange(c, 30*24*time.Hour)
	if !ok {
		return
	}

	stats, err := h.stats.DailyStats(c.Request.Context(), c.Param("sku"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sku": c.Param("sku"), "stats": stats})
}

func (h *Handler) competitors(c *gin.Context) {
	resp, err := h.stats.Competitors(c.Request.Context(), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

var rangeLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func timeRange(c *gin.Context, defaultSpan time.Duration) (from, to time.Time, ok bool) {
	now := time.Now().UTC()
	from, to = now.Add(-defaultSpan), now

	parse := func(raw string) (time.Time, error) {
		var t time.Time
		var err error
		for _, layout := range rangeLayouts {
			t, err = time.Parse(layout, raw)
			if err == nil {
				return t, nil
			}
		}
		return t, err
	}

	if raw := c.Query("from"); raw != "" {
		parsed, err := parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from parameter"})
			return from, to, false
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to parameter"})
			return from, to, false
		}
		to = parsed
	}
	return from, to, true
}

func intQuery(c *gin.Context, name string, defaultVal int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(raw)
}

// respondError maps the service error taxonomy to response codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
