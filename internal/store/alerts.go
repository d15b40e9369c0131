package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/aghaPathan/noon-e-commerce/internal/models"
)

// alertColumns enumerates the selected columns so rows scan into
// models.Alert regardless of what else the table carries.
const alertColumns = "id, user_id, sku, seller_id, alert_type, previous_value, current_value, change_pct, target_hit, observed_at, read_at, created_at"

// AlertFilter narrows alert listings. UserID nil means no user scoping
// (admin view); page parameters are validated by the query service before
// they reach here.
type AlertFilter struct {
	UserID     *int64
	UnreadOnly bool
	Page       int
	PageSize   int
}

// InsertAlert appends an alert row to the ledger and reports whether the
// row was new. A replayed observation hits the (user, sku, seller,
// observed_at) dedupe index and inserts nothing, so retrying an ingest
// cannot double-record a change event. Factual fields are never updated
// afterwards.
func (s *Store) InsertAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	query := `
		INSERT INTO price_alerts (user_id, sku, seller_id, alert_type, previous_value, current_value, change_pct, target_hit, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (COALESCE(user_id, -1), sku, seller_id, observed_at) DO NOTHING
		RETURNING id, created_at`

	err := s.db.GetContext(ctx, alert, query,
		alert.UserID, alert.SKU, alert.SellerID, alert.AlertType,
		alert.PreviousValue, alert.CurrentValue, alert.ChangePct, alert.TargetHit,
		alert.ObservedAt)
	if err == sql.ErrNoRows {
		// Conflict: this (recipient, key, observation) is already
		// ledgered.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAlerts returns one page of alerts, newest first with ties broken by
// insertion id ascending, plus the total row count for the filter.
func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, int, error) {
	where := "TRUE"
	args := []interface{}{}
	n := 0

	if f.UserID != nil {
		n++
		args = append(args, *f.UserID)
		where += " AND user_id = $" + strconv.Itoa(n)
	}
	if f.UnreadOnly {
		where += " AND read_at IS NULL"
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM price_alerts WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.PageSize
	args = append(args, f.PageSize, offset)

	var alerts []models.Alert
	err := s.db.SelectContext(ctx, &alerts, `
		SELECT `+alertColumns+` FROM price_alerts WHERE `+where+`
		ORDER BY created_at DESC, id ASC
		LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, total, nil
}

// CountUnreadAlerts counts ledger rows with no read_at, scoped to a user
// when userID is non-nil.
func (s *Store) CountUnreadAlerts(ctx context.Context, userID *int64) (int, error) {
	var count int
	var err error
	if userID != nil {
		err = s.db.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM price_alerts WHERE read_at IS NULL AND user_id = $1", *userID)
	} else {
		err = s.db.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM price_alerts WHERE read_at IS NULL")
	}
	return count, err
}

// MarkAlertRead sets read_at on one alert. Marking an already-read alert
// is a no-op that still succeeds; a missing id returns sql.ErrNoRows.
func (s *Store) MarkAlertRead(ctx context.Context, id int64, userID *int64) error {
	query := "UPDATE price_alerts SET read_at = COALESCE(read_at, NOW()) WHERE id = $1"
	args := []interface{}{id}
	if userID != nil {
		query += " AND user_id = $2"
		args = append(args, *userID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllAlertsRead marks every alert unread at the statement's start.
// The snapshot is the database's now(), not the application clock, so
// clock skew cannot pull in an alert created after the call began; rows
// committed mid-statement are invisible to it and stay unread.
func (s *Store) MarkAllAlertsRead(ctx context.Context, userID *int64) (int64, error) {
	query := "UPDATE price_alerts SET read_at = NOW() WHERE read_at IS NULL AND created_at <= NOW()"
	args := []interface{}{}
	if userID != nil {
		query += " AND user_id = $1"
		args = append(args, *userID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeAlertsBefore deletes alerts older than the cutoff.
func (s *Store) PurgeAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM price_alerts WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
