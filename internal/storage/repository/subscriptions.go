package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

const subscriptionColumns = `id, user_uid, plan, start_date, end_date, status,
	      order_id, payment_id, cancelled_at, notes, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var plan, status string
	var orderID, paymentID sql.NullString
	var cancelledAt sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &plan, &sub.StartDate, &sub.EndDate,
		&status, &orderID, &paymentID, &cancelledAt, &sub.Notes, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Plan = models.Plan(plan)
	sub.Status = models.SubscriptionStatus(status)
	if orderID.Valid {
		sub.OrderID = &orderID.String
	}
	if paymentID.Valid {
		sub.PaymentID = &paymentID.String
	}
	if cancelledAt.Valid {
		sub.CancelledAt = &cancelledAt.Time
	}
	return sub, nil
}

// CreateSubscription inserts a subscription record and returns its ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan, start_date, end_date,
		      status, order_id, payment_id, notes)
		  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, string(sub.Plan), sub.StartDate, sub.EndDate,
		string(sub.Status), sub.OrderID, sub.PaymentID, sub.Notes).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindAuthoritative returns the single active/paid record with the furthest
// future end date, or ErrNotFound.
func (s *Storage) FindAuthoritative(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error) {
	const op = "storage.FindAuthoritative"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
		  FROM subscriptions
		  WHERE user_uid = $1
		    AND status IN ('active', 'paid')
		    AND end_date > $2
		  ORDER BY end_date DESC
		  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindByOrderID returns the record created for a gateway order.
func (s *Storage) FindByOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	const op = "storage.FindByOrderID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
		  FROM subscriptions
		  WHERE order_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindPendingByUser returns the most recent payment_pending record of a
// user, for the manual transaction-reference flow where the client does not
// echo the order id back.
func (s *Storage) FindPendingByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindPendingByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
		  FROM subscriptions
		  WHERE user_uid = $1
		    AND status = 'payment_pending'
		  ORDER BY created_at DESC
		  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// MarkVerified promotes a pending record to active with its paid window.
func (s *Storage) MarkVerified(ctx context.Context, id int, paymentID string, start, end time.Time) error {
	const op = "storage.MarkVerified"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
		  SET status = 'active',
		      payment_id = $1,
		      start_date = $2,
		      end_date = $3
		  WHERE id = $4 AND status = 'payment_pending'`
	result, err := s.DB.ExecContext(ctx, query, paymentID, start, end, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// RejectPending marks the latest pending record of a user rejected with a
// note. Rejection is a manual admin action, never automatic.
func (s *Storage) RejectPending(ctx context.Context, userUID, note string) (int, error) {
	const op = "storage.RejectPending"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
		  SET status = 'rejected', notes = $1
		  WHERE id = (
		      SELECT id FROM subscriptions
		      WHERE user_uid = $2 AND status = 'payment_pending'
		      ORDER BY created_at DESC
		      LIMIT 1
		  )`
	result, err := s.DB.ExecContext(ctx, query, note, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CancelActive stamps cancelled_at on every live record of a user. Returns
// the number of records cancelled.
func (s *Storage) CancelActive(ctx context.Context, userUID string, at time.Time) (int, error) {
	const op = "storage.CancelActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
		  SET status = 'cancelled', cancelled_at = $1
		  WHERE user_uid = $2
		    AND status IN ('active', 'paid', 'trial', 'payment_pending')`
	result, err := s.DB.ExecContext(ctx, query, at, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ExpiredActive is one lapsed record joined with its owner's contact data,
// as the sweep consumes it.
type ExpiredActive struct {
	Subscription *models.Subscription
	Email        string
	Username     string
}

// ListExpiredActive returns active/paid records whose end date has passed,
// with owner contact data for the expiry notice.
func (s *Storage) ListExpiredActive(ctx context.Context, now time.Time) ([]*ExpiredActive, error) {
	const op = "storage.ListExpiredActive"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, s.user_uid, s.plan, s.start_date, s.end_date, s.status,
		      s.order_id, s.payment_id, s.cancelled_at, s.notes, s.created_at,
		      u.email, u.username
		  FROM subscriptions s
		  JOIN users u ON u.uid = s.user_uid
		  WHERE s.status IN ('active', 'paid')
		    AND s.end_date < $1`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*ExpiredActive
	for rows.Next() {
		sub := &models.Subscription{}
		var plan, status string
		var orderID, paymentID sql.NullString
		var cancelledAt sql.NullTime
		item := &ExpiredActive{Subscription: sub}
		if err := rows.Scan(&sub.ID, &sub.UserUID, &plan, &sub.StartDate, &sub.EndDate,
			&status, &orderID, &paymentID, &cancelledAt, &sub.Notes, &sub.CreatedAt,
			&item.Email, &item.Username); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.Plan = models.Plan(plan)
		sub.Status = models.SubscriptionStatus(status)
		if cancelledAt.Valid {
			sub.CancelledAt = &cancelledAt.Time
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExpireSubscription flips one lapsed record and its owner to inactive.
func (s *Storage) ExpireSubscription(ctx context.Context, subID int, userUID string) error {
	const op = "storage.ExpireSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
		  SET status = 'inactive'
		  WHERE id = $1 AND status IN ('active', 'paid')`
	if _, err := s.DB.ExecContext(ctx, query, subID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query = `UPDATE users
		 SET subscription_status = 'inactive'
		 WHERE uid = $1 AND subscription_status IN ('active', 'paid')`
	if _, err := s.DB.ExecContext(ctx, query, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
