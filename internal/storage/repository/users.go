package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const userColumns = `uid, email, username, password_hash, role,
	      subscription_status, trial_end_date, gateway_customer_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var trialEndDate sql.NullTime
	var customerID sql.NullString
	var status string
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&status, &trialEndDate, &customerID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.SubscriptionStatus = models.SubscriptionStatus(status)
	if trialEndDate.Valid {
		u.TrialEndDate = &trialEndDate.Time
	}
	if customerID.Valid {
		u.GatewayCustomerID = &customerID.String
	}
	return u, nil
}

// RegisterUser persists a new account and returns its UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, username, password_hash, role,
		      subscription_status, trial_end_date)
		  VALUES ($1, $2, $3, $4, $5, $6)
		  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Role,
		string(user.SubscriptionStatus), user.TrialEndDate).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUser returns an account by UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUsername returns an account by username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateSubscriptionStatus flips the account lifecycle state. A narrow
// single-row update; races with the sweep degrade to a stale read at worst.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, userUID string, status models.SubscriptionStatus) error {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
		  SET subscription_status = $1
		  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, string(status), userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetTrialEndDate stamps a trial window and switches the account to trial.
func (s *Storage) SetTrialEndDate(ctx context.Context, userUID string, end time.Time) error {
	const op = "storage.SetTrialEndDate"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
		  SET trial_end_date = $1,
		      subscription_status = 'trial'
		  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, end, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExpireTrials bulk-flips every trial account whose window ended before the
// given day boundary to inactive. Returns the number of accounts flipped.
func (s *Storage) ExpireTrials(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.ExpireTrials"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
		  SET subscription_status = 'inactive'
		  WHERE subscription_status = 'trial'
		    AND trial_end_date < $1`
	result, err := s.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// ListActiveTrials returns every account still inside its trial window.
// Callers pass the start-of-day boundary so that a trial ending earlier
// today, which is valid all day, is still listed.
func (s *Storage) ListActiveTrials(ctx context.Context, from time.Time) ([]*models.User, error) {
	const op = "storage.ListActiveTrials"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
		  FROM users
		  WHERE subscription_status = 'trial'
		    AND trial_end_date >= $1`
	rows, err := s.DB.QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountUsersByStatus returns how many accounts hold each lifecycle state.
func (s *Storage) CountUsersByStatus(ctx context.Context) (map[models.SubscriptionStatus]int, error) {
	const op = "storage.CountUsersByStatus"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subscription_status, COUNT(*)
		  FROM users
		  GROUP BY subscription_status`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[models.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[models.SubscriptionStatus(status)] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
