package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ClaimMilestone records that a milestone notification is being sent to a
// user today. It is a conditional insert: the first caller of the day wins
// and gets true, every later caller gets false. This is what keeps each
// milestone e-mail to at most one per account per calendar day across any
// number of service instances.
func (s *Storage) ClaimMilestone(ctx context.Context, userUID, milestone string, day time.Time) (bool, error) {
	const op = "storage.ClaimMilestone"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO trial_notifications (user_uid, milestone, day)
		  VALUES ($1, $2, $3)`
	_, err := s.DB.ExecContext(ctx, query, userUID, milestone, day)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}
