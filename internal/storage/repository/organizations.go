package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

// CreateOrganization persists a new organization and returns its UID.
func (s *Storage) CreateOrganization(ctx context.Context, org models.Organization) (string, error) {
	const op = "storage.CreateOrganization"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO organizations (name, admin_uid, status)
		  VALUES ($1, $2, $3)
		  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		org.Name, org.AdminUID, string(org.Status)).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetOrganization returns an organization by UID.
func (s *Storage) GetOrganization(ctx context.Context, orgUID string) (*models.Organization, error) {
	const op = "storage.GetOrganization"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, name, admin_uid, plan, start_date, end_date, status,
		      base_price, member_price, created_at
		  FROM organizations
		  WHERE uid = $1`
	org := &models.Organization{}
	var plan sql.NullString
	var startDate, endDate sql.NullTime
	var status string
	err := s.DB.QueryRowContext(ctx, query, orgUID).Scan(
		&org.UID, &org.Name, &org.AdminUID, &plan, &startDate, &endDate,
		&status, &org.BasePrice, &org.MemberPrice, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	org.Status = models.SubscriptionStatus(status)
	if plan.Valid {
		org.Plan = models.Plan(plan.String)
	}
	if startDate.Valid {
		org.StartDate = &startDate.Time
	}
	if endDate.Valid {
		org.EndDate = &endDate.Time
	}
	return org, nil
}

// AddMember adds a seat to an organization.
func (s *Storage) AddMember(ctx context.Context, member models.OrgMember) error {
	const op = "storage.AddMember"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO organization_members (organization_uid, user_uid, role)
		  VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query,
		member.OrganizationUID, member.UserUID, member.Role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListMembers returns the seats of an organization.
func (s *Storage) ListMembers(ctx context.Context, orgUID string) ([]*models.OrgMember, error) {
	const op = "storage.ListMembers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT organization_uid, user_uid, role, joined_at
		  FROM organization_members
		  WHERE organization_uid = $1
		  ORDER BY joined_at`
	rows, err := s.DB.QueryContext(ctx, query, orgUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.OrgMember
	for rows.Next() {
		var m models.OrgMember
		if err := rows.Scan(&m.OrganizationUID, &m.UserUID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateInvite stores a single-use invite token.
func (s *Storage) CreateInvite(ctx context.Context, invite models.InviteLink) error {
	const op = "storage.CreateInvite"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO organization_invites (token, organization_uid, expires_at)
		  VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query,
		invite.Token, invite.OrganizationUID, invite.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeInvite atomically marks an unexpired, unused invite as used and
// returns its organization. ErrNotFound means the token is unknown, already
// used or expired.
func (s *Storage) ConsumeInvite(ctx context.Context, token string, now time.Time) (string, error) {
	const op = "storage.ConsumeInvite"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE organization_invites
		  SET used = TRUE
		  WHERE token = $1
		    AND used = FALSE
		    AND expires_at > $2
		  RETURNING organization_uid`
	var orgUID string
	err := s.DB.QueryRowContext(ctx, query, token, now).Scan(&orgUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return orgUID, nil
}

// SetOrganizationSubscription records the paid window of an organization.
func (s *Storage) SetOrganizationSubscription(ctx context.Context, orgUID string, plan models.Plan,
	start, end time.Time, status models.SubscriptionStatus, basePrice, memberPrice int) error {
	const op = "storage.SetOrganizationSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE organizations
		  SET plan = $1, start_date = $2, end_date = $3, status = $4,
		      base_price = $5, member_price = $6
		  WHERE uid = $7`
	if _, err := s.DB.ExecContext(ctx, query,
		string(plan), start, end, string(status), basePrice, memberPrice, orgUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
