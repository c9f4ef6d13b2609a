// Package organization implements multi-seat group accounts: creation,
// single-use invite links and membership. Only the organization admin may
// invite.
package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// inviteTTL bounds how long an invite link stays redeemable.
const inviteTTL = 7 * 24 * time.Hour

var (
	// ErrNotAdmin is returned when a non-admin member attempts an
	// admin-only action.
	ErrNotAdmin = errors.New("caller is not the organization admin")
	// ErrInviteInvalid is returned for an unknown, used or expired invite
	// token.
	ErrInviteInvalid = errors.New("invite link is invalid or expired")
	// ErrAlreadyMember is returned when joining an organization twice.
	ErrAlreadyMember = errors.New("user is already a member")
)

// Repository is the organization store.
type Repository interface {
	CreateOrganization(ctx context.Context, org models.Organization) (string, error)
	GetOrganization(ctx context.Context, orgUID string) (*models.Organization, error)
	AddMember(ctx context.Context, member models.OrgMember) error
	ListMembers(ctx context.Context, orgUID string) ([]*models.OrgMember, error)
	CreateInvite(ctx context.Context, invite models.InviteLink) error
	ConsumeInvite(ctx context.Context, token string, now time.Time) (string, error)
}

// Service carries the organization business logic.
type Service struct {
	repo Repository
	now  func() time.Time
	log  *slog.Logger
}

// New creates the organization service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, now: time.Now, log: log}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a new organization with the caller as its admin member.
func (s *Service) Create(ctx context.Context, adminUID, name string) (*models.Organization, error) {
	const op = "organization.Create"

	org := models.Organization{
		Name:     name,
		AdminUID: adminUID,
	}
	uid, err := s.repo.CreateOrganization(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	admin := models.OrgMember{
		OrganizationUID: uid,
		UserUID:         adminUID,
		Role:            "admin",
	}
	if err := s.repo.AddMember(ctx, admin); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	org.UID = uid
	s.log.Info("organization created",
		slog.String("organization_uid", uid),
		slog.String("admin_uid", adminUID))
	return &org, nil
}

// Invite issues a single-use invite token valid for seven days. Only the
// organization admin may call it.
func (s *Service) Invite(ctx context.Context, callerUID, orgUID string) (*models.InviteLink, error) {
	const op = "organization.Invite"

	org, err := s.repo.GetOrganization(ctx, orgUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if org.AdminUID != callerUID {
		return nil, ErrNotAdmin
	}

	invite := models.InviteLink{
		Token:           uuid.NewString(),
		OrganizationUID: orgUID,
		ExpiresAt:       s.now().Add(inviteTTL),
	}
	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &invite, nil
}

// Join redeems an invite token and adds the caller as a member. A token can
// be redeemed exactly once; a second redemption fails even if the first
// joiner has since left.
func (s *Service) Join(ctx context.Context, userUID, token string) (*models.Organization, error) {
	const op = "organization.Join"

	orgUID, err := s.repo.ConsumeInvite(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	members, err := s.repo.ListMembers(ctx, orgUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, m := range members {
		if m.UserUID == userUID {
			return nil, ErrAlreadyMember
		}
	}

	member := models.OrgMember{
		OrganizationUID: orgUID,
		UserUID:         userUID,
		Role:            "member",
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	org, err := s.repo.GetOrganization(ctx, orgUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("member joined organization",
		slog.String("organization_uid", orgUID),
		slog.String("user_uid", userUID))
	return org, nil
}

// Members lists the seats of an organization. Any member may list; outsiders
// are rejected.
func (s *Service) Members(ctx context.Context, callerUID, orgUID string) ([]*models.OrgMember, error) {
	const op = "organization.Members"

	members, err := s.repo.ListMembers(ctx, orgUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	isMember := false
	for _, m := range members {
		if m.UserUID == callerUID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, ErrNotAdmin
	}
	return members, nil
}
