// Package auth implements registration and login. A new account starts its
// free trial at signup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/jwt"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/password"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// ErrInvalidCredentials is returned on an unknown username or a wrong
// password. The two cases are deliberately indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository is the account store the auth service needs.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service handles registration and login.
type Service struct {
	users     UserRepository
	tokens    jwt.Maker
	now       func() time.Time
	trialDays int
	log       *slog.Logger
}

// New creates the auth service.
func New(users UserRepository, tokens jwt.Maker, trialDays int, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		now:       time.Now,
		trialDays: trialDays,
		log:       log,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates an account with a hashed password and opens its trial
// window. Returns the new account's uid.
func (s *Service) Register(ctx context.Context, email, username, plainPassword string) (string, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(plainPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	trialEnd := s.now().AddDate(0, 0, s.trialDays)
	user := models.User{
		Email:              email,
		Username:           username,
		PasswordHash:       hash,
		Role:               "user",
		SubscriptionStatus: models.StatusTrial,
		TrialEndDate:       &trialEnd,
	}

	uid, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered",
		slog.String("user_uid", uid),
		slog.String("username", username))
	return uid, nil
}

// Login checks the credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, username, plainPassword string) (string, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, plainPassword); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}
