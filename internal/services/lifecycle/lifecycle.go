// Package lifecycle implements the subscription lifecycle engine: the
// per-request access gate and the status transitions every write path goes
// through. The gate is a pure status-switch over the account state; any
// status it does not recognize denies access.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/dateutil"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// UserRepository is the account store as the engine sees it.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// SubscriptionRepository is the record store as the engine sees it.
type SubscriptionRepository interface {
	FindAuthoritative(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error)
}

// Cache holds short-lived gate verdicts keyed by user.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Verdict is the gate decision together with the status the client should
// render.
type Verdict struct {
	Allowed bool                      `json:"is_subscription_active"`
	Status  models.SubscriptionStatus `json:"subscription_status"`
}

// Engine decides whether gated operations are permitted.
type Engine struct {
	users UserRepository
	subs  SubscriptionRepository
	cache Cache
	now   func() time.Time
	log   *slog.Logger
}

// verdictTTL bounds how stale a cached gate decision can be.
const verdictTTL = time.Minute

// New creates an Engine over the given stores. cache may be nil.
func New(users UserRepository, subs SubscriptionRepository, cache Cache, log *slog.Logger) *Engine {
	return &Engine{
		users: users,
		subs:  subs,
		cache: cache,
		now:   time.Now,
		log:   log,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func verdictKey(userUID string) string {
	return fmt.Sprintf("gate:%s", userUID)
}

// CheckAccess runs the gate for one account. A nil error means access is
// granted. On denial the returned verdict always carries the current status
// so the caller can render an upgrade prompt without a second round-trip.
func (e *Engine) CheckAccess(ctx context.Context, userUID string) (*Verdict, error) {
	const op = "lifecycle.CheckAccess"

	if e.cache != nil {
		var cached Verdict
		found, err := e.cache.Get(verdictKey(userUID), &cached)
		if err != nil {
			e.log.Warn("verdict cache read failed", sl.Err(err))
		}
		if found && cached.Allowed {
			return &cached, nil
		}
	}

	user, err := e.users.GetUser(ctx, userUID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	verdict, denial := e.evaluate(ctx, user)
	if denial != nil {
		return verdict, denial
	}

	if e.cache != nil {
		if err := e.cache.Set(verdictKey(userUID), verdict, verdictTTL); err != nil {
			e.log.Warn("verdict cache write failed", sl.Err(err))
		}
	}
	return verdict, nil
}

func (e *Engine) evaluate(ctx context.Context, user *models.User) (*Verdict, error) {
	const op = "lifecycle.evaluate"
	now := e.now()

	switch user.SubscriptionStatus {
	case models.StatusTrial:
		// Date-only comparison: a trial ending today still grants access.
		if user.TrialEndDate == nil ||
			dateutil.StartOfDay(*user.TrialEndDate).Before(dateutil.StartOfDay(now)) {
			return &Verdict{Allowed: false, Status: models.StatusInactive}, ErrTrialExpired
		}
		return &Verdict{Allowed: true, Status: models.StatusTrial}, nil

	case models.StatusPaymentPending:
		// Grace access while verification is in flight.
		return &Verdict{Allowed: true, Status: models.StatusPaymentPending}, nil

	case models.StatusActive, models.StatusPaid:
		sub, err := e.subs.FindAuthoritative(ctx, user.UID, now)
		if errors.Is(err, repository.ErrNotFound) {
			return &Verdict{Allowed: false, Status: models.StatusInactive}, ErrInactive
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &Verdict{Allowed: true, Status: sub.Status}, nil

	case models.StatusInactive:
		return &Verdict{Allowed: false, Status: models.StatusInactive}, ErrInactive

	case models.StatusCancelled:
		return &Verdict{Allowed: false, Status: models.StatusCancelled}, ErrCancelled

	case models.StatusRejected:
		return &Verdict{Allowed: false, Status: models.StatusRejected}, ErrRejected

	default:
		// Fail closed on anything unrecognized.
		return &Verdict{Allowed: false, Status: user.SubscriptionStatus}, ErrInvalidState
	}
}

// InvalidateVerdict drops the cached gate decision after any transition.
func (e *Engine) InvalidateVerdict(userUID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(verdictKey(userUID)); err != nil {
		e.log.Warn("verdict cache invalidation failed", sl.Err(err))
	}
}
