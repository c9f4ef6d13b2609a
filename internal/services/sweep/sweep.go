// Package sweep implements the periodic lifecycle sweep: expiring lapsed
// trials and paid subscriptions in bulk and publishing milestone
// notifications for trials approaching their end date.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/dateutil"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// Routing keys for the notification exchange.
const (
	RouteTrial  = "trial"
	RouteExpiry = "expiry"
)

// Trial milestones, keyed by whole days left until the trial ends.
var milestones = map[int]string{
	3: "3day",
	1: "1day",
	0: "expiry",
}

// UserRepository is the slice of the account store the sweep reads and
// expires.
type UserRepository interface {
	ExpireTrials(ctx context.Context, before time.Time) (int64, error)
	ListActiveTrials(ctx context.Context, from time.Time) ([]*models.User, error)
	CountUsersByStatus(ctx context.Context) (map[models.SubscriptionStatus]int, error)
}

// SubscriptionRepository is the slice of the record store the sweep expires.
type SubscriptionRepository interface {
	ListExpiredActive(ctx context.Context, now time.Time) ([]*repository.ExpiredActive, error)
	ExpireSubscription(ctx context.Context, subID int, userUID string) error
}

// MilestoneRepository records which milestone notices were already sent.
// Claiming is atomic, so a crashed or concurrent sweep never duplicates a
// notice.
type MilestoneRepository interface {
	ClaimMilestone(ctx context.Context, userUID, milestone string, day time.Time) (bool, error)
}

// Publisher pushes notification messages to the broker.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service runs the lifecycle sweep.
type Service struct {
	users      UserRepository
	subs       SubscriptionRepository
	milestones MilestoneRepository
	publisher  Publisher
	now        func() time.Time
	log        *slog.Logger
}

// New creates the sweep service.
func New(users UserRepository, subs SubscriptionRepository,
	milestones MilestoneRepository, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		users:      users,
		subs:       subs,
		milestones: milestones,
		publisher:  publisher,
		now:        time.Now,
		log:        log,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run executes sweeps on a fixed interval until the context is cancelled.
// The first sweep runs after a short startup delay so a crash-looping
// process does not hammer the database.
func (s *Service) Run(ctx context.Context, startupDelay, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(startupDelay):
	}
	if err := s.Sweep(ctx); err != nil {
		s.log.Error("sweep failed", sl.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", sl.Err(err))
			}
		}
	}
}

// Sweep runs one full pass: expire lapsed trials, expire lapsed paid
// subscriptions, publish milestone notices. Running it twice in a row is a
// no-op. Per-account failures are logged and skipped so one bad row never
// stalls the rest of the sweep.
func (s *Service) Sweep(ctx context.Context) error {
	const op = "sweep.Sweep"

	now := s.now()
	today := dateutil.StartOfDay(now)

	expired, err := s.users.ExpireTrials(ctx, today)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expired > 0 {
		s.log.Info("trials expired", slog.Int64("count", expired))
	}

	if err := s.expireSubscriptions(ctx, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.notifyTrials(ctx, now, today); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) expireSubscriptions(ctx context.Context, now time.Time) error {
	const op = "sweep.expireSubscriptions"

	lapsed, err := s.subs.ListExpiredActive(ctx, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, item := range lapsed {
		sub := item.Subscription
		if err := s.subs.ExpireSubscription(ctx, sub.ID, sub.UserUID); err != nil {
			s.log.Error("failed to expire subscription",
				slog.Int("subscription_id", sub.ID),
				slog.String("user_uid", sub.UserUID),
				sl.Err(err))
			continue
		}

		notice := models.ExpiryNotice{
			Email:    item.Email,
			Username: item.Username,
			Plan:     sub.Plan,
			EndDate:  sub.EndDate,
		}
		if err := s.publisher.Publish(RouteExpiry, notice); err != nil {
			s.log.Error("failed to publish expiry notice",
				slog.String("user_uid", sub.UserUID),
				sl.Err(err))
		}
	}
	return nil
}

func (s *Service) notifyTrials(ctx context.Context, now, today time.Time) error {
	const op = "sweep.notifyTrials"

	// Query from the day boundary, not the current instant: a trial ending
	// earlier today is still valid all day and must get its expiry notice.
	trials, err := s.users.ListActiveTrials(ctx, today)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, user := range trials {
		if user.TrialEndDate == nil {
			continue
		}
		daysLeft := dateutil.DaysUntil(now, *user.TrialEndDate)
		milestone, ok := milestones[daysLeft]
		if !ok {
			continue
		}

		claimed, err := s.milestones.ClaimMilestone(ctx, user.UID, milestone, today)
		if err != nil {
			s.log.Error("failed to claim milestone",
				slog.String("user_uid", user.UID),
				slog.String("milestone", milestone),
				sl.Err(err))
			continue
		}
		if !claimed {
			continue
		}

		notice := models.TrialNotice{
			Email:        user.Email,
			Username:     user.Username,
			DaysLeft:     daysLeft,
			TrialEndDate: *user.TrialEndDate,
			Milestone:    milestone,
		}
		if err := s.publisher.Publish(RouteTrial, notice); err != nil {
			s.log.Error("failed to publish trial notice",
				slog.String("user_uid", user.UID),
				slog.String("milestone", milestone),
				sl.Err(err))
		}
	}
	return nil
}

// Statistics is the admin view of account distribution.
type Statistics struct {
	Counts map[models.SubscriptionStatus]int `json:"counts"`
	Total  int                               `json:"total"`
}

// CollectStatistics counts accounts per lifecycle state.
func (s *Service) CollectStatistics(ctx context.Context) (*Statistics, error) {
	const op = "sweep.CollectStatistics"

	counts, err := s.users.CountUsersByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &Statistics{Counts: counts, Total: total}, nil
}
