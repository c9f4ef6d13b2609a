package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/dateutil"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) ExpireTrials(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return int64(args.Int(0)), args.Error(1)
}

func (m *UserRepoMock) ListActiveTrials(ctx context.Context, from time.Time) ([]*models.User, error) {
	args := m.Called(ctx, from)
	if res := args.Get(0); res != nil {
		return res.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepoMock) CountUsersByStatus(ctx context.Context) (map[models.SubscriptionStatus]int, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(map[models.SubscriptionStatus]int), args.Error(1)
	}
	return nil, args.Error(1)
}

type SubRepoMock struct {
	mock.Mock
}

func (m *SubRepoMock) ListExpiredActive(ctx context.Context, now time.Time) ([]*repository.ExpiredActive, error) {
	args := m.Called(ctx, now)
	if res := args.Get(0); res != nil {
		return res.([]*repository.ExpiredActive), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SubRepoMock) ExpireSubscription(ctx context.Context, subID int, userUID string) error {
	args := m.Called(ctx, subID, userUID)
	return args.Error(0)
}

type MilestoneRepoMock struct {
	mock.Mock
}

func (m *MilestoneRepoMock) ClaimMilestone(ctx context.Context, userUID, milestone string, day time.Time) (bool, error) {
	args := m.Called(ctx, userUID, milestone, day)
	return args.Bool(0), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func trialUser(uid string, end time.Time) *models.User {
	return &models.User{
		UID:                uid,
		Email:              uid + "@example.com",
		Username:           uid,
		SubscriptionStatus: models.StatusTrial,
		TrialEndDate:       &end,
	}
}

func TestSweep_ExpiresTrialsAndSubscriptions(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	today := dateutil.StartOfDay(now)

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	milestones := new(MilestoneRepoMock)
	publisher := new(PublisherMock)

	users.On("ExpireTrials", mock.Anything, today).Return(3, nil)
	users.On("ListActiveTrials", mock.Anything, today).Return([]*models.User{}, nil)

	lapsed := &repository.ExpiredActive{
		Subscription: &models.Subscription{
			ID:      11,
			UserUID: "user-a",
			Plan:    models.PlanMonthly,
			EndDate: now.AddDate(0, 0, -2),
		},
		Email:    "user-a@example.com",
		Username: "user-a",
	}
	subs.On("ListExpiredActive", mock.Anything, now).Return([]*repository.ExpiredActive{lapsed}, nil)
	subs.On("ExpireSubscription", mock.Anything, 11, "user-a").Return(nil)
	publisher.On("Publish", RouteExpiry, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.ExpiryNotice)
		return ok && notice.Email == "user-a@example.com" && notice.Plan == models.PlanMonthly
	})).Return(nil)

	svc := New(users, subs, milestones, publisher, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	users.AssertExpectations(t)
	subs.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSweep_MilestoneNotices(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	today := dateutil.StartOfDay(now)

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	milestones := new(MilestoneRepoMock)
	publisher := new(PublisherMock)

	users.On("ExpireTrials", mock.Anything, today).Return(0, nil)
	subs.On("ListExpiredActive", mock.Anything, now).Return([]*repository.ExpiredActive{}, nil)

	users.On("ListActiveTrials", mock.Anything, today).Return([]*models.User{
		trialUser("three-days", now.AddDate(0, 0, 3)),
		trialUser("one-day", now.AddDate(0, 0, 1)),
		trialUser("today", now.Add(2*time.Hour)),
		trialUser("far-away", now.AddDate(0, 0, 9)),
	}, nil)

	milestones.On("ClaimMilestone", mock.Anything, "three-days", "3day", today).Return(true, nil)
	milestones.On("ClaimMilestone", mock.Anything, "one-day", "1day", today).Return(true, nil)
	milestones.On("ClaimMilestone", mock.Anything, "today", "expiry", today).Return(true, nil)

	publisher.On("Publish", RouteTrial, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.TrialNotice)
		return ok && notice.Milestone == "3day" && notice.DaysLeft == 3
	})).Return(nil)
	publisher.On("Publish", RouteTrial, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.TrialNotice)
		return ok && notice.Milestone == "1day" && notice.DaysLeft == 1
	})).Return(nil)
	publisher.On("Publish", RouteTrial, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.TrialNotice)
		return ok && notice.Milestone == "expiry" && notice.DaysLeft == 0
	})).Return(nil)

	svc := New(users, subs, milestones, publisher, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	milestones.AssertExpectations(t)
	publisher.AssertExpectations(t)
	// The far-away trial must produce neither a claim nor a notice.
	milestones.AssertNumberOfCalls(t, "ClaimMilestone", 3)
	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestSweep_ClaimedMilestoneIsNotRepublished(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	today := dateutil.StartOfDay(now)

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	milestones := new(MilestoneRepoMock)
	publisher := new(PublisherMock)

	users.On("ExpireTrials", mock.Anything, today).Return(0, nil)
	subs.On("ListExpiredActive", mock.Anything, now).Return([]*repository.ExpiredActive{}, nil)
	users.On("ListActiveTrials", mock.Anything, today).Return([]*models.User{
		trialUser("already-sent", now.AddDate(0, 0, 1)),
	}, nil)

	// A second sweep on the same day finds the claim already taken.
	milestones.On("ClaimMilestone", mock.Anything, "already-sent", "1day", today).Return(false, nil)

	svc := New(users, subs, milestones, publisher, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSweep_TrialEndedEarlierTodayStillGetsExpiryNotice(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	today := dateutil.StartOfDay(now)

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	milestones := new(MilestoneRepoMock)
	publisher := new(PublisherMock)

	users.On("ExpireTrials", mock.Anything, today).Return(0, nil)
	subs.On("ListExpiredActive", mock.Anything, now).Return([]*repository.ExpiredActive{}, nil)

	// The trial ended at 00:30 this morning but holds until end of day, so
	// the listing starts from the day boundary and the account still gets
	// its last-day notice.
	users.On("ListActiveTrials", mock.Anything, today).Return([]*models.User{
		trialUser("ends-today", today.Add(30*time.Minute)),
	}, nil)
	milestones.On("ClaimMilestone", mock.Anything, "ends-today", "expiry", today).Return(true, nil)
	publisher.On("Publish", RouteTrial, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.TrialNotice)
		return ok && notice.Milestone == "expiry" && notice.DaysLeft == 0
	})).Return(nil)

	svc := New(users, subs, milestones, publisher, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	users.AssertExpectations(t)
	milestones.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

// lifecycleFake is an in-memory stand-in for the sweep's stores and broker.
// It mutates state the way the real repositories do, so running the sweep
// against it twice shows whether the second pass is a true no-op.
type lifecycleFake struct {
	trialEnds     map[string]time.Time
	expiredTrials map[string]bool
	active        []*repository.ExpiredActive
	expiredSubs   map[int]bool
	claims        map[string]bool
	published     []string
}

func newLifecycleFake() *lifecycleFake {
	return &lifecycleFake{
		trialEnds:     map[string]time.Time{},
		expiredTrials: map[string]bool{},
		expiredSubs:   map[int]bool{},
		claims:        map[string]bool{},
	}
}

func (f *lifecycleFake) ExpireTrials(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for uid, end := range f.trialEnds {
		if !f.expiredTrials[uid] && end.Before(before) {
			f.expiredTrials[uid] = true
			n++
		}
	}
	return n, nil
}

func (f *lifecycleFake) ListActiveTrials(_ context.Context, from time.Time) ([]*models.User, error) {
	var out []*models.User
	for uid, end := range f.trialEnds {
		if !f.expiredTrials[uid] && !end.Before(from) {
			out = append(out, trialUser(uid, end))
		}
	}
	return out, nil
}

func (f *lifecycleFake) CountUsersByStatus(_ context.Context) (map[models.SubscriptionStatus]int, error) {
	return map[models.SubscriptionStatus]int{}, nil
}

func (f *lifecycleFake) ListExpiredActive(_ context.Context, now time.Time) ([]*repository.ExpiredActive, error) {
	var out []*repository.ExpiredActive
	for _, item := range f.active {
		if !f.expiredSubs[item.Subscription.ID] && item.Subscription.EndDate.Before(now) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *lifecycleFake) ExpireSubscription(_ context.Context, subID int, _ string) error {
	f.expiredSubs[subID] = true
	return nil
}

func (f *lifecycleFake) ClaimMilestone(_ context.Context, userUID, milestone string, day time.Time) (bool, error) {
	key := userUID + "/" + milestone + "/" + day.Format("2006-01-02")
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *lifecycleFake) Publish(routingKey string, _ any) error {
	f.published = append(f.published, routingKey)
	return nil
}

func TestSweep_SecondRunIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	fake := newLifecycleFake()
	fake.trialEnds["lapsed"] = now.AddDate(0, 0, -2)
	fake.trialEnds["ends-soon"] = now.AddDate(0, 0, 1)
	fake.active = []*repository.ExpiredActive{{
		Subscription: &models.Subscription{
			ID:      21,
			UserUID: "paid",
			Plan:    models.PlanMonthly,
			EndDate: now.AddDate(0, 0, -1),
		},
		Email:    "paid@example.com",
		Username: "paid",
	}}

	svc := New(fake, fake, fake, fake, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	assert.True(t, fake.expiredTrials["lapsed"])
	assert.True(t, fake.expiredSubs[21])
	// One expiry notice for the lapsed paid account, one 1day trial notice.
	assert.ElementsMatch(t, []string{RouteExpiry, RouteTrial}, fake.published)

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Len(t, fake.published, 2)
	assert.Len(t, fake.claims, 1)
}

func TestSweep_BadAccountDoesNotStallTheRest(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	today := dateutil.StartOfDay(now)

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	milestones := new(MilestoneRepoMock)
	publisher := new(PublisherMock)

	users.On("ExpireTrials", mock.Anything, today).Return(0, nil)
	users.On("ListActiveTrials", mock.Anything, today).Return([]*models.User{}, nil)

	broken := &repository.ExpiredActive{
		Subscription: &models.Subscription{ID: 1, UserUID: "broken"},
	}
	healthy := &repository.ExpiredActive{
		Subscription: &models.Subscription{ID: 2, UserUID: "healthy", Plan: models.PlanYearly},
		Email:        "healthy@example.com",
		Username:     "healthy",
	}
	subs.On("ListExpiredActive", mock.Anything, now).
		Return([]*repository.ExpiredActive{broken, healthy}, nil)
	subs.On("ExpireSubscription", mock.Anything, 1, "broken").Return(errors.New("row locked"))
	subs.On("ExpireSubscription", mock.Anything, 2, "healthy").Return(nil)
	publisher.On("Publish", RouteExpiry, mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.ExpiryNotice)
		return ok && notice.Username == "healthy"
	})).Return(nil)

	svc := New(users, subs, milestones, publisher, newNoopLogger()).
		WithClock(func() time.Time { return now })

	require.NoError(t, svc.Sweep(context.Background()))
	subs.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCollectStatistics(t *testing.T) {
	users := new(UserRepoMock)
	users.On("CountUsersByStatus", mock.Anything).Return(map[models.SubscriptionStatus]int{
		models.StatusTrial:    10,
		models.StatusActive:   4,
		models.StatusInactive: 6,
	}, nil)

	svc := New(users, new(SubRepoMock), new(MilestoneRepoMock), new(PublisherMock), newNoopLogger())
	stats, err := svc.CollectStatistics(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20, stats.Total)
	assert.Equal(t, 10, stats.Counts[models.StatusTrial])
}
