package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/gateway"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepoMock) UpdateSubscriptionStatus(ctx context.Context, userUID string, status models.SubscriptionStatus) error {
	args := m.Called(ctx, userUID, status)
	return args.Error(0)
}

func (m *UserRepoMock) SetTrialEndDate(ctx context.Context, userUID string, end time.Time) error {
	args := m.Called(ctx, userUID, end)
	return args.Error(0)
}

type SubRepoMock struct {
	mock.Mock
}

func (m *SubRepoMock) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *SubRepoMock) FindAuthoritative(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, userUID, now)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SubRepoMock) FindByOrderID(ctx context.Context, orderID string) (*models.Subscription, error) {
	args := m.Called(ctx, orderID)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SubRepoMock) FindPendingByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SubRepoMock) MarkVerified(ctx context.Context, id int, paymentID string, start, end time.Time) error {
	args := m.Called(ctx, id, paymentID, start, end)
	return args.Error(0)
}

func (m *SubRepoMock) RejectPending(ctx context.Context, userUID, note string) (int, error) {
	args := m.Called(ctx, userUID, note)
	return args.Int(0), args.Error(1)
}

func (m *SubRepoMock) CancelActive(ctx context.Context, userUID string, at time.Time) (int, error) {
	args := m.Called(ctx, userUID, at)
	return args.Int(0), args.Error(1)
}

type PlanRepoMock struct {
	mock.Mock
}

func (m *PlanRepoMock) GetPlan(ctx context.Context, id int) (*models.PricingPlan, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.PricingPlan), args.Error(1)
	}
	return nil, args.Error(1)
}

type OrgRepoMock struct {
	mock.Mock
}

func (m *OrgRepoMock) ListMembers(ctx context.Context, orgUID string) ([]*models.OrgMember, error) {
	args := m.Called(ctx, orgUID)
	if res := args.Get(0); res != nil {
		return res.([]*models.OrgMember), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrgRepoMock) SetOrganizationSubscription(ctx context.Context, orgUID string, plan models.Plan,
	start, end time.Time, status models.SubscriptionStatus, basePrice, memberPrice int) error {
	args := m.Called(ctx, orgUID, plan, start, end, status, basePrice, memberPrice)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(users *UserRepoMock, subs *SubRepoMock, plans *PlanRepoMock, now time.Time) *Service {
	return New(users, subs, plans, nil, gateway.NewMock(), nil, 14, newNoopLogger()).
		WithClock(func() time.Time { return now })
}

func TestCreateOrder(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)

	plans.On("GetPlan", mock.Anything, 4).Return(&models.PricingPlan{
		ID:                 4,
		Type:               models.PlanYearly,
		Price:              8400,
		DiscountPercentage: 25,
		Category:           models.CategoryIndividual,
	}, nil)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{
		UID:                uid,
		SubscriptionStatus: models.StatusTrial,
	}, nil)
	subs.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.UserUID == uid &&
			sub.Status == models.StatusPaymentPending &&
			sub.Plan == models.PlanYearly &&
			sub.OrderID != nil && *sub.OrderID != ""
	})).Return(1, nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusPaymentPending).Return(nil)

	svc := newService(users, subs, plans, now)
	result, err := svc.CreateOrder(context.Background(), uid, models.DummyOrder{PlanID: 4})

	require.NoError(t, err)
	assert.Equal(t, 6300, result.Amount) // 8400 minus 25 percent
	assert.NotEmpty(t, result.OrderID)
	assert.Empty(t, result.PayLink)
	users.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestCreateOrder_UPIMethodReturnsPayLink(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)

	plans.On("GetPlan", mock.Anything, 1).Return(&models.PricingPlan{
		ID:       1,
		Type:     models.PlanMonthly,
		Price:    1000,
		Category: models.CategoryIndividual,
	}, nil)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{UID: uid}, nil)
	subs.On("CreateSubscription", mock.Anything, mock.Anything).Return(2, nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusPaymentPending).Return(nil)

	svc := newService(users, subs, plans, now)
	result, err := svc.CreateOrder(context.Background(), uid, models.DummyOrder{PlanID: 1, Method: "upi"})

	require.NoError(t, err)
	assert.Contains(t, result.PayLink, "upi://")
}

func TestCreateOrder_OrganizationPlan(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "admin-1"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)
	orgs := new(OrgRepoMock)

	plans.On("GetPlan", mock.Anything, 5).Return(&models.PricingPlan{
		ID:                    5,
		Type:                  models.PlanMonthly,
		Category:              models.CategoryOrganization,
		OrganizationBasePrice: 2000,
		MemberPrice:           500,
	}, nil)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{UID: uid}, nil)
	orgs.On("ListMembers", mock.Anything, "org-1").Return([]*models.OrgMember{
		{OrganizationUID: "org-1", UserUID: uid, Role: "admin"},
		{OrganizationUID: "org-1", UserUID: "member-1", Role: "member"},
		{OrganizationUID: "org-1", UserUID: "member-2", Role: "member"},
	}, nil)
	subs.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.Notes == "organization:org-1:plan:5"
	})).Return(3, nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusPaymentPending).Return(nil)

	svc := New(users, subs, plans, orgs, gateway.NewMock(), nil, 14, newNoopLogger()).
		WithClock(func() time.Time { return now })
	result, err := svc.CreateOrder(context.Background(), uid, models.DummyOrder{
		PlanID:          5,
		OrganizationUID: "org-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 3500, result.Amount) // 2000 base plus 500 per seat for 3 seats
	subs.AssertExpectations(t)
	orgs.AssertExpectations(t)
}

func TestCreateOrder_UnknownPlan(t *testing.T) {
	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)
	plans.On("GetPlan", mock.Anything, 99).Return(nil, repository.ErrNotFound)

	svc := newService(users, subs, plans, time.Now())
	_, err := svc.CreateOrder(context.Background(), "user-1", models.DummyOrder{PlanID: 99})

	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestVerifyPayment_SignaturePath(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"
	orderID := "order_mock_000001"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)

	pending := &models.Subscription{
		ID:      7,
		UserUID: uid,
		Plan:    models.PlanYearly,
		Status:  models.StatusPaymentPending,
		OrderID: &orderID,
	}
	subs.On("FindByOrderID", mock.Anything, orderID).Return(pending, nil)
	subs.On("MarkVerified", mock.Anything, 7, "pay_123", now, now.AddDate(0, 12, 0)).Return(nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusActive).Return(nil)

	svc := newService(users, subs, plans, now)
	sub, err := svc.VerifyPayment(context.Background(), uid, models.DummyVerify{
		OrderID:   orderID,
		PaymentID: "pay_123",
		Signature: "mock-signature",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Equal(t, now.AddDate(0, 12, 0), sub.EndDate)
	subs.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestVerifyPayment_TransactionRefPath(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"
	orderID := "order_mock_000002"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)

	pending := &models.Subscription{
		ID:      8,
		UserUID: uid,
		Plan:    models.PlanMonthly,
		Status:  models.StatusPaymentPending,
		OrderID: &orderID,
	}
	subs.On("FindPendingByUser", mock.Anything, uid).Return(pending, nil)
	subs.On("MarkVerified", mock.Anything, 8, "123456789012", now, now.AddDate(0, 1, 0)).Return(nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusActive).Return(nil)

	svc := newService(users, subs, plans, now)
	sub, err := svc.VerifyPayment(context.Background(), uid, models.DummyVerify{
		TransactionRef: "123456789012",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sub.Status)
}

func TestVerifyPayment_OrganizationOrderUsesPlanPricing(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "admin-1"
	orderID := "order_mock_000010"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)
	orgs := new(OrgRepoMock)

	pending := &models.Subscription{
		ID:      11,
		UserUID: uid,
		Plan:    models.PlanMonthly,
		Status:  models.StatusPaymentPending,
		OrderID: &orderID,
		Notes:   "organization:org-1:plan:5",
	}
	subs.On("FindByOrderID", mock.Anything, orderID).Return(pending, nil)
	subs.On("MarkVerified", mock.Anything, 11, "pay_456", now, now.AddDate(0, 1, 0)).Return(nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusActive).Return(nil)
	plans.On("GetPlan", mock.Anything, 5).Return(&models.PricingPlan{
		ID:                    5,
		Type:                  models.PlanMonthly,
		Category:              models.CategoryOrganization,
		OrganizationBasePrice: 2000,
		MemberPrice:           500,
	}, nil)
	// The organization must be stamped with the catalog plan's prices, not
	// whatever its row held before verification.
	orgs.On("SetOrganizationSubscription", mock.Anything, "org-1", models.PlanMonthly,
		now, now.AddDate(0, 1, 0), models.StatusActive, 2000, 500).Return(nil)

	svc := New(users, subs, plans, orgs, gateway.NewMock(), nil, 14, newNoopLogger()).
		WithClock(func() time.Time { return now })
	_, err := svc.VerifyPayment(context.Background(), uid, models.DummyVerify{
		OrderID:   orderID,
		PaymentID: "pay_456",
		Signature: "mock-signature",
	})

	require.NoError(t, err)
	orgs.AssertExpectations(t)
	plans.AssertExpectations(t)
}

func TestVerifyPayment_WrongOwnerLeavesStateUntouched(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	orderID := "order_mock_000003"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	plans := new(PlanRepoMock)

	pending := &models.Subscription{
		ID:      9,
		UserUID: "someone-else",
		Plan:    models.PlanMonthly,
		Status:  models.StatusPaymentPending,
		OrderID: &orderID,
	}
	subs.On("FindByOrderID", mock.Anything, orderID).Return(pending, nil)

	svc := newService(users, subs, plans, now)
	_, err := svc.VerifyPayment(context.Background(), "user-1", models.DummyVerify{
		OrderID:   orderID,
		PaymentID: "pay_123",
		Signature: "mock-signature",
	})

	assert.ErrorIs(t, err, ErrVerificationFailed)
	subs.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "UpdateSubscriptionStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_NoProof(t *testing.T) {
	svc := newService(new(UserRepoMock), new(SubRepoMock), new(PlanRepoMock), time.Now())
	_, err := svc.VerifyPayment(context.Background(), "user-1", models.DummyVerify{})

	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestStartTrial_Idempotent(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"
	existing := now.AddDate(0, 0, 3)

	users := new(UserRepoMock)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{
		UID:                uid,
		SubscriptionStatus: models.StatusTrial,
		TrialEndDate:       &existing,
	}, nil)

	svc := newService(users, new(SubRepoMock), new(PlanRepoMock), now)
	user, err := svc.StartTrial(context.Background(), uid)

	require.NoError(t, err)
	assert.Equal(t, existing, *user.TrialEndDate)
	users.AssertNotCalled(t, "SetTrialEndDate", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartTrial_OpensWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"

	users := new(UserRepoMock)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{UID: uid}, nil)
	users.On("SetTrialEndDate", mock.Anything, uid, now.AddDate(0, 0, 14)).Return(nil)

	svc := newService(users, new(SubRepoMock), new(PlanRepoMock), now)
	user, err := svc.StartTrial(context.Background(), uid)

	require.NoError(t, err)
	assert.Equal(t, models.StatusTrial, user.SubscriptionStatus)
	assert.Equal(t, now.AddDate(0, 0, 14), *user.TrialEndDate)
	users.AssertExpectations(t)
}

func TestExtendTrial_FromFutureEndDate(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"
	current := now.AddDate(0, 0, 4)

	users := new(UserRepoMock)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{
		UID:          uid,
		TrialEndDate: &current,
	}, nil)
	users.On("SetTrialEndDate", mock.Anything, uid, current.AddDate(0, 0, 7)).Return(nil)

	svc := newService(users, new(SubRepoMock), new(PlanRepoMock), now)
	user, err := svc.ExtendTrial(context.Background(), uid, 7)

	require.NoError(t, err)
	assert.Equal(t, current.AddDate(0, 0, 7), *user.TrialEndDate)
	users.AssertExpectations(t)
}

func TestExtendTrial_FromNowWhenLapsed(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"
	lapsed := now.AddDate(0, 0, -10)

	users := new(UserRepoMock)
	users.On("GetUser", mock.Anything, uid).Return(&models.User{
		UID:                uid,
		SubscriptionStatus: models.StatusInactive,
		TrialEndDate:       &lapsed,
	}, nil)
	users.On("SetTrialEndDate", mock.Anything, uid, now.AddDate(0, 0, 7)).Return(nil)

	svc := newService(users, new(SubRepoMock), new(PlanRepoMock), now)
	user, err := svc.ExtendTrial(context.Background(), uid, 7)

	require.NoError(t, err)
	assert.Equal(t, models.StatusTrial, user.SubscriptionStatus)
	users.AssertExpectations(t)
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	subs.On("CancelActive", mock.Anything, uid, now).Return(1, nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusCancelled).Return(nil)

	svc := newService(users, subs, new(PlanRepoMock), now)
	require.NoError(t, svc.Cancel(context.Background(), uid))
	users.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestReject(t *testing.T) {
	uid := "user-1"

	users := new(UserRepoMock)
	subs := new(SubRepoMock)
	subs.On("RejectPending", mock.Anything, uid, "duplicate reference").Return(1, nil)
	users.On("UpdateSubscriptionStatus", mock.Anything, uid, models.StatusRejected).Return(nil)

	svc := newService(users, subs, new(PlanRepoMock), time.Now())
	require.NoError(t, svc.Reject(context.Background(), uid, "duplicate reference"))
	users.AssertExpectations(t)
	subs.AssertExpectations(t)
}

func TestCurrentSubscription(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	uid := "user-1"

	t.Run("with authoritative record", func(t *testing.T) {
		users := new(UserRepoMock)
		subs := new(SubRepoMock)
		users.On("GetUser", mock.Anything, uid).Return(&models.User{
			UID:                uid,
			SubscriptionStatus: models.StatusActive,
		}, nil)
		subs.On("FindAuthoritative", mock.Anything, uid, now).
			Return(&models.Subscription{ID: 5, Status: models.StatusActive}, nil)

		svc := newService(users, subs, new(PlanRepoMock), now)
		result, err := svc.CurrentSubscription(context.Background(), uid)

		require.NoError(t, err)
		assert.True(t, result.IsSubscriptionActive)
		assert.Equal(t, 5, result.Subscription.ID)
	})

	t.Run("trial without record is still active", func(t *testing.T) {
		users := new(UserRepoMock)
		subs := new(SubRepoMock)
		end := now.AddDate(0, 0, 5)
		users.On("GetUser", mock.Anything, uid).Return(&models.User{
			UID:                uid,
			SubscriptionStatus: models.StatusTrial,
			TrialEndDate:       &end,
		}, nil)
		subs.On("FindAuthoritative", mock.Anything, uid, now).Return(nil, repository.ErrNotFound)

		svc := newService(users, subs, new(PlanRepoMock), now)
		result, err := svc.CurrentSubscription(context.Background(), uid)

		require.NoError(t, err)
		assert.True(t, result.IsSubscriptionActive)
		assert.Nil(t, result.Subscription)
	})

	t.Run("lapsed trial without record is inactive", func(t *testing.T) {
		users := new(UserRepoMock)
		subs := new(SubRepoMock)
		end := time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)
		users.On("GetUser", mock.Anything, uid).Return(&models.User{
			UID:                uid,
			SubscriptionStatus: models.StatusTrial,
			TrialEndDate:       &end,
		}, nil)
		subs.On("FindAuthoritative", mock.Anything, uid, now).Return(nil, repository.ErrNotFound)

		svc := newService(users, subs, new(PlanRepoMock), now)
		result, err := svc.CurrentSubscription(context.Background(), uid)

		require.NoError(t, err)
		// Account status still reads trial until the sweep runs, but the
		// derived flag must match what the access gate would decide.
		assert.False(t, result.IsSubscriptionActive)
		assert.Equal(t, models.StatusTrial, result.SubscriptionStatus)
	})

	t.Run("trial ending today without record is still active", func(t *testing.T) {
		users := new(UserRepoMock)
		subs := new(SubRepoMock)
		end := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)
		users.On("GetUser", mock.Anything, uid).Return(&models.User{
			UID:                uid,
			SubscriptionStatus: models.StatusTrial,
			TrialEndDate:       &end,
		}, nil)
		subs.On("FindAuthoritative", mock.Anything, uid, now).Return(nil, repository.ErrNotFound)

		svc := newService(users, subs, new(PlanRepoMock), now)
		result, err := svc.CurrentSubscription(context.Background(), uid)

		require.NoError(t, err)
		assert.True(t, result.IsSubscriptionActive)
	})

	t.Run("cancelled without record is inactive", func(t *testing.T) {
		users := new(UserRepoMock)
		subs := new(SubRepoMock)
		users.On("GetUser", mock.Anything, uid).Return(&models.User{
			UID:                uid,
			SubscriptionStatus: models.StatusCancelled,
		}, nil)
		subs.On("FindAuthoritative", mock.Anything, uid, now).Return(nil, repository.ErrNotFound)

		svc := newService(users, subs, new(PlanRepoMock), now)
		result, err := svc.CurrentSubscription(context.Background(), uid)

		require.NoError(t, err)
		assert.False(t, result.IsSubscriptionActive)
	})
}
