// Package billing implements order creation, payment verification, trial
// management and cancellation. Every write path here drives the account
// lifecycle: order creation parks the account in payment_pending, a verified
// payment opens a paid window, cancellation and rejection close it.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/gateway"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/dateutil"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/planperiod"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

// ErrVerificationFailed is returned when neither the signature nor the
// transaction reference could be accepted. The account stays
// payment_pending; rejection is a separate manual admin action.
var ErrVerificationFailed = errors.New("payment verification failed")

// ErrPlanNotFound is returned for an unknown catalog plan.
var ErrPlanNotFound = errors.New("plan not found")

// UserRepository is the slice of the account store billing writes to.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateSubscriptionStatus(ctx context.Context, userUID string, status models.SubscriptionStatus) error
	SetTrialEndDate(ctx context.Context, userUID string, end time.Time) error
}

// SubscriptionRepository is the slice of the record store billing writes to.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	FindAuthoritative(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Subscription, error)
	FindPendingByUser(ctx context.Context, userUID string) (*models.Subscription, error)
	MarkVerified(ctx context.Context, id int, paymentID string, start, end time.Time) error
	RejectPending(ctx context.Context, userUID, note string) (int, error)
	CancelActive(ctx context.Context, userUID string, at time.Time) (int, error)
}

// PlanRepository is the read-only catalog.
type PlanRepository interface {
	GetPlan(ctx context.Context, id int) (*models.PricingPlan, error)
}

// OrgRepository supplies seat counts for organization orders and records the
// paid window on the organization after verification.
type OrgRepository interface {
	ListMembers(ctx context.Context, orgUID string) ([]*models.OrgMember, error)
	SetOrganizationSubscription(ctx context.Context, orgUID string, plan models.Plan,
		start, end time.Time, status models.SubscriptionStatus, basePrice, memberPrice int) error
}

// VerdictInvalidator drops cached gate verdicts after a transition.
type VerdictInvalidator interface {
	InvalidateVerdict(userUID string)
}

// Service carries the billing business logic.
type Service struct {
	users     UserRepository
	subs      SubscriptionRepository
	plans     PlanRepository
	orgs      OrgRepository
	gw        gateway.Gateway
	gate      VerdictInvalidator
	now       func() time.Time
	trialDays int
	log       *slog.Logger
}

// New creates the billing service. orgs and gate may be nil in tests.
func New(users UserRepository, subs SubscriptionRepository, plans PlanRepository,
	orgs OrgRepository, gw gateway.Gateway, gate VerdictInvalidator,
	trialDays int, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		subs:      subs,
		plans:     plans,
		orgs:      orgs,
		gw:        gw,
		gate:      gate,
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

func (s *Service) invalidate(userUID string) {
	if s.gate != nil {
		s.gate.InvalidateVerdict(userUID)
	}
}

// OrderResult is returned to the client after order creation.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
	PayLink string `json:"pay_link,omitempty"`
}

// CreateOrder opens a gateway order (or a manual pay link) for a plan,
// records a payment_pending subscription and parks the account in
// payment_pending.
func (s *Service) CreateOrder(ctx context.Context, userUID string, req models.DummyOrder) (*OrderResult, error) {
	const op = "billing.CreateOrder"

	plan, err := s.plans.GetPlan(ctx, req.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	amount := plan.EffectivePrice()
	if plan.Category == models.CategoryOrganization {
		if req.OrganizationUID == "" {
			return nil, fmt.Errorf("%s: organization plan requires organization_uid", op)
		}
		members, err := s.orgs.ListMembers(ctx, req.OrganizationUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		amount = plan.OrganizationPrice(len(members))
	}

	receipt := fmt.Sprintf("sub_%s_%d", userUID, s.now().Unix())

	result := &OrderResult{Amount: amount}
	if req.Method == "upi" {
		link, err := s.gw.CreatePaymentLink(ctx, amount, receipt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.OrderID = link.OrderID
		result.PayLink = link.URL
	} else {
		order, err := s.gw.CreateOrder(ctx, amount, receipt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result.OrderID = order.ID
	}

	now := s.now()
	notes := ""
	if req.OrganizationUID != "" {
		notes = fmt.Sprintf("organization:%s:plan:%d", req.OrganizationUID, plan.ID)
	}
	pending := models.Subscription{
		UserUID:   user.UID,
		Plan:      plan.Type,
		StartDate: now,
		EndDate:   now,
		Status:    models.StatusPaymentPending,
		OrderID:   &result.OrderID,
		Notes:     notes,
	}
	if _, err := s.subs.CreateSubscription(ctx, pending); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.UpdateSubscriptionStatus(ctx, user.UID, models.StatusPaymentPending); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(user.UID)

	s.log.Info("order created",
		slog.String("user_uid", user.UID),
		slog.String("order_id", result.OrderID),
		slog.Int("amount", amount))
	return result, nil
}

// VerifyPayment checks either the gateway signature or the manual
// transaction reference for a pending order and, on success, opens the paid
// window: exactly one record with end = start + plan duration, account
// active.
func (s *Service) VerifyPayment(ctx context.Context, userUID string, req models.DummyVerify) (*models.Subscription, error) {
	const op = "billing.VerifyPayment"

	var pending *models.Subscription
	var err error
	var paymentRef string

	switch {
	case req.Signature != "":
		pending, err = s.subs.FindByOrderID(ctx, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !s.gw.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
			return nil, ErrVerificationFailed
		}
		paymentRef = req.PaymentID

	case req.TransactionRef != "":
		pending, err = s.subs.FindPendingByUser(ctx, userUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orderID := ""
		if pending.OrderID != nil {
			orderID = *pending.OrderID
		}
		if !s.gw.VerifyTransactionRef(req.TransactionRef, orderID) {
			return nil, ErrVerificationFailed
		}
		paymentRef = req.TransactionRef

	default:
		return nil, ErrVerificationFailed
	}

	if pending.UserUID != userUID {
		return nil, ErrVerificationFailed
	}

	start := s.now()
	end := planperiod.EndDate(start, pending.Plan)
	if err := s.subs.MarkVerified(ctx, pending.ID, paymentRef, start, end); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateSubscriptionStatus(ctx, userUID, models.StatusActive); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)

	if orgUID, planID, ok := orgRef(pending.Notes); ok {
		s.recordOrganizationSubscription(ctx, orgUID, planID, pending.Plan, start, end)
	}

	verified := *pending
	verified.Status = models.StatusActive
	verified.PaymentID = &paymentRef
	verified.StartDate = start
	verified.EndDate = end

	s.log.Info("payment verified",
		slog.String("user_uid", userUID),
		slog.Int("subscription_id", pending.ID))
	return &verified, nil
}

// VerifyFromWebhook handles a gateway-signed payment event. The webhook
// handler has already verified the HMAC of the raw body, so the order is
// promoted directly.
func (s *Service) VerifyFromWebhook(ctx context.Context, orderID, paymentID string) error {
	const op = "billing.VerifyFromWebhook"

	pending, err := s.subs.FindByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pending.Status != models.StatusPaymentPending {
		// Already verified through the checkout callback; nothing to do.
		return nil
	}

	start := s.now()
	end := planperiod.EndDate(start, pending.Plan)
	if err := s.subs.MarkVerified(ctx, pending.ID, paymentID, start, end); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateSubscriptionStatus(ctx, pending.UserUID, models.StatusActive); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(pending.UserUID)

	if orgUID, planID, ok := orgRef(pending.Notes); ok {
		s.recordOrganizationSubscription(ctx, orgUID, planID, pending.Plan, start, end)
	}
	return nil
}

// StartTrial idempotently opens the trial window. A second call for the same
// account returns the existing window unchanged.
func (s *Service) StartTrial(ctx context.Context, userUID string) (*models.User, error) {
	const op = "billing.StartTrial"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.TrialEndDate != nil {
		return user, nil
	}

	end := s.now().AddDate(0, 0, s.trialDays)
	if err := s.users.SetTrialEndDate(ctx, userUID, end); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)

	user.TrialEndDate = &end
	user.SubscriptionStatus = models.StatusTrial
	s.log.Info("trial started", slog.String("user_uid", userUID))
	return user, nil
}

// ExtendTrial pushes the trial end date forward by the given number of days
// and returns the account to trial. Extension is counted from the current
// trial end when it is still in the future, otherwise from now.
func (s *Service) ExtendTrial(ctx context.Context, userUID string, days int) (*models.User, error) {
	const op = "billing.ExtendTrial"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	base := s.now()
	if user.TrialEndDate != nil && user.TrialEndDate.After(base) {
		base = *user.TrialEndDate
	}
	end := base.AddDate(0, 0, days)

	if err := s.users.SetTrialEndDate(ctx, userUID, end); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)

	user.TrialEndDate = &end
	user.SubscriptionStatus = models.StatusTrial
	s.log.Info("trial extended",
		slog.String("user_uid", userUID),
		slog.Int("days", days))
	return user, nil
}

// Cancel moves the account and its live records to cancelled with a
// cancellation timestamp.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "billing.Cancel"

	at := s.now()
	if _, err := s.subs.CancelActive(ctx, userUID, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateSubscriptionStatus(ctx, userUID, models.StatusCancelled); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)

	s.log.Info("subscription cancelled", slog.String("user_uid", userUID))
	return nil
}

// Reject is the manual admin action failing a pending payment.
func (s *Service) Reject(ctx context.Context, userUID, note string) error {
	const op = "billing.Reject"

	if _, err := s.subs.RejectPending(ctx, userUID, note); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateSubscriptionStatus(ctx, userUID, models.StatusRejected); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(userUID)
	return nil
}

// CurrentResult is the user-facing view of the authoritative record.
type CurrentResult struct {
	IsSubscriptionActive bool                      `json:"is_subscription_active"`
	SubscriptionStatus   models.SubscriptionStatus `json:"subscription_status"`
	Subscription         *models.Subscription      `json:"subscription,omitempty"`
	TrialEndDate         *time.Time                `json:"trial_end_date,omitempty"`
}

// CurrentSubscription returns the authoritative record plus the derived
// activity flag.
func (s *Service) CurrentSubscription(ctx context.Context, userUID string) (*CurrentResult, error) {
	const op = "billing.CurrentSubscription"

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &CurrentResult{
		SubscriptionStatus: user.SubscriptionStatus,
		TrialEndDate:       user.TrialEndDate,
	}

	sub, err := s.subs.FindAuthoritative(ctx, userUID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		// The derived flag must agree with the access gate: a trial counts
		// only while its window holds under the same day-boundary rule,
		// even if the sweep has not flipped the status yet.
		switch user.SubscriptionStatus {
		case models.StatusTrial:
			result.IsSubscriptionActive = user.TrialEndDate != nil &&
				!dateutil.StartOfDay(*user.TrialEndDate).Before(dateutil.StartOfDay(s.now()))
		case models.StatusPaymentPending:
			result.IsSubscriptionActive = true
		}
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result.IsSubscriptionActive = true
	result.Subscription = sub
	return result, nil
}

// recordOrganizationSubscription stamps the paid window onto the
// organization the order was created for, with the catalog plan's pricing —
// the same prices the order amount was computed from, not whatever the
// organization row currently holds.
func (s *Service) recordOrganizationSubscription(ctx context.Context, orgUID string, planID int,
	planType models.Plan, start, end time.Time) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		s.log.Error("failed to load plan for verified organization order",
			slog.String("organization_uid", orgUID),
			slog.Int("plan_id", planID))
		return
	}
	if err := s.orgs.SetOrganizationSubscription(ctx, orgUID, planType,
		start, end, models.StatusActive, plan.OrganizationBasePrice, plan.MemberPrice); err != nil {
		s.log.Error("failed to record organization subscription",
			slog.String("organization_uid", orgUID))
	}
}

// orgRef extracts the organization and catalog plan a pending record was
// created for.
func orgRef(notes string) (orgUID string, planID int, ok bool) {
	const prefix = "organization:"
	if !strings.HasPrefix(notes, prefix) {
		return "", 0, false
	}
	rest := strings.TrimPrefix(notes, prefix)
	if i := strings.Index(rest, ":plan:"); i >= 0 {
		planID, _ = strconv.Atoi(rest[i+len(":plan:"):])
		rest = rest[:i]
	}
	return rest, planID, rest != ""
}
