package models

import "time"

// Plan identifies the billing period a subscription was bought for.
type Plan string

// Supported billing plans.
const (
	PlanMonthly    Plan = "monthly"
	PlanQuarterly  Plan = "quarterly"
	PlanHalfYearly Plan = "half_yearly"
	PlanYearly     Plan = "yearly"
	PlanPaid       Plan = "paid"
)

// Subscription is one payment-history record of an account. At most one
// record per user has status active/paid with EndDate in the future; that
// record answers "is this user currently paid".
type Subscription struct {
	ID          int                // Row identifier
	UserUID     string             // Owning account
	Plan        Plan               // Billing period
	StartDate   time.Time          // When the paid window opened
	EndDate     time.Time          // When the paid window closes
	Status      SubscriptionStatus // Mirrors the account status enum subset
	OrderID     *string            // Gateway order reference
	PaymentID   *string            // Gateway payment/transaction reference
	CancelledAt *time.Time         // Set on explicit cancellation
	Notes       string             // Freeform, e.g. manual UPI reference
	CreatedAt   time.Time
}

// DummyOrder carries the JSON body of an order-creation request. Method
// selects the gateway checkout flow ("gateway") or the manual UPI-reference
// flow ("upi").
type DummyOrder struct {
	PlanID          int    `json:"plan_id" validate:"required,gt=0"`
	Method          string `json:"method,omitempty" validate:"omitempty,oneof=gateway upi"`
	OrganizationUID string `json:"organization_uid,omitempty" validate:"omitempty,uuid"`
}

// DummyVerify carries the JSON body of a payment-verification request.
// Either the signature triple or the transaction reference must be present.
type DummyVerify struct {
	OrderID        string `json:"order_id,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
	Signature      string `json:"signature,omitempty"`
	TransactionRef string `json:"transaction_ref,omitempty"`
}
