// Package models contains the domain structures shared between the HTTP
// layer, the business services and the storage layer.
package models

import "time"

// SubscriptionStatus is the lifecycle state of a user account. Exactly one
// value holds at any time.
type SubscriptionStatus string

// Account lifecycle states.
const (
	StatusTrial          SubscriptionStatus = "trial"
	StatusActive         SubscriptionStatus = "active"
	StatusPaid           SubscriptionStatus = "paid"
	StatusInactive       SubscriptionStatus = "inactive"
	StatusCancelled      SubscriptionStatus = "cancelled"
	StatusPaymentPending SubscriptionStatus = "payment_pending"
	StatusRejected       SubscriptionStatus = "rejected"
)

// User represents a registered account. When SubscriptionStatus is
// StatusTrial, TrialEndDate is always set. Accounts are never hard-deleted.
type User struct {
	UID                string             // Unique account identifier
	Email              string             // E-mail address, unique
	Username           string             // Display name, unique
	PasswordHash       string             // bcrypt hash of the password
	Role               string             // "user" or "admin"
	SubscriptionStatus SubscriptionStatus // Current lifecycle state
	TrialEndDate       *time.Time         // End of the free trial window
	GatewayCustomerID  *string            // Billing provider customer reference
	CreatedAt          time.Time
}

// TrialNotice is the message published to the notification queue for a trial
// milestone (3-day warning, 1-day final reminder, expiry notice).
type TrialNotice struct {
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DaysLeft     int       `json:"days_left"`
	TrialEndDate time.Time `json:"trial_end_date"`
	Milestone    string    `json:"milestone"`
}

// ExpiryNotice is published when a paid subscription has lapsed.
type ExpiryNotice struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Plan     Plan      `json:"plan"`
	EndDate  time.Time `json:"end_date"`
}
