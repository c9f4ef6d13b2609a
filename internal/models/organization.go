package models

import "time"

// Organization groups accounts under one multi-seat subscription. Only the
// admin member may mutate membership or billing.
type Organization struct {
	UID         string // Unique organization identifier
	Name        string // Display name
	AdminUID    string // Owning account
	Plan        Plan   // Billing period of the organization subscription
	StartDate   *time.Time
	EndDate     *time.Time
	Status      SubscriptionStatus // Lifecycle state of the org subscription
	BasePrice   int                // Base amount of the subscribed plan
	MemberPrice int                // Per-seat amount of the subscribed plan
	CreatedAt   time.Time
}

// OrgMember is one seat of an organization.
type OrgMember struct {
	OrganizationUID string
	UserUID         string
	Role            string // "admin" or "member"
	JoinedAt        time.Time
}

// InviteLink is a single-use, time-bounded membership invitation.
type InviteLink struct {
	Token           string
	OrganizationUID string
	ExpiresAt       time.Time
	Used            bool
	CreatedAt       time.Time
}

// DummyOrganization carries the JSON body of an organization-creation request.
type DummyOrganization struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}
