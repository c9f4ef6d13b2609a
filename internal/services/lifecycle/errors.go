package lifecycle

import "errors"

// Gate-denial taxonomy. Each sentinel maps to one branch of the status
// switch; handlers translate them into the structured denial envelope.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrTrialExpired = errors.New("trial period has expired")
	ErrInactive     = errors.New("subscription is inactive")
	ErrCancelled    = errors.New("subscription has been cancelled")
	ErrRejected     = errors.New("payment was rejected")
	ErrInvalidState = errors.New("unrecognized subscription status")
)
