package authcore

import "errors"

// Domain error taxonomy. Engine operations return exactly one of these (or
// an error wrapping one), matched with errors.Is at the transport boundary.
var (
	// ErrInvalidCredentials coalesces unknown email, inactive account, and
	// wrong password into one error to prevent user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMFARequired is returned by Login when the account has MFA enabled
	// and no code was supplied.
	ErrMFARequired = errors.New("mfa code required")
	// ErrInvalidMFACode is returned when a supplied TOTP code fails
	// verification.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrDuplicateEmail is returned by Register when the (tenant, email)
	// pair already exists.
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrWeakPassword is returned when the password fails the strength
	// policy; the wrapping error carries the first violated rule.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrCompromisedPassword is returned when the breach lookup reports the
	// password as known-compromised.
	ErrCompromisedPassword = errors.New("password has appeared in a data breach")
	// ErrInvalidToken covers refresh-token decode failures, expiry, and
	// revoked or reused tokens. The causes are deliberately
	// indistinguishable to the caller.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotFound is returned for missing users and missing repository
	// records.
	ErrNotFound = errors.New("not found")
	// ErrMFAAlreadyEnabled is returned by EnableMFA when enrollment has
	// already completed.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotSetUp is returned by VerifyMFA when enrollment was never
	// started.
	ErrMFANotSetUp = errors.New("mfa enrollment not started")
	// ErrInvalidResetToken is returned by ResetPassword for a missing, used,
	// or expired reset token.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrInfrastructure marks retryable failures of a collaborator
	// (repository, signing key, notifier). It is never a security decision.
	ErrInfrastructure = errors.New("infrastructure failure")
	// ErrEngineNotReady is returned when an Engine is used before Build
	// completed.
	ErrEngineNotReady = errors.New("engine not ready")
)
