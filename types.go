package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/authz"
)

// User is the identity and security-state aggregate. Email is unique within
// a tenant. MFASecret may be present while MFAEnabled is still false:
// enrollment is two-phase and the flag flips only after code verification.
// Users are never hard-deleted; deactivation clears IsActive.
type User struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	Email                string
	Username             string
	PasswordHash         string
	Roles                []authz.Role
	Permissions          []authz.Permission
	DepartmentID         *uuid.UUID
	MFAEnabled           bool
	MFASecret            string
	IsActive             bool
	EmailVerified        bool
	LastLoginAt          *time.Time
	LastPasswordChangeAt time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RefreshTokenRecord is one issued refresh token. TokenHash is a one-way
// SHA-256 of the signed token string; the raw token is never stored. All
// descendants of one login share FamilyID. Records are append-only: rotation
// creates a child (ParentTokenID set, FamilyID inherited) and the only
// mutation ever applied is the one-way IsRevoked flip.
type RefreshTokenRecord struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TenantID          uuid.UUID
	TokenHash         string
	JTI               string
	ParentTokenID     *uuid.UUID
	FamilyID          uuid.UUID
	DeviceFingerprint string
	IsRevoked         bool
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

// PasswordResetToken is a single-use opaque credential handed to the reset
// notifier. Valid only while unused and unexpired.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Token     string
	IsUsed    bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repository is the persistence contract consumed by the engine. Adapters
// must scope every lookup by tenant, return ErrNotFound for missing records,
// and provide per-row atomicity: RevokeRefresh is a conditional
// check-and-set whose bool result is the rotation-race arbiter.
type Repository interface {
	FindUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
	FindUserByID(ctx context.Context, tenantID, userID uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	SaveUser(ctx context.Context, user *User) error

	CreateRefreshRecord(ctx context.Context, record *RefreshTokenRecord) error
	FindRefreshByJTI(ctx context.Context, tenantID uuid.UUID, jti string) (*RefreshTokenRecord, error)
	// RevokeRefresh flips IsRevoked if and only if the record exists and is
	// not yet revoked. It returns true when this call performed the flip;
	// false means the record was missing or already revoked.
	RevokeRefresh(ctx context.Context, tenantID uuid.UUID, jti string) (bool, error)
	RevokeFamily(ctx context.Context, tenantID, familyID uuid.UUID) error
	RevokeAllForUser(ctx context.Context, tenantID, userID uuid.UUID) error

	CreateResetToken(ctx context.Context, token *PasswordResetToken) error
	// FindValidResetToken returns the token only while it is unused and
	// unexpired; otherwise ErrNotFound.
	FindValidResetToken(ctx context.Context, token string) (*PasswordResetToken, error)
	InvalidateResetToken(ctx context.Context, token string) error
}

// ResetNotifier delivers password-reset tokens out of band. The core never
// sends email itself.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// TokenPair is the result of Login and RefreshRotate. ExpiresIn is the
// access-token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// UserView is the sanitized user representation returned to callers. It
// never carries the password hash or the MFA secret.
type UserView struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Email         string
	Username      string
	Roles         []authz.Role
	Permissions   []authz.Permission
	DepartmentID  *uuid.UUID
	MFAEnabled    bool
	IsActive      bool
	EmailVerified bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
}

// MFAEnrollment is returned by EnableMFA: the raw secret plus the
// otpauth:// URI for QR enrollment.
type MFAEnrollment struct {
	Secret          string
	ProvisioningURI string
}

// RegisterInput are the arguments to Engine.Register.
type RegisterInput struct {
	TenantID uuid.UUID
	Email    string
	Username string
	Password string
}

// LoginInput are the arguments to Engine.Login. MFACode is required only
// when the account has MFA enabled; DeviceFingerprint is optional and is
// inherited by every rotation in the session chain.
type LoginInput struct {
	TenantID          uuid.UUID
	Email             string
	Password          string
	MFACode           string
	DeviceFingerprint string
}

func nowUTC() time.Time { return time.Now().UTC() }

func sanitize(u *User) *UserView {
	view := &UserView{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		Username:      u.Username,
		Roles:         append([]authz.Role(nil), u.Roles...),
		Permissions:   append([]authz.Permission(nil), u.Permissions...),
		MFAEnabled:    u.MFAEnabled,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
	if u.DepartmentID != nil {
		id := *u.DepartmentID
		view.DepartmentID = &id
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		view.LastLoginAt = &at
	}
	return view
}
