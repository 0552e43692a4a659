package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/authz"
	"github.com/taskgrid/authcore/password"
)

// Register creates a user with the default MEMBER grant. It fails with
// ErrDuplicateEmail when the (tenant, email) pair exists, ErrWeakPassword
// when the strength policy rejects the password, and ErrCompromisedPassword
// when the breach lookup flags it. The returned view never carries the
// password hash.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*UserView, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(in.Email)

	if ok, reason := password.ValidateStrength(in.Password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, reason)
	}

	if _, err := e.repo.FindUserByEmail(ctx, in.TenantID, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return nil, ErrDuplicateEmail
	} else if !isMissing(err) {
		return nil, infraErr("find user by email", err)
	}

	if e.breach.IsCompromised(ctx, in.Password) {
		e.metricInc(MetricRegisterCompromised)
		e.metricInc(MetricBreachCheckPositive)
		return nil, ErrCompromisedPassword
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, infraErr("hash password", err)
	}

	now := nowUTC()
	user := &User{
		ID:                   uuid.New(),
		TenantID:             in.TenantID,
		Email:                email,
		Username:             strings.TrimSpace(in.Username),
		PasswordHash:         hash,
		Roles:                []authz.Role{authz.RoleMember},
		Permissions:          authz.DefaultGrant(authz.RoleMember),
		IsActive:             true,
		EmailVerified:        false,
		LastPasswordChangeAt: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := e.repo.CreateUser(ctx, user); err != nil {
		if errorsIsDuplicate(err) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrDuplicateEmail
		}
		return nil, infraErr("create user", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventUserRegistered, true, in.TenantID.String(), user.ID.String(), nil, func() map[string]string {
		return map[string]string{"email": email, "username": user.Username}
	})
	e.logger.WithFields(logFields("user_id", user.ID, "tenant_id", in.TenantID)).Info("user registered")

	return sanitize(user), nil
}

// GetUser returns the sanitized view of one user, or ErrNotFound.
func (e *Engine) GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*UserView, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.repo.FindUserByID(ctx, tenantID, userID)
	if err != nil {
		if isMissing(err) {
			return nil, ErrNotFound
		}
		return nil, infraErr("find user by id", err)
	}
	return sanitize(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
