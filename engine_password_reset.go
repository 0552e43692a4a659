package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/password"
)

const resetTokenBytes = 32

// RequestPasswordReset issues a single-use reset token and hands it to the
// configured notifier. To keep account enumeration impossible it returns nil
// for unknown and inactive accounts alike; only infrastructure failures
// surface.
func (e *Engine) RequestPasswordReset(ctx context.Context, tenantID uuid.UUID, email string) error {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}

	user, err := e.repo.FindUserByEmail(ctx, tenantID, normalizeEmail(email))
	if err != nil {
		if isMissing(err) {
			return nil
		}
		return infraErr("find user by email", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return infraErr("generate reset token", err)
	}

	now := nowUTC()
	record := &PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TenantID:  tenantID,
		Token:     token,
		ExpiresAt: now.Add(e.config.ResetTTL),
		CreatedAt: now,
	}
	if err := e.repo.CreateResetToken(ctx, record); err != nil {
		return infraErr("create reset token", err)
	}

	if e.notifier != nil {
		if err := e.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
			return infraErr("send reset notification", err)
		}
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequested, true, tenantID.String(), user.ID.String(), nil, nil)
	return nil
}

// ResetPassword consumes a reset token, rehashes the password, and revokes
// every refresh token the user holds. The new password passes the same
// strength and breach gates as registration.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}

	record, err := e.repo.FindValidResetToken(ctx, token)
	if err != nil {
		if isMissing(err) {
			e.metricInc(MetricResetFailure)
			return ErrInvalidResetToken
		}
		return infraErr("find reset token", err)
	}

	if ok, reason := password.ValidateStrength(newPassword); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, reason)
	}
	if e.breach.IsCompromised(ctx, newPassword) {
		e.metricInc(MetricBreachCheckPositive)
		return ErrCompromisedPassword
	}

	user, err := e.repo.FindUserByID(ctx, record.TenantID, record.UserID)
	if err != nil {
		if isMissing(err) {
			e.metricInc(MetricResetFailure)
			return ErrInvalidResetToken
		}
		return infraErr("find user by id", err)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return infraErr("hash password", err)
	}

	now := nowUTC()
	user.PasswordHash = hash
	user.LastPasswordChangeAt = now
	user.UpdatedAt = now
	if err := e.repo.SaveUser(ctx, user); err != nil {
		return infraErr("save user", err)
	}

	if err := e.repo.InvalidateResetToken(ctx, token); err != nil && !isMissing(err) {
		return infraErr("invalidate reset token", err)
	}

	// A password change invalidates every live session, regardless of family.
	if err := e.repo.RevokeAllForUser(ctx, record.TenantID, user.ID); err != nil {
		return infraErr("revoke user sessions", err)
	}

	e.metricInc(MetricResetCompleted)
	e.emitAudit(ctx, auditEventResetCompleted, true, record.TenantID.String(), user.ID.String(), nil, nil)
	e.logger.WithFields(logFields("tenant_id", record.TenantID, "user_id", user.ID)).Info("password reset completed")
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
