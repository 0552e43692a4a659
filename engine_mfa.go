package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/totp"
)

// EnableMFA begins TOTP enrollment for a user. A fresh secret is stored on
// the account but MFA stays disabled until the user proves possession of it
// through VerifyMFA. Calling this for an account with MFA already active
// returns ErrMFAAlreadyEnabled rather than silently rotating the secret.
func (e *Engine) EnableMFA(ctx context.Context, tenantID, userID uuid.UUID) (*MFAEnrollment, error) {
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
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, infraErr("generate totp secret", err)
	}

	user.MFASecret = secret
	user.UpdatedAt = nowUTC()
	if err := e.repo.SaveUser(ctx, user); err != nil {
		return nil, infraErr("save user", err)
	}

	e.metricInc(MetricMFAEnrollmentStarted)
	e.emitAudit(ctx, auditEventMFAEnrollStarted, true, tenantID.String(), userID.String(), nil, nil)

	return &MFAEnrollment{
		Secret:          secret,
		ProvisioningURI: e.totp.ProvisioningURI(secret, user.Email),
	}, nil
}

// VerifyMFA completes enrollment by checking a live code against the stored
// secret. Only after this succeeds does Login start demanding codes.
func (e *Engine) VerifyMFA(ctx context.Context, tenantID, userID uuid.UUID, code string) error {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}

	user, err := e.repo.FindUserByID(ctx, tenantID, userID)
	if err != nil {
		if isMissing(err) {
			return ErrNotFound
		}
		return infraErr("find user by id", err)
	}
	if user.MFASecret == "" {
		return ErrMFANotSetUp
	}
	if user.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}

	if !e.totp.Verify(user.MFASecret, code, totpWindow) {
		e.metricInc(MetricMFAFailure)
		return ErrInvalidMFACode
	}

	user.MFAEnabled = true
	user.UpdatedAt = nowUTC()
	if err := e.repo.SaveUser(ctx, user); err != nil {
		return infraErr("save user", err)
	}

	e.metricInc(MetricMFAEnrollmentCompleted)
	e.emitAudit(ctx, auditEventMFAEnrollCompleted, true, tenantID.String(), userID.String(), nil, nil)
	e.logger.WithFields(logFields("tenant_id", tenantID, "user_id", userID)).Info("mfa enabled")
	return nil
}
