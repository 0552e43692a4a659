package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/authz"
	"github.com/taskgrid/authcore/jwt"
)

// Login verifies credentials and, when required, the TOTP code, then mints
// an access token and a new root refresh token (fresh family). Unknown
// email, inactive account, and wrong password all yield the identical
// ErrInvalidCredentials; internal logs keep the distinction.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(in.Email)
	tenant := in.TenantID.String()

	user, err := e.repo.FindUserByEmail(ctx, in.TenantID, email)
	if err != nil {
		if isMissing(err) {
			return nil, e.loginRejected(ctx, tenant, "", "user_not_found")
		}
		return nil, infraErr("find user by email", err)
	}

	if !user.IsActive {
		return nil, e.loginRejected(ctx, tenant, user.ID.String(), "user_inactive")
	}

	ok, err := e.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, infraErr("verify password", err)
	}
	if !ok {
		return nil, e.loginRejected(ctx, tenant, user.ID.String(), "password_mismatch")
	}

	if user.MFAEnabled {
		if in.MFACode == "" {
			e.metricInc(MetricMFARequired)
			return nil, ErrMFARequired
		}
		if !e.totp.Verify(user.MFASecret, in.MFACode, totpWindow) {
			e.metricInc(MetricMFAFailure)
			e.emitAudit(ctx, auditEventLoginFailed, false, tenant, user.ID.String(), ErrInvalidMFACode, func() map[string]string {
				return map[string]string{"reason": "mfa_code_invalid"}
			})
			return nil, ErrInvalidMFACode
		}
	}

	pair, err := e.openSession(ctx, user, in.DeviceFingerprint)
	if err != nil {
		return nil, err
	}

	now := nowUTC()
	user.LastLoginAt = &now
	if err := e.repo.SaveUser(ctx, user); err != nil {
		return nil, infraErr("save user", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventUserLoggedIn, true, tenant, user.ID.String(), nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	e.logger.WithFields(logFields("user_id", user.ID, "tenant_id", in.TenantID)).Info("user logged in")

	return pair, nil
}

// openSession mints the access token and the root record of a fresh family.
func (e *Engine) openSession(ctx context.Context, user *User, fingerprint string) (*TokenPair, error) {
	access, err := e.signAccess(user)
	if err != nil {
		return nil, infraErr("sign access token", err)
	}

	jti := uuid.NewString()
	refresh, err := e.tokens.SignRefresh(user.ID.String(), user.TenantID.String(), jti)
	if err != nil {
		return nil, infraErr("sign refresh token", err)
	}

	now := nowUTC()
	record := &RefreshTokenRecord{
		ID:                uuid.New(),
		UserID:            user.ID,
		TenantID:          user.TenantID,
		TokenHash:         hashToken(refresh),
		JTI:               jti,
		FamilyID:          uuid.New(),
		DeviceFingerprint: fingerprint,
		ExpiresAt:         now.Add(e.tokens.RefreshTTL()),
		CreatedAt:         now,
	}
	if err := e.repo.CreateRefreshRecord(ctx, record); err != nil {
		return nil, infraErr("create refresh record", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(e.tokens.AccessTTL().Seconds()),
	}, nil
}

func (e *Engine) signAccess(user *User) (string, error) {
	var dept *string
	if user.DepartmentID != nil {
		s := user.DepartmentID.String()
		dept = &s
	}
	return e.tokens.SignAccess(jwt.AccessInput{
		UserID:       user.ID.String(),
		TenantID:     user.TenantID.String(),
		Email:        user.Email,
		Roles:        authz.RoleStrings(user.Roles),
		Permissions:  authz.PermissionStrings(user.Permissions),
		DepartmentID: dept,
	})
}

// loginRejected records the internal reason and returns the coalesced
// credential error.
func (e *Engine) loginRejected(ctx context.Context, tenantID, userID, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailed, false, tenantID, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	e.logger.WithFields(logFields("tenant_id", tenantID, "reason", reason)).Warn("login rejected")
	return ErrInvalidCredentials
}
