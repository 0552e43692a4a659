package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/jwt"
)

// RefreshRotate exchanges a valid refresh token for a fresh token pair.
//
// The presented record is conditionally revoked before the child is minted;
// that early revoke is what makes replay observable. If the record is
// missing, already revoked, or loses the revoke race, the whole family is
// shut down and the caller gets ErrInvalidToken, forcing re-login. The
// caller cannot distinguish decode failure, expiry, and reuse by design.
func (e *Engine) RefreshRotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.decodeRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.logger.WithError(err).Debug("refresh token rejected at decode")
		return nil, ErrInvalidToken
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidToken
	}
	jti := claims.JTI()

	record, err := e.repo.FindRefreshByJTI(ctx, tenantID, jti)
	if err != nil {
		if isMissing(err) {
			// Consumed-and-purged or forged jti: nothing to correlate a
			// family from, reject outright.
			e.metricInc(MetricRefreshFailure)
			return nil, ErrInvalidToken
		}
		return nil, infraErr("find refresh record", err)
	}

	if record.IsRevoked {
		return nil, e.reuseDetected(ctx, record)
	}
	if nowUTC().After(record.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidToken
	}

	user, err := e.repo.FindUserByID(ctx, tenantID, record.UserID)
	if err != nil {
		if isMissing(err) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrInvalidToken
		}
		return nil, infraErr("find user by id", err)
	}
	if !user.IsActive {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidToken
	}

	// Conditional check-and-set: exactly one concurrent rotation wins.
	won, err := e.repo.RevokeRefresh(ctx, tenantID, jti)
	if err != nil {
		return nil, infraErr("revoke refresh record", err)
	}
	if !won {
		return nil, e.reuseDetected(ctx, record)
	}

	access, err := e.signAccess(user)
	if err != nil {
		return nil, infraErr("sign access token", err)
	}
	newJTI := uuid.NewString()
	refresh, err := e.tokens.SignRefresh(user.ID.String(), tenantID.String(), newJTI)
	if err != nil {
		return nil, infraErr("sign refresh token", err)
	}

	now := nowUTC()
	parentID := record.ID
	child := &RefreshTokenRecord{
		ID:                uuid.New(),
		UserID:            user.ID,
		TenantID:          tenantID,
		TokenHash:         hashToken(refresh),
		JTI:               newJTI,
		ParentTokenID:     &parentID,
		FamilyID:          record.FamilyID,
		DeviceFingerprint: record.DeviceFingerprint,
		ExpiresAt:         now.Add(e.tokens.RefreshTTL()),
		CreatedAt:         now,
	}
	if err := e.repo.CreateRefreshRecord(ctx, child); err != nil {
		return nil, infraErr("create refresh record", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRotated, true, tenantID.String(), user.ID.String(), nil, func() map[string]string {
		return map[string]string{"family_id": record.FamilyID.String()}
	})

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(e.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the single presented refresh token. Revoking an already
// revoked or missing record is not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string, tenantID uuid.UUID) error {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}

	claims, err := e.decodeRefresh(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}

	if _, err := e.repo.RevokeRefresh(ctx, tenantID, claims.JTI()); err != nil && !isMissing(err) {
		return infraErr("revoke refresh record", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventUserLoggedOut, true, tenantID.String(), claims.Subject, nil, nil)
	return nil
}

// reuseDetected shuts down the whole family of a replayed token.
func (e *Engine) reuseDetected(ctx context.Context, record *RefreshTokenRecord) error {
	e.metricInc(MetricRefreshReuseDetected)

	if err := e.repo.RevokeFamily(ctx, record.TenantID, record.FamilyID); err != nil {
		return infraErr("revoke token family", err)
	}

	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, auditEventTokenReuseDetected, false, record.TenantID.String(), record.UserID.String(), ErrInvalidToken, func() map[string]string {
		return map[string]string{"family_id": record.FamilyID.String(), "jti": record.JTI}
	})
	e.logger.WithFields(logFields(
		"tenant_id", record.TenantID,
		"user_id", record.UserID,
		"family_id", record.FamilyID,
	)).Warn("refresh token reuse detected, family revoked")

	return ErrInvalidToken
}

func (e *Engine) decodeRefresh(token string) (*jwt.Claims, error) {
	claims, err := e.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != jwt.TypeRefresh || claims.JTI() == "" {
		return nil, jwt.ErrTokenMalformed
	}
	return claims, nil
}
