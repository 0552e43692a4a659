package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/taskgrid/authcore/jwt"
	"github.com/taskgrid/authcore/password"
	"github.com/taskgrid/authcore/totp"
)

// totpWindow is the accepted clock-skew window in 30s steps.
const totpWindow = 1

// Engine orchestrates the authentication/session lifecycle. Construct it
// through [Builder.Build]; the zero value is not usable.
type Engine struct {
	config   Config
	repo     Repository
	hasher   *password.Hasher
	breach   *password.BreachClient
	totp     *totp.Generator
	tokens   *jwt.Manager
	notifier ResetNotifier
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *logrus.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// MetricsSnapshot copies the engine counters, for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, tenantID, userID string, cause error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: nowUTC(),
		EventType: eventType,
		TenantID:  tenantID,
		UserID:    userID,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	e.audit.Emit(ctx, event)
}

// hashToken is the one-way digest stored in place of the raw refresh token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// infraErr wraps a collaborator failure as retryable, keeping it
// distinguishable from security denials.
func infraErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInfrastructure, op, err)
}

// isMissing folds the repository's not-found result for flows where absence
// is handled, not propagated.
func isMissing(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// errorsIsDuplicate recognizes the adapter-level unique violation raised
// when two registrations race on the same (tenant, email).
func errorsIsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateEmail)
}

func logFields(pairs ...any) logrus.Fields {
	fields := make(logrus.Fields, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		fields[key] = fmt.Sprint(pairs[i+1])
	}
	return fields
}
