// Package pgstore is the PostgreSQL Repository adapter, backed by
// database/sql over the pgx stdlib driver.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	authcore "github.com/taskgrid/authcore"
	"github.com/taskgrid/authcore/authz"
)

const pgUniqueViolation = "23505"

// Schema is the DDL this adapter expects. Migrate applies it verbatim; run
// a real migration tool in production.
const Schema = `
create table if not exists users (
	id uuid primary key,
	tenant_id uuid not null,
	email text not null,
	username text not null default '',
	password_hash text not null,
	roles jsonb not null default '[]',
	permissions jsonb not null default '[]',
	department_id uuid,
	mfa_enabled boolean not null default false,
	mfa_secret text not null default '',
	is_active boolean not null default true,
	email_verified boolean not null default false,
	last_login_at timestamptz,
	last_password_change_at timestamptz not null,
	created_at timestamptz not null,
	updated_at timestamptz not null,
	unique (tenant_id, email)
);

create table if not exists refresh_tokens (
	id uuid primary key,
	user_id uuid not null references users(id) on delete cascade,
	tenant_id uuid not null,
	token_hash text not null,
	jti text not null,
	parent_token_id uuid,
	family_id uuid not null,
	device_fingerprint text not null default '',
	is_revoked boolean not null default false,
	expires_at timestamptz not null,
	created_at timestamptz not null,
	unique (tenant_id, jti)
);
create index if not exists refresh_tokens_family_idx on refresh_tokens (tenant_id, family_id);
create index if not exists refresh_tokens_user_idx on refresh_tokens (tenant_id, user_id);

create table if not exists password_reset_tokens (
	id uuid primary key,
	user_id uuid not null references users(id) on delete cascade,
	tenant_id uuid not null,
	token text not null unique,
	is_used boolean not null default false,
	expires_at timestamptz not null,
	created_at timestamptz not null
);
`

type Store struct {
	db *sql.DB
}

var _ authcore.Repository = (*Store)(nil)

// Open connects with pool settings sized for a typical auth workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

const userColumns = `id, tenant_id, email, username, password_hash, roles, permissions,
	department_id, mfa_enabled, mfa_secret, is_active, email_verified,
	last_login_at, last_password_change_at, created_at, updated_at`

func (s *Store) FindUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and email=$2`,
		tenantID, email)
	return scanUser(row)
}

func (s *Store) FindUserByID(ctx context.Context, tenantID, userID uuid.UUID) (*authcore.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and id=$2`,
		tenantID, userID)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, user *authcore.User) error {
	roles, perms, err := encodeGrants(user)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		user.ID, user.TenantID, user.Email, user.Username, user.PasswordHash,
		roles, perms, user.DepartmentID, user.MFAEnabled, user.MFASecret,
		user.IsActive, user.EmailVerified, user.LastLoginAt,
		user.LastPasswordChangeAt, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return authcore.ErrDuplicateEmail
	}
	return err
}

func (s *Store) SaveUser(ctx context.Context, user *authcore.User) error {
	roles, perms, err := encodeGrants(user)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update users set email=$3, username=$4, password_hash=$5, roles=$6,
			permissions=$7, department_id=$8, mfa_enabled=$9, mfa_secret=$10,
			is_active=$11, email_verified=$12, last_login_at=$13,
			last_password_change_at=$14, updated_at=$15
		where tenant_id=$1 and id=$2`,
		user.TenantID, user.ID, user.Email, user.Username, user.PasswordHash,
		roles, perms, user.DepartmentID, user.MFAEnabled, user.MFASecret,
		user.IsActive, user.EmailVerified, user.LastLoginAt,
		user.LastPasswordChangeAt, user.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRefreshRecord(ctx context.Context, record *authcore.RefreshTokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens
			(id, user_id, tenant_id, token_hash, jti, parent_token_id,
			 family_id, device_fingerprint, is_revoked, expires_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		record.ID, record.UserID, record.TenantID, record.TokenHash,
		record.JTI, record.ParentTokenID, record.FamilyID,
		record.DeviceFingerprint, record.IsRevoked, record.ExpiresAt,
		record.CreatedAt)
	return err
}

func (s *Store) FindRefreshByJTI(ctx context.Context, tenantID uuid.UUID, jti string) (*authcore.RefreshTokenRecord, error) {
	rec := &authcore.RefreshTokenRecord{}
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, tenant_id, token_hash, jti, parent_token_id,
			family_id, device_fingerprint, is_revoked, expires_at, created_at
		from refresh_tokens where tenant_id=$1 and jti=$2`,
		tenantID, jti).Scan(
		&rec.ID, &rec.UserID, &rec.TenantID, &rec.TokenHash, &rec.JTI,
		&rec.ParentTokenID, &rec.FamilyID, &rec.DeviceFingerprint,
		&rec.IsRevoked, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RevokeRefresh is a conditional update; the affected-row count is the
// race arbiter between concurrent rotations.
func (s *Store) RevokeRefresh(ctx context.Context, tenantID uuid.UUID, jti string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens set is_revoked=true
		where tenant_id=$1 and jti=$2 and is_revoked=false`,
		tenantID, jti)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) RevokeFamily(ctx context.Context, tenantID, familyID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens set is_revoked=true
		where tenant_id=$1 and family_id=$2`,
		tenantID, familyID)
	return err
}

func (s *Store) RevokeAllForUser(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens set is_revoked=true
		where tenant_id=$1 and user_id=$2`,
		tenantID, userID)
	return err
}

func (s *Store) CreateResetToken(ctx context.Context, token *authcore.PasswordResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into password_reset_tokens
			(id, user_id, tenant_id, token, is_used, expires_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)`,
		token.ID, token.UserID, token.TenantID, token.Token,
		token.IsUsed, token.ExpiresAt, token.CreatedAt)
	return err
}

func (s *Store) FindValidResetToken(ctx context.Context, token string) (*authcore.PasswordResetToken, error) {
	rec := &authcore.PasswordResetToken{}
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, tenant_id, token, is_used, expires_at, created_at
		from password_reset_tokens
		where token=$1 and is_used=false and expires_at > now()`,
		token).Scan(
		&rec.ID, &rec.UserID, &rec.TenantID, &rec.Token, &rec.IsUsed,
		&rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) InvalidateResetToken(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`update password_reset_tokens set is_used=true where token=$1`, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*authcore.User, error) {
	u := &authcore.User{}
	var roles, perms []byte
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.Username, &u.PasswordHash,
		&roles, &perms, &u.DepartmentID, &u.MFAEnabled, &u.MFASecret,
		&u.IsActive, &u.EmailVerified, &u.LastLoginAt,
		&u.LastPasswordChangeAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var roleNames, permNames []string
	if err := json.Unmarshal(roles, &roleNames); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if err := json.Unmarshal(perms, &permNames); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	u.Roles = authz.RolesFromStrings(roleNames)
	u.Permissions = authz.PermissionsFromStrings(permNames)
	return u, nil
}

func encodeGrants(user *authcore.User) ([]byte, []byte, error) {
	roles, err := json.Marshal(authz.RoleStrings(user.Roles))
	if err != nil {
		return nil, nil, fmt.Errorf("encode roles: %w", err)
	}
	perms, err := json.Marshal(authz.PermissionStrings(user.Permissions))
	if err != nil {
		return nil, nil, fmt.Errorf("encode permissions: %w", err)
	}
	return roles, perms, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
