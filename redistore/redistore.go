// Package redistore is a Redis-backed Repository adapter. Refresh-token
// records live in hashes keyed by (tenant, jti); family and per-user index
// sets make bulk revocation a set walk instead of a scan. The revoke
// check-and-set runs server-side in Lua so concurrent rotations of the same
// token resolve to exactly one winner.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	authcore "github.com/taskgrid/authcore"
)

// revokeRefreshScript flips is_revoked only when the record exists and is
// still live. Returns 1 when this call performed the flip.
const revokeRefreshScript = `
local revoked = redis.call("HGET", KEYS[1], "is_revoked")
if revoked == false or revoked == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "is_revoked", "1")
return 1
`

var revokeRefreshLua = redis.NewScript(revokeRefreshScript)

// Store implements authcore.Repository on go-redis. All keys carry a
// configurable prefix so several deployments can share an instance.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New wraps an existing client. An empty prefix defaults to "ac".
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

var _ authcore.Repository = (*Store)(nil)

func (s *Store) userKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s:%s", s.prefix, tenantID, userID)
}

func (s *Store) emailKey(tenantID uuid.UUID, email string) string {
	return fmt.Sprintf("%s:email:%s:%s", s.prefix, tenantID, email)
}

func (s *Store) tokenKey(tenantID uuid.UUID, jti string) string {
	return fmt.Sprintf("%s:rt:%s:%s", s.prefix, tenantID, jti)
}

func (s *Store) familyKey(tenantID, familyID uuid.UUID) string {
	return fmt.Sprintf("%s:fam:%s:%s", s.prefix, tenantID, familyID)
}

func (s *Store) userTokensKey(tenantID, userID uuid.UUID) string {
	return fmt.Sprintf("%s:usertokens:%s:%s", s.prefix, tenantID, userID)
}

func (s *Store) resetKey(token string) string {
	return fmt.Sprintf("%s:reset:%s", s.prefix, token)
}

func (s *Store) FindUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*authcore.User, error) {
	id, err := s.rdb.Get(ctx, s.emailKey(tenantID, email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get email index: %w", err)
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}
	return s.FindUserByID(ctx, tenantID, userID)
}

func (s *Store) FindUserByID(ctx context.Context, tenantID, userID uuid.UUID) (*authcore.User, error) {
	blob, err := s.rdb.Get(ctx, s.userKey(tenantID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get user: %w", err)
	}
	var user authcore.User
	if err := json.Unmarshal(blob, &user); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *authcore.User) error {
	ok, err := s.rdb.SetNX(ctx, s.emailKey(user.TenantID, user.Email), user.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx email index: %w", err)
	}
	if !ok {
		return authcore.ErrDuplicateEmail
	}
	return s.writeUser(ctx, user)
}

func (s *Store) SaveUser(ctx context.Context, user *authcore.User) error {
	exists, err := s.rdb.Exists(ctx, s.userKey(user.TenantID, user.ID)).Result()
	if err != nil {
		return fmt.Errorf("redis exists user: %w", err)
	}
	if exists == 0 {
		return authcore.ErrNotFound
	}
	return s.writeUser(ctx, user)
}

func (s *Store) writeUser(ctx context.Context, user *authcore.User) error {
	blob, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.userKey(user.TenantID, user.ID), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set user: %w", err)
	}
	return nil
}

func (s *Store) CreateRefreshRecord(ctx context.Context, record *authcore.RefreshTokenRecord) error {
	fields := map[string]any{
		"id":         record.ID.String(),
		"user_id":    record.UserID.String(),
		"token_hash": record.TokenHash,
		"jti":        record.JTI,
		"family_id":  record.FamilyID.String(),
		"is_revoked": boolField(record.IsRevoked),
		"expires_at": record.ExpiresAt.Unix(),
		"created_at": record.CreatedAt.Unix(),
	}
	if record.ParentTokenID != nil {
		fields["parent_id"] = record.ParentTokenID.String()
	}
	if record.DeviceFingerprint != "" {
		fields["fingerprint"] = record.DeviceFingerprint
	}

	key := s.tokenKey(record.TenantID, record.JTI)
	// Revoked ancestors must outlive their own expiry so a replay anywhere
	// in the family window is still correlatable to the family.
	ttl := 2 * time.Until(record.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, s.familyKey(record.TenantID, record.FamilyID), record.JTI)
	pipe.Expire(ctx, s.familyKey(record.TenantID, record.FamilyID), ttl)
	pipe.SAdd(ctx, s.userTokensKey(record.TenantID, record.UserID), record.JTI)
	pipe.Expire(ctx, s.userTokensKey(record.TenantID, record.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis create refresh record: %w", err)
	}
	return nil
}

func (s *Store) FindRefreshByJTI(ctx context.Context, tenantID uuid.UUID, jti string) (*authcore.RefreshTokenRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.tokenKey(tenantID, jti)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall refresh record: %w", err)
	}
	if len(fields) == 0 {
		return nil, authcore.ErrNotFound
	}
	return decodeRecord(tenantID, fields)
}

func (s *Store) RevokeRefresh(ctx context.Context, tenantID uuid.UUID, jti string) (bool, error) {
	res, err := revokeRefreshLua.Run(ctx, s.rdb, []string{s.tokenKey(tenantID, jti)}).Int64()
	if err != nil {
		return false, fmt.Errorf("redis revoke refresh: %w", err)
	}
	return res == 1, nil
}

func (s *Store) RevokeFamily(ctx context.Context, tenantID, familyID uuid.UUID) error {
	jtis, err := s.rdb.SMembers(ctx, s.familyKey(tenantID, familyID)).Result()
	if err != nil {
		return fmt.Errorf("redis smembers family: %w", err)
	}
	return s.revokeAll(ctx, tenantID, jtis)
}

func (s *Store) RevokeAllForUser(ctx context.Context, tenantID, userID uuid.UUID) error {
	jtis, err := s.rdb.SMembers(ctx, s.userTokensKey(tenantID, userID)).Result()
	if err != nil {
		return fmt.Errorf("redis smembers user tokens: %w", err)
	}
	return s.revokeAll(ctx, tenantID, jtis)
}

func (s *Store) revokeAll(ctx context.Context, tenantID uuid.UUID, jtis []string) error {
	if len(jtis) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, jti := range jtis {
		pipe.HSet(ctx, s.tokenKey(tenantID, jti), "is_revoked", "1")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis revoke batch: %w", err)
	}
	return nil
}

func (s *Store) CreateResetToken(ctx context.Context, token *authcore.PasswordResetToken) error {
	blob, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode reset token: %w", err)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.rdb.Set(ctx, s.resetKey(token.Token), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis set reset token: %w", err)
	}
	return nil
}

func (s *Store) FindValidResetToken(ctx context.Context, token string) (*authcore.PasswordResetToken, error) {
	blob, err := s.rdb.Get(ctx, s.resetKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authcore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get reset token: %w", err)
	}
	var rec authcore.PasswordResetToken
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("decode reset token: %w", err)
	}
	if rec.IsUsed || time.Now().UTC().After(rec.ExpiresAt) {
		return nil, authcore.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) InvalidateResetToken(ctx context.Context, token string) error {
	deleted, err := s.rdb.Del(ctx, s.resetKey(token)).Result()
	if err != nil {
		return fmt.Errorf("redis del reset token: %w", err)
	}
	if deleted == 0 {
		return authcore.ErrNotFound
	}
	return nil
}

func decodeRecord(tenantID uuid.UUID, fields map[string]string) (*authcore.RefreshTokenRecord, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record id: %w", err)
	}
	userID, err := uuid.Parse(fields["user_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record user id: %w", err)
	}
	familyID, err := uuid.Parse(fields["family_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record family id: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh record expiry: %w", err)
	}
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	rec := &authcore.RefreshTokenRecord{
		ID:                id,
		UserID:            userID,
		TenantID:          tenantID,
		TokenHash:         fields["token_hash"],
		JTI:               fields["jti"],
		FamilyID:          familyID,
		DeviceFingerprint: fields["fingerprint"],
		IsRevoked:         fields["is_revoked"] == "1",
		ExpiresAt:         time.Unix(expiresAt, 0).UTC(),
		CreatedAt:         time.Unix(createdAt, 0).UTC(),
	}
	if raw, ok := fields["parent_id"]; ok {
		parentID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt refresh record parent id: %w", err)
		}
		rec.ParentTokenID = &parentID
	}
	return rec, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
