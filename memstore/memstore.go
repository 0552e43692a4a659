// Package memstore is an in-memory Repository adapter. It is safe for
// concurrent use and intended for tests and single-process demos; nothing
// is persisted across restarts.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	authcore "github.com/taskgrid/authcore"
)

type userKey struct {
	tenantID uuid.UUID
	userID   uuid.UUID
}

type emailKey struct {
	tenantID uuid.UUID
	email    string
}

type refreshKey struct {
	tenantID uuid.UUID
	jti      string
}

// Store implements authcore.Repository over mutex-guarded maps. All values
// are deep-copied on the way in and out so callers can never alias internal
// state.
type Store struct {
	mu      sync.Mutex
	users   map[userKey]*authcore.User
	byEmail map[emailKey]uuid.UUID
	tokens  map[refreshKey]*authcore.RefreshTokenRecord
	resets  map[string]*authcore.PasswordResetToken
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   make(map[userKey]*authcore.User),
		byEmail: make(map[emailKey]uuid.UUID),
		tokens:  make(map[refreshKey]*authcore.RefreshTokenRecord),
		resets:  make(map[string]*authcore.PasswordResetToken),
	}
}

var _ authcore.Repository = (*Store)(nil)

func (s *Store) FindUserByEmail(_ context.Context, tenantID uuid.UUID, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[emailKey{tenantID, normalize(email)}]
	if !ok {
		return nil, authcore.ErrNotFound
	}
	return copyUser(s.users[userKey{tenantID, id}]), nil
}

func (s *Store) FindUserByID(_ context.Context, tenantID, userID uuid.UUID) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userKey{tenantID, userID}]
	if !ok {
		return nil, authcore.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ek := emailKey{user.TenantID, normalize(user.Email)}
	if _, exists := s.byEmail[ek]; exists {
		return authcore.ErrDuplicateEmail
	}
	s.users[userKey{user.TenantID, user.ID}] = copyUser(user)
	s.byEmail[ek] = user.ID
	return nil
}

func (s *Store) SaveUser(_ context.Context, user *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := userKey{user.TenantID, user.ID}
	if _, ok := s.users[k]; !ok {
		return authcore.ErrNotFound
	}
	s.users[k] = copyUser(user)
	return nil
}

func (s *Store) CreateRefreshRecord(_ context.Context, record *authcore.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[refreshKey{record.TenantID, record.JTI}] = copyRecord(record)
	return nil
}

func (s *Store) FindRefreshByJTI(_ context.Context, tenantID uuid.UUID, jti string) (*authcore.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[refreshKey{tenantID, jti}]
	if !ok {
		return nil, authcore.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *Store) RevokeRefresh(_ context.Context, tenantID uuid.UUID, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[refreshKey{tenantID, jti}]
	if !ok || rec.IsRevoked {
		return false, nil
	}
	rec.IsRevoked = true
	return true, nil
}

func (s *Store) RevokeFamily(_ context.Context, tenantID, familyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, rec := range s.tokens {
		if k.tenantID == tenantID && rec.FamilyID == familyID {
			rec.IsRevoked = true
		}
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, tenantID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, rec := range s.tokens {
		if k.tenantID == tenantID && rec.UserID == userID {
			rec.IsRevoked = true
		}
	}
	return nil
}

func (s *Store) CreateResetToken(_ context.Context, token *authcore.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.resets[token.Token] = &cp
	return nil
}

func (s *Store) FindValidResetToken(_ context.Context, token string) (*authcore.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[token]
	if !ok || rec.IsUsed || timeNow().After(rec.ExpiresAt) {
		return nil, authcore.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) InvalidateResetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resets[token]
	if !ok {
		return authcore.ErrNotFound
	}
	rec.IsUsed = true
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyUser(u *authcore.User) *authcore.User {
	cp := *u
	cp.Roles = append(cp.Roles[:0:0], u.Roles...)
	cp.Permissions = append(cp.Permissions[:0:0], u.Permissions...)
	if u.DepartmentID != nil {
		dept := *u.DepartmentID
		cp.DepartmentID = &dept
	}
	if u.LastLoginAt != nil {
		last := *u.LastLoginAt
		cp.LastLoginAt = &last
	}
	return &cp
}

func copyRecord(r *authcore.RefreshTokenRecord) *authcore.RefreshTokenRecord {
	cp := *r
	if r.ParentTokenID != nil {
		parent := *r.ParentTokenID
		cp.ParentTokenID = &parent
	}
	return &cp
}

func timeNow() time.Time { return time.Now().UTC() }
