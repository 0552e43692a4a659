package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	authcore "github.com/taskgrid/authcore"
)

func testUser(tenantID uuid.UUID) *authcore.User {
	now := time.Now().UTC()
	return &authcore.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "$argon2id$fake",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testRecord(tenantID, userID uuid.UUID) *authcore.RefreshTokenRecord {
	now := time.Now().UTC()
	return &authcore.RefreshTokenRecord{
		ID:        uuid.New(),
		UserID:    userID,
		TenantID:  tenantID,
		TokenHash: "hash",
		JTI:       uuid.NewString(),
		FamilyID:  uuid.New(),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()

	if err := s.CreateUser(ctx, testUser(tenant)); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := testUser(tenant)
	if err := s.CreateUser(ctx, dup); !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// Same email in another tenant is fine.
	other := testUser(uuid.New())
	if err := s.CreateUser(ctx, other); err != nil {
		t.Fatalf("cross-tenant create: %v", err)
	}
}

func TestFindUserByEmailNormalizes(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	u := testUser(tenant)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.FindUserByEmail(ctx, tenant, "  ALICE@example.com ")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("wrong user: %s", got.ID)
	}

	if _, err := s.FindUserByEmail(ctx, uuid.New(), u.Email); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestReturnedUserDoesNotAliasStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	u := testUser(tenant)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, _ := s.FindUserByID(ctx, tenant, u.ID)
	got.Email = "mutated@example.com"
	got.PasswordHash = "mutated"

	again, _ := s.FindUserByID(ctx, tenant, u.ID)
	if again.Email != u.Email || again.PasswordHash != u.PasswordHash {
		t.Fatal("store state mutated through returned copy")
	}
}

func TestRevokeRefreshSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	rec := testRecord(tenant, uuid.New())
	if err := s.CreateRefreshRecord(ctx, rec); err != nil {
		t.Fatalf("create record: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.RevokeRefresh(ctx, tenant, rec.JTI)
			if err != nil {
				t.Errorf("revoke: %v", err)
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for won := range wins {
		if won {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestRevokeFamilyRevokesWholeChain(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	user := uuid.New()
	family := uuid.New()

	var jtis []string
	for i := 0; i < 3; i++ {
		rec := testRecord(tenant, user)
		rec.FamilyID = family
		if err := s.CreateRefreshRecord(ctx, rec); err != nil {
			t.Fatalf("create record: %v", err)
		}
		jtis = append(jtis, rec.JTI)
	}
	unrelated := testRecord(tenant, user)
	if err := s.CreateRefreshRecord(ctx, unrelated); err != nil {
		t.Fatalf("create record: %v", err)
	}

	if err := s.RevokeFamily(ctx, tenant, family); err != nil {
		t.Fatalf("revoke family: %v", err)
	}

	for _, jti := range jtis {
		rec, err := s.FindRefreshByJTI(ctx, tenant, jti)
		if err != nil {
			t.Fatalf("find record: %v", err)
		}
		if !rec.IsRevoked {
			t.Fatalf("family member %s not revoked", jti)
		}
	}
	rec, _ := s.FindRefreshByJTI(ctx, tenant, unrelated.JTI)
	if rec.IsRevoked {
		t.Fatal("unrelated family was revoked")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	user := uuid.New()

	first := testRecord(tenant, user)
	second := testRecord(tenant, user)
	otherUser := testRecord(tenant, uuid.New())
	for _, rec := range []*authcore.RefreshTokenRecord{first, second, otherUser} {
		if err := s.CreateRefreshRecord(ctx, rec); err != nil {
			t.Fatalf("create record: %v", err)
		}
	}

	if err := s.RevokeAllForUser(ctx, tenant, user); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	for _, jti := range []string{first.JTI, second.JTI} {
		rec, _ := s.FindRefreshByJTI(ctx, tenant, jti)
		if !rec.IsRevoked {
			t.Fatalf("record %s not revoked", jti)
		}
	}
	rec, _ := s.FindRefreshByJTI(ctx, tenant, otherUser.JTI)
	if rec.IsRevoked {
		t.Fatal("other user's record was revoked")
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant := uuid.New()
	now := time.Now().UTC()

	tok := &authcore.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TenantID:  tenant,
		Token:     "opaque-token",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := s.CreateResetToken(ctx, tok); err != nil {
		t.Fatalf("create reset token: %v", err)
	}

	got, err := s.FindValidResetToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("find valid: %v", err)
	}
	if got.UserID != tok.UserID {
		t.Fatalf("wrong token record")
	}

	if err := s.InvalidateResetToken(ctx, tok.Token); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := s.FindValidResetToken(ctx, tok.Token); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("used token should be invisible, got %v", err)
	}
}

func TestExpiredResetTokenNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	tok := &authcore.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TenantID:  uuid.New(),
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := s.CreateResetToken(ctx, tok); err != nil {
		t.Fatalf("create reset token: %v", err)
	}
	if _, err := s.FindValidResetToken(ctx, tok.Token); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expired token should be invisible, got %v", err)
	}
}
