package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore"
)

func TestRefreshRotationChain(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "leon@example.com")
	pair := h.login(t, "leon@example.com")

	seen := map[string]bool{pair.RefreshToken: true}
	current := pair
	for i := 0; i < 3; i++ {
		next, err := h.engine.RefreshRotate(context.Background(), current.RefreshToken)
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		if seen[next.RefreshToken] {
			t.Fatalf("rotation %d returned a repeated refresh token", i)
		}
		seen[next.RefreshToken] = true
		if next.AccessToken == "" {
			t.Fatalf("rotation %d: empty access token", i)
		}
		current = next
	}

	// The final token still works; every ancestor is dead.
	if _, err := h.engine.RefreshRotate(context.Background(), current.RefreshToken); err != nil {
		t.Fatalf("final rotation: %v", err)
	}
}

func TestRefreshReplayRevokesFamily(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "mallory@example.com")
	pair := h.login(t, "mallory@example.com")

	second, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Replay of the consumed token: rejected, and the whole family dies.
	if _, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("replay should fail with ErrInvalidToken, got %v", err)
	}

	// The legitimate successor is collateral damage of the family revocation.
	if _, err := h.engine.RefreshRotate(context.Background(), second.RefreshToken); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("successor should be revoked after reuse, got %v", err)
	}
}

func TestRefreshConcurrentRotationSingleWinner(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "nina@example.com")
	pair := h.login(t, "nina@example.com")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, authcore.ErrInvalidToken) {
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", wins)
	}
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "oscar@example.com")
	pair := h.login(t, "oscar@example.com")

	if _, err := h.engine.RefreshRotate(context.Background(), "not-a-token"); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("garbage should fail with ErrInvalidToken, got %v", err)
	}
	// Access tokens have no jti and the wrong type claim.
	if _, err := h.engine.RefreshRotate(context.Background(), pair.AccessToken); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("access token should not rotate, got %v", err)
	}
}

func TestRefreshInactiveUserRejected(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "peggy@example.com")
	pair := h.login(t, "peggy@example.com")

	u, err := h.store.FindUserByID(context.Background(), h.tenant, view.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	u.IsActive = false
	if err := h.store.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if _, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("inactive user should not rotate, got %v", err)
	}
}

func TestLogoutThenRefreshFails(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "quinn@example.com")
	pair := h.login(t, "quinn@example.com")

	if err := h.engine.Logout(context.Background(), pair.RefreshToken, h.tenant); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken); !errors.Is(err, authcore.ErrInvalidToken) {
		t.Fatalf("refresh after logout should fail, got %v", err)
	}

	// Logout is idempotent.
	if err := h.engine.Logout(context.Background(), pair.RefreshToken, h.tenant); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestLogoutLeavesOtherSessionsAlive(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "ruth@example.com")
	first := h.login(t, "ruth@example.com")
	second := h.login(t, "ruth@example.com")

	if err := h.engine.Logout(context.Background(), first.RefreshToken, h.tenant); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.engine.RefreshRotate(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("independent session should survive logout, got %v", err)
	}
}

func TestLogoutWrongTenantDoesNotRevoke(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "sybil@example.com")
	pair := h.login(t, "sybil@example.com")

	if err := h.engine.Logout(context.Background(), pair.RefreshToken, uuid.New()); err != nil {
		t.Fatalf("cross-tenant logout: %v", err)
	}
	if _, err := h.engine.RefreshRotate(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("session should survive a logout scoped to another tenant, got %v", err)
	}
}
