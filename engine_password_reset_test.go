package authcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/taskgrid/authcore"
)

func TestPasswordResetFlow(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "yuri@example.com")
	first := h.login(t, "yuri@example.com")
	second := h.login(t, "yuri@example.com")
	ctx := context.Background()

	if err := h.engine.RequestPasswordReset(ctx, h.tenant, "yuri@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := h.notifier.lastToken(t)

	if err := h.engine.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Old password is dead, new one works.
	if _, err := h.engine.Login(ctx, authcore.LoginInput{
		TenantID: h.tenant, Email: "yuri@example.com", Password: testPassword,
	}); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := h.engine.Login(ctx, authcore.LoginInput{
		TenantID: h.tenant, Email: "yuri@example.com", Password: newPassword,
	}); err != nil {
		t.Fatalf("new password login: %v", err)
	}

	// Every pre-reset session is revoked, both families.
	for _, pair := range []*authcore.TokenPair{first, second} {
		if _, err := h.engine.RefreshRotate(ctx, pair.RefreshToken); !errors.Is(err, authcore.ErrInvalidToken) {
			t.Fatalf("pre-reset session should be revoked, got %v", err)
		}
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "zack@example.com")
	ctx := context.Background()

	if err := h.engine.RequestPasswordReset(ctx, h.tenant, "zack@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := h.notifier.lastToken(t)

	if err := h.engine.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if err := h.engine.ResetPassword(ctx, token, "Yet@nother$trong1"); !errors.Is(err, authcore.ErrInvalidResetToken) {
		t.Fatalf("second use should fail, got %v", err)
	}
}

func TestResetRequestUnknownEmailIsSilent(t *testing.T) {
	h := newTestEngine(t)

	if err := h.engine.RequestPasswordReset(context.Background(), h.tenant, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if h.notifier.tokenCount() != 0 {
		t.Fatal("no token should be delivered for an unknown account")
	}
}

func TestResetRejectsWeakReplacement(t *testing.T) {
	h := newTestEngine(t)
	h.register(t, "abel@example.com")
	ctx := context.Background()

	if err := h.engine.RequestPasswordReset(ctx, h.tenant, "abel@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := h.notifier.lastToken(t)

	if err := h.engine.ResetPassword(ctx, token, "weak"); !errors.Is(err, authcore.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	// A rejected replacement does not consume the token.
	if err := h.engine.ResetPassword(ctx, token, newPassword); err != nil {
		t.Fatalf("reset after weak attempt: %v", err)
	}
}

func TestResetPasswordBogusToken(t *testing.T) {
	h := newTestEngine(t)
	err := h.engine.ResetPassword(context.Background(), "no-such-token", newPassword)
	if !errors.Is(err, authcore.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
}
