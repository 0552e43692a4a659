package authcore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore"
)

func TestMFAEnrollmentAndLogin(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "tina@example.com")
	ctx := context.Background()

	enrollment, err := h.engine.EnableMFA(ctx, h.tenant, view.ID)
	if err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	if enrollment.Secret == "" {
		t.Fatal("empty enrollment secret")
	}
	if !strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", enrollment.ProvisioningURI)
	}

	// Until VerifyMFA, login must not demand a code.
	h.login(t, "tina@example.com")

	code, err := authcore.TOTPGenerator(h.engine).CurrentCode(enrollment.Secret)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	if err := h.engine.VerifyMFA(ctx, h.tenant, view.ID, code); err != nil {
		t.Fatalf("verify mfa: %v", err)
	}

	// Password alone now yields the MFA challenge.
	_, err = h.engine.Login(ctx, authcore.LoginInput{
		TenantID: h.tenant,
		Email:    "tina@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, authcore.ErrMFARequired) {
		t.Fatalf("expected ErrMFARequired, got %v", err)
	}

	code, err = authcore.TOTPGenerator(h.engine).CurrentCode(enrollment.Secret)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	pair, err := h.engine.Login(ctx, authcore.LoginInput{
		TenantID: h.tenant,
		Email:    "tina@example.com",
		Password: testPassword,
		MFACode:  code,
	})
	if err != nil {
		t.Fatalf("login with code: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("empty access token")
	}
}

func TestLoginRejectsWrongMFACode(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "uma@example.com")
	ctx := context.Background()

	enrollment, err := h.engine.EnableMFA(ctx, h.tenant, view.ID)
	if err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	code, _ := authcore.TOTPGenerator(h.engine).CurrentCode(enrollment.Secret)
	if err := h.engine.VerifyMFA(ctx, h.tenant, view.ID, code); err != nil {
		t.Fatalf("verify mfa: %v", err)
	}

	_, err = h.engine.Login(ctx, authcore.LoginInput{
		TenantID: h.tenant,
		Email:    "uma@example.com",
		Password: testPassword,
		MFACode:  "000000",
	})
	if !errors.Is(err, authcore.ErrInvalidMFACode) {
		t.Fatalf("expected ErrInvalidMFACode, got %v", err)
	}
}

func TestEnableMFATwiceRejected(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "vera@example.com")
	ctx := context.Background()

	enrollment, err := h.engine.EnableMFA(ctx, h.tenant, view.ID)
	if err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	code, _ := authcore.TOTPGenerator(h.engine).CurrentCode(enrollment.Secret)
	if err := h.engine.VerifyMFA(ctx, h.tenant, view.ID, code); err != nil {
		t.Fatalf("verify mfa: %v", err)
	}

	if _, err := h.engine.EnableMFA(ctx, h.tenant, view.ID); !errors.Is(err, authcore.ErrMFAAlreadyEnabled) {
		t.Fatalf("expected ErrMFAAlreadyEnabled, got %v", err)
	}
}

func TestVerifyMFAWithoutEnrollment(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "walt@example.com")

	err := h.engine.VerifyMFA(context.Background(), h.tenant, view.ID, "123456")
	if !errors.Is(err, authcore.ErrMFANotSetUp) {
		t.Fatalf("expected ErrMFANotSetUp, got %v", err)
	}
}

func TestVerifyMFAWrongCodeKeepsDisabled(t *testing.T) {
	h := newTestEngine(t)
	view := h.register(t, "xena@example.com")
	ctx := context.Background()

	if _, err := h.engine.EnableMFA(ctx, h.tenant, view.ID); err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	if err := h.engine.VerifyMFA(ctx, h.tenant, view.ID, "000000"); !errors.Is(err, authcore.ErrInvalidMFACode) {
		t.Fatalf("expected ErrInvalidMFACode, got %v", err)
	}

	// Still possible to log in without a code: enrollment never completed.
	h.login(t, "xena@example.com")
}

func TestEnableMFAUnknownUser(t *testing.T) {
	h := newTestEngine(t)
	if _, err := h.engine.EnableMFA(context.Background(), h.tenant, uuid.New()); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
