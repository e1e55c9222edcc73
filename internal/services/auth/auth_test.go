package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/storage/memory"
	"github.com/FurmanovVitaliy/extension-auth/pkg/jwt"
)

const testSecret = "test-secret"

func newTestService() *AuthService {
	accounts := memory.NewAccounts()
	return New(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		accounts,
		accounts,
		1,
		testSecret,
		15*time.Minute,
		24*time.Hour,
	)
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	grant, err := a.SignUp(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if grant.User.ID == "" || grant.User.Email != "alice@example.com" || grant.User.Username != "alice" {
		t.Errorf("unexpected user: %+v", grant.User)
	}
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if time.Until(grant.ExpiresAt) <= 0 {
		t.Errorf("expected expiry in the future, got %v", grant.ExpiresAt)
	}

	claims, err := jwt.VerifyAccessToken(grant.AccessToken, testSecret)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.UserID() != grant.User.ID {
		t.Errorf("expected uid %s, got %s", grant.User.ID, claims.UserID())
	}

	if _, err := a.SignIn(ctx, "alice@example.com", "password123"); err != nil {
		t.Errorf("SignIn returned error: %v", err)
	}
}

func TestSignUp_Duplicate(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	if _, err := a.SignUp(ctx, "bob@example.com", "password123"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := a.SignUp(ctx, "bob@example.com", "password123"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	if _, err := a.SignIn(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if _, err := a.SignUp(ctx, "carol@example.com", "password123"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := a.SignIn(ctx, "carol@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	grant, err := a.SignUp(ctx, "dave@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	refreshed, err := a.Refresh(ctx, grant.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if refreshed.RefreshToken != grant.RefreshToken {
		t.Error("expected refresh token to be kept")
	}
	if refreshed.User != grant.User {
		t.Errorf("expected user %+v, got %+v", grant.User, refreshed.User)
	}

	if _, err := a.Refresh(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignOut_RevokesSession(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	grant, err := a.SignUp(ctx, "erin@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if err := a.SignOut(ctx, grant.RefreshToken); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if _, err := a.Refresh(ctx, grant.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestRefresh_ForgedToken(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	grant, err := a.SignUp(ctx, "frank@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	claims, err := jwt.ExtractUnverifiedRefreshTokenClaims(grant.RefreshToken)
	if err != nil {
		t.Fatalf("extract claims: %v", err)
	}

	forged, _, err := jwt.CreateRefreshToken(claims.UID, claims.AID, claims.SID, time.Hour, "attacker")
	if err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}
	if _, err := a.Refresh(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignUp_SameLocalPart(t *testing.T) {
	ctx := context.Background()
	a := newTestService()

	first, err := a.SignUp(ctx, "gina@one.example", "password123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	second, err := a.SignUp(ctx, "gina@two.example", "password123")
	if err != nil {
		t.Fatalf("second SignUp returned error: %v", err)
	}
	if first.User.Username == second.User.Username {
		t.Errorf("expected distinct usernames, both %q", first.User.Username)
	}
}
