package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
)

func TestAccounts_Register(t *testing.T) {
	ctx := context.Background()
	a := NewAccounts()

	id, err := a.Register(ctx, "User@Example.com", "user", []byte("hash"))
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	got, err := a.UserByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("UserByEmail returned error: %v", err)
	}
	if got.ID != id || got.Username != "user" {
		t.Errorf("unexpected account: %+v", got)
	}

	if _, err := a.Register(ctx, "user@example.com", "other", nil); !errors.Is(err, storage.ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if _, err := a.Register(ctx, "new@example.com", "user", nil); !errors.Is(err, storage.ErrUsernameAlreadyExists) {
		t.Errorf("expected ErrUsernameAlreadyExists, got %v", err)
	}
	if _, err := a.UserByID(ctx, id+1); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAccounts_Sessions(t *testing.T) {
	ctx := context.Background()
	a := NewAccounts()

	s := models.ProviderSession{ID: "sid", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}
	if err := a.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if err := a.CreateSession(ctx, s); !errors.Is(err, storage.ErrSessionAlreadyExists) {
		t.Errorf("expected ErrSessionAlreadyExists, got %v", err)
	}

	if err := a.RevokeSession(ctx, "sid"); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}
	got, err := a.SessionByID(ctx, "sid")
	if err != nil {
		t.Fatalf("SessionByID returned error: %v", err)
	}
	if got.Active(time.Now()) {
		t.Error("expected revoked session to be inactive")
	}

	expired := models.ProviderSession{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := a.CreateSession(ctx, expired); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if _, err := a.SessionByID(ctx, "old"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for expired session, got %v", err)
	}
	if err := a.RevokeSession(ctx, "missing"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
