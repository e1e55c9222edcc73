package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
)

func openTestStorage(t *testing.T, path, namespace string) *Storage {
	t.Helper()
	s, err := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), path, namespace)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t, filepath.Join(t.TempDir(), "creds.db"), "popup")

	if _, err := s.Load(ctx); !errors.Is(err, storage.ErrCredentialsNotFound) {
		t.Fatalf("expected ErrCredentialsNotFound, got %v", err)
	}

	creds := models.Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         models.User{ID: "1", Email: "a@b.c"},
		Expiration:   1700000000,
		UserID:       "1",
	}
	if err := s.Save(ctx, creds); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	creds.AccessToken = "rotated"
	if err := s.Save(ctx, creds); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != creds {
		t.Errorf("expected %+v, got %+v", creds, got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, storage.ErrCredentialsNotFound) {
		t.Errorf("expected ErrCredentialsNotFound after clear, got %v", err)
	}
}

func TestStorage_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds.db")
	a := openTestStorage(t, path, "a")

	if err := a.Save(ctx, models.Credentials{AccessToken: "x", UserID: "1"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	a.Close()

	b := openTestStorage(t, path, "b")
	if _, err := b.Load(ctx); !errors.Is(err, storage.ErrCredentialsNotFound) {
		t.Errorf("expected ErrCredentialsNotFound in other namespace, got %v", err)
	}
}
