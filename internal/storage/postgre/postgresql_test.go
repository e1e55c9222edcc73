package postgre

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

type fakeRow struct {
	scan func(dest ...interface{}) error
}

func (r fakeRow) Scan(dest ...interface{}) error { return r.scan(dest...) }

// fakeClient answers QueryRow and Exec; transactional paths need a database.
type fakeClient struct {
	row      pgx.Row
	execSQL  string
	execArgs []interface{}
}

func (f *fakeClient) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	return pgconn.CommandTag("DELETE 5"), nil
}

func (f *fakeClient) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeClient) QueryRow(context.Context, string, ...interface{}) pgx.Row { return f.row }

func (f *fakeClient) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("not supported") }

func (f *fakeClient) Close() {}

func newTestStorage(client *fakeClient) *Storage {
	return NewStorage(slog.New(slog.NewTextHandler(io.Discard, nil)), client, "popup")
}

func TestFormatQuery(t *testing.T) {
	q := `
		SELECT key, value
		FROM credentials`
	if got := formatQuery(q); got != "SELECT key, value FROM credentials" {
		t.Errorf("unexpected formatted query %q", got)
	}
}

func TestStorage_RegisterDuplicate(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_email_idx", want: storage.ErrEmailAlreadyExists},
		{constraint: "users_username_idx", want: storage.ErrUsernameAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			client := &fakeClient{row: fakeRow{scan: func(...interface{}) error {
				return &pgconn.PgError{Code: uniqueViolation, ConstraintName: tt.constraint}
			}}}
			_, err := newTestStorage(client).Register(context.Background(), "a@b.c", "user", []byte("h"))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStorage_UserNotFound(t *testing.T) {
	client := &fakeClient{row: fakeRow{scan: func(...interface{}) error { return pgx.ErrNoRows }}}
	if _, err := newTestStorage(client).UserByEmail(context.Background(), "a@b.c"); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStorage_ClearScopesNamespace(t *testing.T) {
	client := &fakeClient{}
	if err := newTestStorage(client).Clear(context.Background()); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if len(client.execArgs) != 1 || client.execArgs[0] != "popup" {
		t.Errorf("expected namespace argument, got %v", client.execArgs)
	}
}
