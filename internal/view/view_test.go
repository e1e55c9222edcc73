package view

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/popup"
)

func TestForm_Validate(t *testing.T) {
	tests := []struct {
		name string
		form Form
		want string
	}{
		{"valid", Form{Username: "user@example.com", Password: "password123"}, ""},
		{"short username", Form{Username: "a", Password: "password123"}, "Username must be at least 2 characters"},
		{"long username", Form{Username: strings.Repeat("a", 51), Password: "password123"}, "Username must be at most 50 characters"},
		{"short password", Form{Username: "user@example.com", Password: "short"}, "Password must be at least 8 characters"},
		{"missing password", Form{Username: "user@example.com"}, "Password is required"},
		{"sql", Form{Username: "x; DROP TABLE users", Password: "password123"}, "Username is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// scriptedChannel answers synchronously, one canned response per action.
type scriptedChannel struct {
	mu      sync.Mutex
	replies map[models.Action]models.AuthResponse
	sent    []models.AuthRequest
}

func (c *scriptedChannel) Send(req models.AuthRequest, reply func(models.AuthResponse)) error {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	resp := c.replies[req.Action]
	c.mu.Unlock()
	reply(resp)
	return nil
}

func (c *scriptedChannel) actions() []models.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Action, 0, len(c.sent))
	for _, r := range c.sent {
		out = append(out, r.Action)
	}
	return out
}

func newTestTerminal(t *testing.T, ch *scriptedChannel, in io.Reader) (*Terminal, *popup.Controller, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	toast := NewToaster(out)
	ctrl := popup.New(log, ch, toast)
	return NewTerminal(log, ctrl, in, toast), ctrl, out
}

func signedInReply() models.AuthResponse {
	return models.Success(&models.User{ID: "1", Email: "user@example.com"}, &models.SessionData{ExpiresAt: 1_700_000_000})
}

func TestTerminal_LoginFlow(t *testing.T) {
	ctx := context.Background()
	ch := &scriptedChannel{replies: map[models.Action]models.AuthResponse{
		models.ActionGetSession: models.Success(nil, nil),
		models.ActionSignIn:     signedInReply(),
		models.ActionSignOut:    models.Success(nil, nil),
	}}
	term, ctrl, out := newTestTerminal(t, ch, strings.NewReader(""))

	if err := ctrl.Mount(ctx); err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}

	term.execute(ctx, "logout")
	if !strings.Contains(out.String(), "logout is not available") {
		t.Errorf("expected logout to be gated, got:\n%s", out.String())
	}

	term.execute(ctx, "login a password123")
	if !strings.Contains(out.String(), "! Username must be at least 2 characters") {
		t.Errorf("expected validation toast, got:\n%s", out.String())
	}

	term.execute(ctx, "login user@example.com password123")
	if ctrl.State().Status() != popup.StatusAuthenticated {
		t.Fatalf("expected authenticated, got %v", ctrl.State().Status())
	}
	if !strings.Contains(out.String(), "Signed in as user@example.com") {
		t.Errorf("expected signed-in render, got:\n%s", out.String())
	}

	term.execute(ctx, "logout")
	if ctrl.State().Status() != popup.StatusUnauthenticated {
		t.Errorf("expected unauthenticated, got %v", ctrl.State().Status())
	}

	want := []models.Action{models.ActionGetSession, models.ActionSignIn, models.ActionSignOut}
	got := ch.actions()
	if len(got) != len(want) {
		t.Fatalf("expected actions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTerminal_SignUpErrorIsToasted(t *testing.T) {
	ctx := context.Background()
	ch := &scriptedChannel{replies: map[models.Action]models.AuthResponse{
		models.ActionGetSession: models.Success(nil, nil),
		models.ActionSignUp:     models.Failure("User already registered"),
	}}
	term, ctrl, out := newTestTerminal(t, ch, strings.NewReader(""))

	if err := ctrl.Mount(ctx); err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}
	term.execute(ctx, "signup user@example.com password123")

	if !strings.Contains(out.String(), "! Error with signup: User already registered") {
		t.Errorf("expected sign-up toast, got:\n%s", out.String())
	}
	if ctrl.State().Status() != popup.StatusUnauthenticated {
		t.Errorf("expected unauthenticated, got %v", ctrl.State().Status())
	}
}

func TestTerminal_RunQuits(t *testing.T) {
	ch := &scriptedChannel{replies: map[models.Action]models.AuthResponse{
		models.ActionGetSession: models.Success(nil, nil),
	}}
	term, _, out := newTestTerminal(t, ch, strings.NewReader("status\nquit\n"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := term.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Loading...") {
		t.Errorf("expected initial loading render, got:\n%s", out.String())
	}
}
