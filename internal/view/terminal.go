// Package view renders the popup in a terminal and turns typed commands into
// controller calls.
package view

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/popup"
	"github.com/FurmanovVitaliy/logger"
)

// Controller is the part of popup.Controller the view drives.
type Controller interface {
	State() popup.State
	Subscribe(fn func(popup.State)) (unsubscribe func())
	Mount(ctx context.Context) error
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

type Terminal struct {
	log   *slog.Logger
	ctrl  Controller
	in    io.Reader
	toast *Toaster
}

// NewTerminal writes through the toaster so lines do not interleave.
func NewTerminal(log *slog.Logger, ctrl Controller, in io.Reader, toast *Toaster) *Terminal {
	return &Terminal{log: log, ctrl: ctrl, in: in, toast: toast}
}

func (t *Terminal) printf(format string, args ...any) {
	t.toast.printf(format, args...)
}

// Render prints one state.
func (t *Terminal) Render(s popup.State) {
	switch s.Status() {
	case popup.StatusLoading:
		t.printf("Loading...\n")
	case popup.StatusUnauthenticated:
		t.printf("Not signed in. Commands: login <email> <password>, signup <email> <password>, quit\n")
	case popup.StatusAuthenticated:
		name := "unknown user"
		if u := s.User(); u != nil {
			name = u.ID
			if u.Email != "" {
				name = u.Email
			}
		}
		line := "Signed in as " + name
		if exp := s.ExpiresAt(); exp != 0 {
			line += " until " + time.Unix(exp, 0).Format(time.RFC1123)
		}
		t.printf("%s. Commands: logout, quit\n", line)
	}
}

// Run mounts the controller and processes commands until quit, EOF or ctx ends.
func (t *Terminal) Run(ctx context.Context) error {
	const op = "view.Terminal.Run"
	log := t.log.With(logger.StringAttr("op", op))

	unsubscribe := t.ctrl.Subscribe(t.Render)
	defer unsubscribe()

	t.Render(t.ctrl.State())
	go func() {
		if err := t.ctrl.Mount(ctx); err != nil {
			log.Warn("initial session load did not complete", logger.ErrAttr(err))
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := t.execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// execute runs one command line and reports whether the user asked to quit.
func (t *Terminal) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	state := t.ctrl.State()
	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return true
	case "status":
		t.Render(state)
	case "login", "signup":
		if state.Status() != popup.StatusUnauthenticated {
			t.printf("%s is not available right now.\n", cmd)
			return false
		}
		if len(fields) != 3 {
			t.printf("usage: %s <email> <password>\n", cmd)
			return false
		}
		form := Form{Username: fields[1], Password: fields[2]}
		if err := form.Validate(); err != nil {
			t.toast.Notify(err.Error())
			return false
		}
		var err error
		if cmd == "login" {
			err = t.ctrl.SignIn(ctx, form.Username, form.Password)
		} else {
			err = t.ctrl.SignUp(ctx, form.Username, form.Password)
		}
		if err != nil {
			t.log.Debug("command did not complete", logger.StringAttr("command", cmd), logger.ErrAttr(err))
		}
	case "logout":
		if state.Status() != popup.StatusAuthenticated {
			t.printf("logout is not available right now.\n")
			return false
		}
		if err := t.ctrl.SignOut(ctx); err != nil {
			t.log.Debug("command did not complete", logger.StringAttr("command", cmd), logger.ErrAttr(err))
		}
	default:
		t.printf("unknown command %q\n", cmd)
	}
	return false
}
