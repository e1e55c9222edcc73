package popup

import (
	"log/slog"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
)

// Status is the tag of a popup State.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is the popup session state. Only the Controller builds it, so a user
// without a session or an expiry without a user cannot be represented.
type State struct {
	status  Status
	session models.Session
}

func loading() State { return State{status: StatusLoading} }

func unauthenticated() State { return State{status: StatusUnauthenticated} }

func authenticated(user *models.User, expiresAt int64) State {
	u := *user
	return State{
		status:  StatusAuthenticated,
		session: models.Session{User: &u, ExpiresAt: expiresAt},
	}
}

func (s State) Status() Status { return s.status }

// Session returns a copy of the active session. ok is false unless the state is authenticated.
func (s State) Session() (session models.Session, ok bool) {
	if s.status != StatusAuthenticated {
		return models.Session{}, false
	}
	u := *s.session.User
	return models.Session{User: &u, ExpiresAt: s.session.ExpiresAt}, true
}

// User returns a copy of the signed in user or nil.
func (s State) User() *models.User {
	session, ok := s.Session()
	if !ok {
		return nil
	}
	return session.User
}

// ExpiresAt returns the session expiry in seconds since epoch, 0 when there is no session.
func (s State) ExpiresAt() int64 {
	if s.status != StatusAuthenticated {
		return 0
	}
	return s.session.ExpiresAt
}

func (s State) LogValue() slog.Value {
	if s.status != StatusAuthenticated {
		return slog.GroupValue(slog.String("status", s.status.String()))
	}
	return slog.GroupValue(
		slog.String("status", s.status.String()),
		slog.String("user_id", s.session.User.ID),
		slog.Int64("expires_at", s.session.ExpiresAt),
	)
}
