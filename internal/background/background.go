// Package background answers popup requests. It owns the identity provider
// client and the persisted session; the popup only ever sees AuthResponses.
package background

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/metrics"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/auth"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/remote"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
	"golang.org/x/sync/singleflight"
)

// AuthClient is an identity provider.
type AuthClient interface {
	SignIn(ctx context.Context, email, password string) (models.Grant, error)
	SignUp(ctx context.Context, email, password string) (models.Grant, error)
	Refresh(ctx context.Context, refreshToken string) (models.Grant, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// CredentialStore persists the current session.
type CredentialStore interface {
	Save(ctx context.Context, c models.Credentials) error
	Load(ctx context.Context) (models.Credentials, error)
	Clear(ctx context.Context) error
}

const (
	msgMissingCredentials = "email and password are required"
	msgNoRefreshToken     = "no refresh token available"
	msgUnknownAction      = "unknown action"
	msgStorage            = "failed to access stored session"
	msgInternal           = "internal error"
)

type Service struct {
	log     *slog.Logger
	client  AuthClient
	store   CredentialStore
	metrics *metrics.Metrics
	sf      singleflight.Group
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(log *slog.Logger, client AuthClient, store CredentialStore, opts ...Option) *Service {
	s := &Service{
		log:     log,
		client:  client,
		store:   store,
		metrics: metrics.New(false, nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle implements channel.Handler.
func (s *Service) Handle(ctx context.Context, req models.AuthRequest) models.AuthResponse {
	start := time.Now()

	var resp models.AuthResponse
	switch req.Action {
	case models.ActionSignIn:
		resp = s.authenticate(ctx, req, s.client.SignIn)
	case models.ActionSignUp:
		resp = s.authenticate(ctx, req, s.client.SignUp)
	case models.ActionGetSession:
		resp = s.getSession(ctx)
	case models.ActionRefreshSession:
		resp = s.refreshSession(ctx)
	case models.ActionSignOut:
		resp = s.signOut(ctx)
	default:
		resp = models.Failure(msgUnknownAction)
	}

	s.metrics.RecordRequest(string(req.Action), resultLabel(resp), time.Since(start))
	return resp
}

func resultLabel(resp models.AuthResponse) string {
	switch {
	case resp.Error == nil:
		return "ok"
	case resp.Error.SessionExpired():
		return "expired"
	default:
		return "error"
	}
}

func (s *Service) authenticate(
	ctx context.Context,
	req models.AuthRequest,
	call func(ctx context.Context, email, password string) (models.Grant, error),
) models.AuthResponse {
	const op = "background.Service.authenticate"
	log := s.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("action", string(req.Action)),
	)

	if req.Value == nil || req.Value.Email == "" || req.Value.Password == "" {
		return models.Failure(msgMissingCredentials)
	}
	log = log.With(logger.StringAttr("email", utils.MaskEmail(req.Value.Email)))

	grant, err := call(ctx, req.Value.Email, req.Value.Password)
	if err != nil {
		log.Warn("provider rejected the request", logger.ErrAttr(err))
		return models.Failure(describe(err))
	}

	creds := models.CredentialsFromGrant(grant)
	if err := s.store.Save(ctx, creds); err != nil {
		log.Error("failed to persist credentials", logger.ErrAttr(err))
		return models.Failure(msgStorage)
	}

	log.Info("user authenticated", logger.StringAttr("user_id", creds.UserID))
	return respond(creds)
}

func (s *Service) getSession(ctx context.Context) models.AuthResponse {
	const op = "background.Service.getSession"
	log := s.log.With(logger.StringAttr("op", op))

	creds, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialsNotFound) {
			return models.Success(nil, nil)
		}
		log.Error("failed to load credentials", logger.ErrAttr(err))
		if errors.Is(err, storage.ErrInvalidCredentials) {
			// Unreadable state cannot be recovered; start over signed out.
			if err := s.store.Clear(ctx); err != nil {
				log.Error("failed to clear corrupt credentials", logger.ErrAttr(err))
			}
			return models.Success(nil, nil)
		}
		return models.Failure(msgStorage)
	}

	if creds.Expired(s.now()) {
		log.Debug("stored session has expired", logger.StringAttr("user_id", creds.UserID))
		return models.Expired()
	}
	return respond(creds)
}

func (s *Service) refreshSession(ctx context.Context) models.AuthResponse {
	const op = "background.Service.refreshSession"
	log := s.log.With(logger.StringAttr("op", op))

	stored, err := s.store.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrCredentialsNotFound) {
		log.Error("failed to load credentials", logger.ErrAttr(err))
		return models.Failure(msgStorage)
	}
	if stored.RefreshToken == "" {
		return models.Failure(msgNoRefreshToken)
	}

	// Concurrent popups holding the same refresh token share one provider call.
	v, err, shared := s.sf.Do(stored.RefreshToken, func() (interface{}, error) {
		return s.refresh(ctx, stored)
	})
	if shared {
		s.metrics.RecordRefreshCollapsed()
	}
	if err != nil {
		log.Warn("failed to refresh session", logger.ErrAttr(err))
		return models.Failure(describe(err))
	}
	return respond(v.(models.Credentials))
}

func (s *Service) refresh(ctx context.Context, stored models.Credentials) (models.Credentials, error) {
	grant, err := s.client.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		if sessionGone(err) {
			if cerr := s.store.Clear(ctx); cerr != nil {
				s.log.Error("failed to clear dead session", logger.ErrAttr(cerr))
			}
		}
		return models.Credentials{}, err
	}

	if grant.RefreshToken == "" {
		grant.RefreshToken = stored.RefreshToken
	}
	// Providers that only return tokens on refresh keep the stored profile.
	if grant.User.Email == "" && (grant.User.ID == "" || grant.User.ID == stored.User.ID) {
		grant.User = stored.User
	}

	creds := models.CredentialsFromGrant(grant)
	if err := s.store.Save(ctx, creds); err != nil {
		return models.Credentials{}, err
	}
	return creds, nil
}

func (s *Service) signOut(ctx context.Context) models.AuthResponse {
	const op = "background.Service.signOut"
	log := s.log.With(logger.StringAttr("op", op))

	creds, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrCredentialsNotFound), errors.Is(err, storage.ErrInvalidCredentials):
	case err != nil:
		log.Error("failed to load credentials", logger.ErrAttr(err))
		return models.Failure(msgStorage)
	case creds.RefreshToken != "":
		if err := s.client.SignOut(ctx, creds.RefreshToken); err != nil && !sessionGone(err) {
			log.Warn("provider failed to end the session", logger.ErrAttr(err))
			return models.Failure(describe(err))
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		log.Error("failed to clear credentials", logger.ErrAttr(err))
		return models.Failure(msgStorage)
	}

	log.Info("user signed out", logger.StringAttr("user_id", creds.UserID))
	return models.Success(nil, nil)
}

func respond(c models.Credentials) models.AuthResponse {
	user := c.User
	if user.ID == "" {
		user.ID = c.UserID
	}
	return models.Success(&user, &models.SessionData{ExpiresAt: c.Expiration})
}

func sessionGone(err error) bool {
	return errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrInvalidToken)
}

// describe turns a provider error into the message shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid login credentials"
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		return "User already registered"
	case errors.Is(err, auth.ErrUsernameAlreadyExists):
		return "Username already taken"
	case errors.Is(err, auth.ErrUserBlocked):
		return "User account is blocked"
	case sessionGone(err), errors.Is(err, auth.ErrUserNotFound):
		return "Invalid refresh token"
	case errors.Is(err, remote.ErrUnavailable):
		return "Authentication service is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	default:
		return msgInternal
	}
}
