// Package auth is the local identity provider: bcrypt-hashed accounts and
// HS256 access/refresh tokens. It serves the background process when no
// remote SSO service is configured.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/extension-auth/pkg/jwt"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
)

type AuthService struct {
	log             *slog.Logger
	userProvider    UserProvider
	sessionProvider SessionProvider
	appID           int32
	secret          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

type UserProvider interface {
	Register(ctx context.Context, email, username string, passHash []byte) (int64, error)
	UserByEmail(ctx context.Context, email string) (models.Account, error)
	UserByID(ctx context.Context, id int64) (models.Account, error)
}

type SessionProvider interface {
	CreateSession(ctx context.Context, session models.ProviderSession) error
	SessionByID(ctx context.Context, sessionID string) (models.ProviderSession, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

var (
	ErrEmailAlreadyExists    = errors.New("the specified email is already registered")
	ErrUsernameAlreadyExists = errors.New("the specified username is already taken")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrSessionRevoked        = errors.New("session revoked or invalid")
	ErrSessionNotFound       = errors.New("session not found")
	ErrInvalidToken          = errors.New("invalid token, please log in again")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserBlocked           = errors.New("the user account has been blocked by the administration")
)

// New creates a new instance of the Auth service.
func New(
	log *slog.Logger,
	userProvider UserProvider,
	sessionProvider SessionProvider,
	appID int32,
	secret string,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		log:             log,
		userProvider:    userProvider,
		sessionProvider: sessionProvider,
		appID:           appID,
		secret:          secret,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Register creates an account without signing it in.
func (a *AuthService) Register(ctx context.Context, email, username, password string) error {
	const op = "auth.Auth.Register"
	log := a.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("email", utils.MaskEmail(email)),
		logger.StringAttr("username", username),
	)

	passHash, err := utils.HashPassword(password)
	if err != nil {
		log.Error("failed to hash the password", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = a.userProvider.Register(ctx, email, username, []byte(passHash)); err != nil {
		if errors.Is(err, storage.ErrEmailAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrEmailAlreadyExists)
		}
		if errors.Is(err, storage.ErrUsernameAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrUsernameAlreadyExists)
		}
		log.Error("failed to register the user", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("new user successfully registered")
	return nil
}

// SignUp registers the account and signs it in. The username is derived from
// the email.
func (a *AuthService) SignUp(ctx context.Context, email, password string) (models.Grant, error) {
	username := utils.UsernameFromEmail(email)

	err := a.Register(ctx, email, username, password)
	if errors.Is(err, ErrUsernameAlreadyExists) {
		// Same local part on another domain.
		err = a.Register(ctx, email, username+"_"+utils.GenerateSimpleID()[:4], password)
	}
	if err != nil {
		return models.Grant{}, err
	}

	return a.SignIn(ctx, email, password)
}

func (a *AuthService) SignIn(ctx context.Context, email, password string) (models.Grant, error) {
	const op = "auth.Auth.SignIn"
	log := a.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("email", utils.MaskEmail(email)),
	)

	account, err := a.userProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Grant{}, ErrInvalidCredentials
		}
		log.Error("failed to get the user", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	if err = utils.ComparePassword(account.PassHash, password); err != nil {
		return models.Grant{}, ErrInvalidCredentials
	}

	grant, err := a.createTokensAndSession(ctx, account, utils.UserAgentFromContext(ctx))
	if err != nil {
		log.Error("failed to create tokens and session", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	return grant, nil
}

// SignOut revokes the session the refresh token belongs to.
func (a *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := jwt.ExtractUnverifiedRefreshTokenClaims(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	return a.RevokeSession(ctx, claims.SID)
}

func (a *AuthService) RevokeSession(ctx context.Context, sessionID string) error {
	const op = "auth.Auth.RevokeSession"
	log := a.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("session_id", sessionID),
	)

	if err := a.sessionProvider.RevokeSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		log.Error("failed to revoke the session", logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Refresh issues a new access token. The refresh token stays the same.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (models.Grant, error) {
	const op = "auth.Auth.Refresh"
	log := a.log.With(
		logger.StringAttr("op", op),
	)

	claims, err := jwt.ExtractUnverifiedRefreshTokenClaims(refreshToken)
	if err != nil {
		log.Warn("failed to extract claims from the token", logger.ErrAttr(err))
		return models.Grant{}, ErrInvalidToken
	}

	session, err := a.sessionProvider.SessionByID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return models.Grant{}, ErrSessionNotFound
		}
		log.Error("failed to find session", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	if !session.Active(time.Now()) {
		log.Warn("session is not active", logger.StringAttr("session_id", session.ID))
		return models.Grant{}, ErrSessionRevoked
	}

	if _, err = jwt.VerifyRefreshToken(refreshToken, session.RefreshSecret); err != nil {
		return models.Grant{}, ErrInvalidToken
	}
	if err = utils.VerifyTokenHash(refreshToken, session.RefreshHash); err != nil {
		return models.Grant{}, ErrInvalidToken
	}

	account, err := a.userProvider.UserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Grant{}, ErrUserNotFound
		}
		log.Error("failed to get the user", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	access, ac, err := jwt.CreateAccessToken(account.ID, a.appID, account.Role, a.accessTokenTTL, a.secret)
	if err != nil {
		log.Error("failed to gen access token", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Grant{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    ac.ExpiresAt.Time,
		User:         account.User(),
	}, nil
}

func (a *AuthService) createTokensAndSession(ctx context.Context, account models.Account, userAgent string) (models.Grant, error) {
	const op = "auth.Auth.createTokensAndSession"

	refreshSecret, err := utils.GenerateSecret(32)
	if err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	sessionID, err := utils.GenerateID()
	if err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	access, ac, err := jwt.CreateAccessToken(account.ID, a.appID, account.Role, a.accessTokenTTL, a.secret)
	if err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, rc, err := jwt.CreateRefreshToken(account.ID, a.appID, sessionID, a.refreshTokenTTL, refreshSecret)
	if err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	session := models.ProviderSession{
		ID:            sessionID,
		UserID:        account.ID,
		RefreshHash:   utils.HashToken(refresh),
		RefreshSecret: refreshSecret,
		UserAgent:     userAgent,
		Status:        models.SessionActive,
		CreatedAt:     now,
		UpdatedAt:     &now,
		ExpiresAt:     rc.ExpiresAt.Time,
	}
	if err = a.sessionProvider.CreateSession(ctx, session); err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Grant{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    ac.ExpiresAt.Time,
		User:         account.User(),
	}, nil
}
