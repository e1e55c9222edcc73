// Package remote talks to the SSO service over gRPC and presents it as an
// identity provider for the background process.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/auth"
	"github.com/FurmanovVitaliy/extension-auth/pkg/jwt"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
	sso "github.com/FurmanovVitaliy/grpc-api/gen/go/sso_v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var ErrUnavailable = errors.New("authentication service is unavailable")

type Client struct {
	log     *slog.Logger
	api     sso.AuthClient
	conn    *grpc.ClientConn
	appID   int32
	timeout time.Duration
}

// New wraps an existing connection.
func New(log *slog.Logger, cc grpc.ClientConnInterface, appID int32, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		api:     sso.NewAuthClient(cc),
		appID:   appID,
		timeout: timeout,
	}
}

// Dial connects to addr. The connection is established lazily by gRPC, so
// an unreachable service surfaces on the first call.
func Dial(log *slog.Logger, addr string, appID int32, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	const op = "remote.Dial"

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := New(log, conn, appID, timeout)
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	info := utils.ClientInfoFromContext(ctx)
	ctx = utils.AppendClientMetadata(ctx, info.UserAgent, info.IP)
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (models.Grant, error) {
	const op = "remote.Client.SignIn"
	log := c.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("email", utils.MaskEmail(email)),
	)

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Login(ctx, &sso.LoginRequest{
		Email:    email,
		Password: password,
		AppId:    c.appID,
	})
	if err != nil {
		err = translate(err)
		log.Warn("login failed", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	return grantFromLogin(resp)
}

// SignUp registers the account and logs it in; the SSO service does not
// issue tokens on registration.
func (c *Client) SignUp(ctx context.Context, email, password string) (models.Grant, error) {
	const op = "remote.Client.SignUp"
	log := c.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("email", utils.MaskEmail(email)),
	)

	rctx, cancel := c.callContext(ctx)
	_, err := c.api.Register(rctx, &sso.RegisterRequest{
		Email:    email,
		Username: utils.UsernameFromEmail(email),
		Password: password,
	})
	cancel()
	if err != nil {
		err = translate(err)
		log.Warn("register failed", logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered")
	return c.SignIn(ctx, email, password)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.Grant, error) {
	const op = "remote.Client.Refresh"

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.RefreshToken(ctx, &sso.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		err = translate(err)
		c.log.Warn("refresh failed", logger.StringAttr("op", op), logger.ErrAttr(err))
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	grant := models.Grant{
		AccessToken:  resp.GetAccessToken(),
		RefreshToken: refreshToken,
		ExpiresAt:    resp.GetAccessTokenExpiresAt().AsTime(),
	}
	if claims, err := jwt.ExtractUnverifiedAccessTokenClaims(grant.AccessToken); err == nil {
		grant.User.ID = claims.UserID()
		grant.User.Role = claims.Role
	}
	return grant, nil
}

// SignOut ends the session the refresh token was issued for.
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	const op = "remote.Client.SignOut"

	claims, err := jwt.ExtractUnverifiedRefreshTokenClaims(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, auth.ErrInvalidToken)
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Logout(ctx, &sso.LogoutRequest{SessionId: claims.SID}); err != nil {
		err = translate(err)
		c.log.Warn("logout failed", logger.StringAttr("op", op), logger.ErrAttr(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func grantFromLogin(resp *sso.LoginResponse) (models.Grant, error) {
	u := resp.GetUser()
	grant := models.Grant{
		AccessToken:  resp.GetAccessToken(),
		RefreshToken: resp.GetRefreshToken(),
		ExpiresAt:    resp.GetAccessTokenExpiresAt().AsTime(),
		User: models.User{
			Email:     u.GetEmail(),
			Username:  u.GetUsername(),
			AvatarURL: u.GetAvatarUrl(),
			Role:      int32(u.GetRole()),
		},
	}

	// The user id only travels inside the access token.
	claims, err := jwt.ExtractUnverifiedAccessTokenClaims(grant.AccessToken)
	if err != nil {
		return models.Grant{}, fmt.Errorf("remote: %w: %v", auth.ErrInvalidToken, err)
	}
	grant.User.ID = claims.UserID()
	return grant, nil
}

// translate maps SSO status errors onto the provider sentinels.
func translate(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", auth.ErrInvalidCredentials, st.Message())
	}

	code, _, _ := strings.Cut(st.Message(), ":")
	switch code {
	case "AS-001", "AS-008":
		return auth.ErrEmailAlreadyExists
	case "AS-002":
		return auth.ErrUsernameAlreadyExists
	case "AS-003":
		return auth.ErrInvalidCredentials
	case "AS-004":
		return auth.ErrUserBlocked
	case "AS-005":
		return auth.ErrSessionRevoked
	case "AS-006":
		return auth.ErrInvalidToken
	}
	return err
}
