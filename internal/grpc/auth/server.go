// Package auth serves the local identity provider over the SSO gRPC API, so
// the background process can act as the SSO service for other clients.
package auth

import (
	"context"
	"errors"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/services/auth"
	"github.com/FurmanovVitaliy/extension-auth/pkg/jwt"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	sso "github.com/FurmanovVitaliy/grpc-api/gen/go/sso_v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type Auth interface {
	Register(ctx context.Context, email, username, password string) error
	SignIn(ctx context.Context, email, password string) (models.Grant, error)
	RevokeSession(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, refreshToken string) (models.Grant, error)
}

type serverAPI struct {
	sso.UnimplementedAuthServer
	auth Auth
}

var (
	ErrInternal           = status.Error(codes.Internal, "AS-000: An unexpected internal error occurred")
	ErrEmailAlreadyExists = status.Error(codes.AlreadyExists, "AS-001: This email is already associated with an existing account")
	ErrUsernameTaken      = status.Error(codes.AlreadyExists, "AS-002: This username is already taken")
	ErrInvalidCredentials = status.Error(codes.Unauthenticated, "AS-003: Invalid email or password")
	ErrUserBlocked        = status.Error(codes.PermissionDenied, "AS-004: This account has been blocked by the administrator")
	ErrSessionExpired     = status.Error(codes.Unauthenticated, "AS-005: The session has expired or been revoked. Please log in again")
	ErrInvalidToken       = status.Error(codes.Unauthenticated, "AS-006: The token is invalid or has expired. Please log in again")
)

func Register(server *grpc.Server, auth Auth) {
	sso.RegisterAuthServer(server, &serverAPI{auth: auth})
}

func withClient(ctx context.Context) context.Context {
	userAgent, ip := utils.ExtractRequestMetadata(ctx)
	return utils.WithClientInfo(ctx, utils.ClientInfo{UserAgent: userAgent, IP: ip})
}

func (s *serverAPI) Register(ctx context.Context, req *sso.RegisterRequest) (*sso.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	err := s.auth.Register(withClient(ctx), req.GetEmail(), req.GetUsername(), req.GetPassword())
	if err != nil {
		if errors.Is(err, auth.ErrEmailAlreadyExists) {
			return nil, ErrEmailAlreadyExists
		}
		if errors.Is(err, auth.ErrUsernameAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		return nil, ErrInternal
	}
	return &sso.RegisterResponse{
		Success: true,
		Message: "User registration completed successfully",
	}, nil
}

func (s *serverAPI) Login(ctx context.Context, req *sso.LoginRequest) (*sso.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	grant, err := s.auth.SignIn(withClient(ctx), req.GetEmail(), req.GetPassword())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		if errors.Is(err, auth.ErrUserBlocked) {
			return nil, ErrUserBlocked
		}
		return nil, ErrInternal
	}

	rc, err := jwt.ExtractUnverifiedRefreshTokenClaims(grant.RefreshToken)
	if err != nil {
		return nil, ErrInternal
	}

	return &sso.LoginResponse{
		User: &sso.User{
			Email:     grant.User.Email,
			Username:  grant.User.Username,
			AvatarUrl: grant.User.AvatarURL,
			Role:      sso.Role(grant.User.Role),
		},
		SessionId:             rc.SID,
		AccessToken:           grant.AccessToken,
		RefreshToken:          grant.RefreshToken,
		AccessTokenExpiresAt:  timestamppb.New(grant.ExpiresAt),
		RefreshTokenExpiresAt: timestamppb.New(rc.ExpiresAt.Time),
		Message:               "User logged in successfully",
	}, nil
}

func (s *serverAPI) Logout(ctx context.Context, req *sso.LogoutRequest) (*sso.LogoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	if err := s.auth.RevokeSession(ctx, req.GetSessionId()); err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInternal
	}
	return &sso.LogoutResponse{
		Success: true,
		Message: "User logged out successfully",
	}, nil
}

func (s *serverAPI) RefreshToken(ctx context.Context, req *sso.RefreshTokenRequest) (*sso.RefreshTokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	grant, err := s.auth.Refresh(withClient(ctx), req.GetRefreshToken())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		if errors.Is(err, auth.ErrSessionRevoked) || errors.Is(err, auth.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		if errors.Is(err, auth.ErrUserBlocked) {
			return nil, ErrUserBlocked
		}
		return nil, ErrInternal
	}
	return &sso.RefreshTokenResponse{
		AccessToken:          grant.AccessToken,
		AccessTokenExpiresAt: timestamppb.New(grant.ExpiresAt),
	}, nil
}
