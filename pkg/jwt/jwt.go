package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaims = errors.New("invalid token claims")

func sign(claims jwt.Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return tokenStr, nil
}

func verify[T jwt.Claims](tokenStr, secretKey string, claims T) (T, error) {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid token signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return claims, fmt.Errorf("error parsing token: %w", err)
	}

	parsed, ok := token.Claims.(T)
	if !ok {
		return claims, ErrInvalidClaims
	}
	return parsed, nil
}

func unverified[T jwt.Claims](tokenStr string, claims T) (T, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return claims, fmt.Errorf("failed to parse token: %w", err)
	}

	parsed, ok := token.Claims.(T)
	if !ok {
		return claims, ErrInvalidClaims
	}
	return parsed, nil
}

func CreateAccessToken(uid int64, aid int32, role int32, duration time.Duration, secretKey string) (string, *UserClaims, error) {
	claims, err := NewUserClaims(uid, aid, role, duration)
	if err != nil {
		return "", nil, err
	}
	tokenStr, err := sign(claims, secretKey)
	if err != nil {
		return "", nil, err
	}
	return tokenStr, claims, nil
}

func VerifyAccessToken(tokenStr, secretKey string) (*UserClaims, error) {
	return verify(tokenStr, secretKey, &UserClaims{})
}

func CreateRefreshToken(uid int64, aid int32, sid string, duration time.Duration, secretKey string) (string, *RefreshTokenClaims, error) {
	claims, err := NewRefreshTokenClaims(uid, aid, sid, duration)
	if err != nil {
		return "", nil, err
	}
	tokenStr, err := sign(claims, secretKey)
	if err != nil {
		return "", nil, err
	}
	return tokenStr, claims, nil
}

func VerifyRefreshToken(tokenStr, secretKey string) (*RefreshTokenClaims, error) {
	return verify(tokenStr, secretKey, &RefreshTokenClaims{})
}

// ExtractUnverifiedRefreshTokenClaims reads the claims without checking the
// signature. The session id is needed before the per-session secret is known.
func ExtractUnverifiedRefreshTokenClaims(tokenStr string) (*RefreshTokenClaims, error) {
	return unverified(tokenStr, &RefreshTokenClaims{})
}

// ExtractUnverifiedAccessTokenClaims is used by clients that hold a token but
// not the key it was signed with.
func ExtractUnverifiedAccessTokenClaims(tokenStr string) (*UserClaims, error) {
	return unverified(tokenStr, &UserClaims{})
}
