package jwt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserClaims are carried by access tokens.
type UserClaims struct {
	UID  int64 `json:"uid"`
	AID  int32 `json:"aid"`
	Role int32 `json:"role"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims bind a refresh token to the session it was issued for.
type RefreshTokenClaims struct {
	UID int64  `json:"uid"`
	AID int32  `json:"aid"`
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// UserID returns the uid claim in the string form used by the popup.
func (c *UserClaims) UserID() string {
	return strconv.FormatInt(c.UID, 10)
}

func registered(subject string, now time.Time, duration time.Duration) (jwt.RegisteredClaims, error) {
	tokenID, err := uuid.NewRandom()
	if err != nil {
		return jwt.RegisteredClaims{}, fmt.Errorf("error generating token ID: %w", err)
	}
	return jwt.RegisteredClaims{
		ID:        tokenID.String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}, nil
}

func NewUserClaims(uid int64, aid int32, role int32, duration time.Duration) (*UserClaims, error) {
	rc, err := registered(strconv.FormatInt(uid, 10), time.Now(), duration)
	if err != nil {
		return nil, err
	}
	return &UserClaims{UID: uid, AID: aid, Role: role, RegisteredClaims: rc}, nil
}

func NewRefreshTokenClaims(uid int64, aid int32, sid string, duration time.Duration) (*RefreshTokenClaims, error) {
	rc, err := registered(sid, time.Now(), duration)
	if err != nil {
		return nil, err
	}
	return &RefreshTokenClaims{UID: uid, AID: aid, SID: sid, RegisteredClaims: rc}, nil
}
