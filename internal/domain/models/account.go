package models

import (
	"strconv"
	"time"
)

// Account is a user registered with the local identity provider.
type Account struct {
	ID        int64
	Email     string
	Username  string
	PassHash  []byte
	AvatarURL string
	Role      int32
	CreatedAt time.Time
}

// User returns the public part of the account.
func (a Account) User() User {
	return User{
		ID:        strconv.FormatInt(a.ID, 10),
		Email:     a.Email,
		Username:  a.Username,
		AvatarURL: a.AvatarURL,
		Role:      a.Role,
	}
}

const (
	SessionActive  int32 = 0
	SessionRevoked int32 = 2
)

// ProviderSession is the server side of a refresh token.
type ProviderSession struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"uid"`
	RefreshHash   string     `json:"refresh_token"`
	RefreshSecret string     `json:"refresh_secret"`
	UserAgent     string     `json:"user_agent"`
	Status        int32      `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

func (s ProviderSession) Active(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}
