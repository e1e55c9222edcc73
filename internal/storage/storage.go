// Package storage defines the persisted-session schema shared by every
// credential store backend.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
)

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid stored credentials")
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyExists    = errors.New("user already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
)

var (
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrSessionNotFound      = errors.New("session not found")
)

// Keys of the persisted session. Every backend stores exactly these five entries.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserData     = "userData"
	KeyExpiration   = "expiration"
	KeyUserID       = "userId"
)

// Keys lists the persisted-session keys in a stable order.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData, KeyExpiration, KeyUserID}

// Encode flattens credentials into the five string entries.
func Encode(c models.Credentials) (map[string]string, error) {
	user, err := json.Marshal(c.User)
	if err != nil {
		return nil, fmt.Errorf("encode user data: %w", err)
	}
	return map[string]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
		KeyUserData:     string(user),
		KeyExpiration:   strconv.FormatInt(c.Expiration, 10),
		KeyUserID:       c.UserID,
	}, nil
}

// Decode rebuilds credentials from stored entries. A missing access token means
// nothing is stored.
func Decode(values map[string]string) (models.Credentials, error) {
	access, ok := values[KeyAccessToken]
	if !ok || access == "" {
		return models.Credentials{}, ErrCredentialsNotFound
	}

	c := models.Credentials{
		AccessToken:  access,
		RefreshToken: values[KeyRefreshToken],
		UserID:       values[KeyUserID],
	}

	if raw := values[KeyUserData]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.User); err != nil {
			return models.Credentials{}, fmt.Errorf("%w: user data: %v", ErrInvalidCredentials, err)
		}
	}

	if raw := values[KeyExpiration]; raw != "" {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("%w: expiration: %v", ErrInvalidCredentials, err)
		}
		c.Expiration = exp
	}

	if c.UserID == "" {
		c.UserID = c.User.ID
	}

	return c, nil
}
