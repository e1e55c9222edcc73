package models

import "time"

// Session is the authenticated identity held by the popup.
// ExpiresAt is seconds since epoch, 0 means no active session.
type Session struct {
	User      *User
	ExpiresAt int64
}

// Grant is what an identity provider hands back after sign-in, sign-up or refresh.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Credentials is the persisted session kept by the background process.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         User
	Expiration   int64
	UserID       string
}

// Expired reports whether the access token expired at the given moment.
func (c Credentials) Expired(now time.Time) bool {
	return c.Expiration != 0 && now.Unix() >= c.Expiration
}

// CredentialsFromGrant builds the persisted form of a grant.
func CredentialsFromGrant(g Grant) Credentials {
	var exp int64
	if !g.ExpiresAt.IsZero() {
		exp = g.ExpiresAt.Unix()
	}
	return Credentials{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		User:         g.User,
		Expiration:   exp,
		UserID:       g.User.ID,
	}
}
