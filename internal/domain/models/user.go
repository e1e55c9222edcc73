package models

// User is the identity record returned by the identity provider.
// Only ID is guaranteed to be set.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      int32  `json:"role,omitempty"`
}
