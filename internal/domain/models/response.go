package models

const (
	// SessionExpiredMessage is the error text the popup pattern-matches when no code is present.
	SessionExpiredMessage = "Session has expired"
	// CodeSessionExpired marks the expiry error explicitly.
	CodeSessionExpired = "session_expired"
)

// AuthResponse carries exactly one of Data or Error.
type AuthResponse struct {
	Data  *ResponseData  `json:"data,omitempty"`
	Error *ResponseError `json:"error,omitempty"`
}

type ResponseData struct {
	User    *User        `json:"user,omitempty"`
	Session *SessionData `json:"session,omitempty"`
}

type SessionData struct {
	ExpiresAt int64 `json:"expires_at"`
}

type ResponseError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SessionExpired reports whether the error is the distinguished expiry error.
// The message match is kept for peers that do not send a code.
func (e *ResponseError) SessionExpired() bool {
	if e == nil {
		return false
	}
	return e.Code == CodeSessionExpired || e.Message == SessionExpiredMessage
}

// Success builds a successful response. A nil user or session is left out.
func Success(user *User, session *SessionData) AuthResponse {
	return AuthResponse{Data: &ResponseData{User: user, Session: session}}
}

// Failure builds an error response.
func Failure(message string) AuthResponse {
	return AuthResponse{Error: &ResponseError{Message: message}}
}

// Expired builds the distinguished session expiry error.
func Expired() AuthResponse {
	return AuthResponse{Error: &ResponseError{Message: SessionExpiredMessage, Code: CodeSessionExpired}}
}
