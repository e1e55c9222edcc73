package models

// Action is one of the verbs exchanged between the popup and the background process.
type Action string

const (
	ActionSignIn         Action = "signin"
	ActionSignUp         Action = "signup"
	ActionSignOut        Action = "signout"
	ActionGetSession     Action = "getsession"
	ActionRefreshSession Action = "refreshsession"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionSignIn, ActionSignUp, ActionSignOut, ActionGetSession, ActionRefreshSession:
		return true
	}
	return false
}

// CredentialsValue is the payload of signin and signup requests.
type CredentialsValue struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthRequest is an outbound message. It is sent once and never retried verbatim.
type AuthRequest struct {
	Action Action            `json:"action"`
	Value  *CredentialsValue `json:"value,omitempty"`
}

func SignInRequest(email, password string) AuthRequest {
	return AuthRequest{Action: ActionSignIn, Value: &CredentialsValue{Email: email, Password: password}}
}

func SignUpRequest(email, password string) AuthRequest {
	return AuthRequest{Action: ActionSignUp, Value: &CredentialsValue{Email: email, Password: password}}
}

func SignOutRequest() AuthRequest { return AuthRequest{Action: ActionSignOut} }

func GetSessionRequest() AuthRequest { return AuthRequest{Action: ActionGetSession} }

func RefreshSessionRequest() AuthRequest { return AuthRequest{Action: ActionRefreshSession} }
