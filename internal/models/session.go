package models

// CurrentUser is derived client-side for display only; authorization is
// the backend's job.
type CurrentUser struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session is the client's authentication state. User is set iff Token is.
type Session struct {
	Token string       `json:"-"`
	User  *CurrentUser `json:"currentUser,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// SignInRequest is the body of POST /users/sign_in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	AccessToken string `json:"access_token"`
}
