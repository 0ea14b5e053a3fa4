package models

const (
	RoleAdmin      = "admin"
	RoleContractor = "contractor"
)

var Roles = []string{RoleAdmin, RoleContractor}

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	Contact      string `json:"contact"`
	SignInCount  int    `json:"signInCount,omitempty"`
	LastSignInAt string `json:"lastSignInAt,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserInput is the create/update payload. An empty password on create lets
// the backend assign its default; on update it leaves the password unchanged.
// The backend binds the plain password to encryptedPassword and hashes it.
type UserInput struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Contact   string `json:"contact"`
	Password  string `json:"encryptedPassword,omitempty"`
}
