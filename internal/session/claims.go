package session

import (
	"strings"

	"loan-console/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// userFromToken derives the display user from a token's claims without
// verifying the signature. The result is never used for authorization.
func userFromToken(token string) *models.CurrentUser {
	user := &models.CurrentUser{}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return user
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		user.Email = email
	} else if sub, err := claims.GetSubject(); err == nil && strings.Contains(sub, "@") {
		user.Email = sub
	}
	if name, ok := claims["name"].(string); ok {
		user.DisplayName = name
	}
	return user
}

func userFromEmail(email string) *models.CurrentUser {
	return &models.CurrentUser{Email: email}
}
