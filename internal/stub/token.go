package stub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"loan-console/internal/models"
)

// TokenManager issues and verifies the HS256 access tokens handed out by
// the sign-in endpoint.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Generate issues a signed token carrying the user's id and email.
func (t *TokenManager) Generate(user models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   t.issuer,
		"sub":   fmt.Sprintf("%d", user.ID),
		"email": user.Email,
		"name":  user.FullName(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature, issuer and expiry and returns the email claim.
func (t *TokenManager) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("token has no email claim")
	}
	return email, nil
}
