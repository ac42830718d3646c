package rest

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const accessTokenType = "access"

type TokenClaims struct {
	Subject string `json:"sub"`
	Type    string `json:"typ"`
	Exp     int64  `json:"exp"`
}

// CreateToken signs an access token for subject that expires after ttl.
func CreateToken(secret, subject string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
		"typ": accessTokenType,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}
