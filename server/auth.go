package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth verifies the HS256 tokens clients present on connect. Identity
// issuance belongs to the platform's session layer; the relay only needs to
// recover the durable user id from a token it trusts.
type Auth struct {
	secret []byte
}

// NewAuth creates a verifier for the given shared secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Mint signs a connect token for userID. Used by the demo client and tests;
// in production the platform mints these.
func (a *Auth) Mint(userID string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     time.Now().Unix(),
	})
	return tok.SignedString(a.secret)
}

// Verify checks the signature and returns the user id carried in the token.
func (a *Auth) Verify(tokenStr string) (string, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", fmt.Errorf("invalid token")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", fmt.Errorf("token has no user_id claim")
	}
	return userID, nil
}
