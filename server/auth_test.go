package server

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestAuthMintVerifyRoundTrip(t *testing.T) {
	auth := NewAuth("secret")

	tok, err := auth.Mint("alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, tok)

	userID, err := auth.Verify(tok)
	assert.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	tok, err := NewAuth("secret-a").Mint("alice")
	assert.NoError(t, err)

	_, err = NewAuth("secret-b").Verify(tok)
	assert.Error(t, err)
}

func TestAuthRejectsMissingUserID(t *testing.T) {
	auth := NewAuth("secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "nope"})
	tokStr, err := tok.SignedString([]byte("secret"))
	assert.NoError(t, err)

	_, err = auth.Verify(tokStr)
	assert.Error(t, err)
}

func TestAuthRejectsGarbage(t *testing.T) {
	_, err := NewAuth("secret").Verify("not-a-token")
	assert.Error(t, err)
}
