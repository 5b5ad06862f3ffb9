package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestNewAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("k", "ops", RoleAdmin, 5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil })
	if err != nil || !tok.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["sub"] != "ops" || claims["role"] != RoleAdmin {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "hunter2") || VerifyPassword(hash, "wrong") {
		t.Fatalf("verify mismatch")
	}
}
