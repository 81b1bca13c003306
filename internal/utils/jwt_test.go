package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessTokenClaims(t *testing.T) {
	secret := "test-secret"
	at, err := NewAccessToken(secret, 42, "ada@example.com", "MEMBER", 15)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("unexpected signing method %v", tok.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token did not verify")
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if got := claims["sub"].(float64); uint64(got) != 42 {
		t.Errorf("sub = %v, want 42", claims["sub"])
	}
	if claims["email"] != "ada@example.com" || claims["role"] != "MEMBER" {
		t.Errorf("claims = %v", claims)
	}
	if until := time.Until(at.Exp); until < 14*time.Minute || until > 15*time.Minute {
		t.Errorf("expiry %v from now, want about 15 minutes", until)
	}
}

func TestNewAccessTokenWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right-secret", 1, "a@b.c", "MEMBER", 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jwt.Parse(at.Token, func(*jwt.Token) (any, error) {
		return []byte("wrong-secret"), nil
	}); err == nil {
		t.Fatal("token verified under the wrong secret")
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	rt, err := NewRefreshToken(30)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw token length = %d, want 96 hex chars", len(rt.Raw))
	}

	h1 := HashRefreshRaw(rt.Raw)
	h2 := HashRefreshRaw(rt.Raw)
	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h1))
	}
	if h1 == rt.Raw[:64] {
		t.Fatal("hash must not echo the raw token")
	}

	other, err := NewRefreshToken(30)
	if err != nil {
		t.Fatal(err)
	}
	if other.Raw == rt.Raw {
		t.Fatal("two refresh tokens collided")
	}
}
