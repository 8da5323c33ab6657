package utils

import (
	"errors"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "z-ebook-api")
	token, err := m.GenerateToken("user-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Subject != "user-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenErrors(t *testing.T) {
	m := NewJWTManager("secret", "z-ebook-api")
	expired, _ := m.GenerateToken("user-1", -time.Minute)
	otherIssuer, _ := NewJWTManager("secret", "someone-else").GenerateToken("user-1", time.Hour)
	otherSecret, _ := NewJWTManager("other", "z-ebook-api").GenerateToken("user-1", time.Hour)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrExpiredToken},
		{"issuer", otherIssuer, ErrInvalidToken},
		{"secret", otherSecret, ErrInvalidToken},
		{"garbage", "not-a-token", ErrInvalidToken},
	}
	for _, tt := range tests {
		if _, err := m.ParseToken(tt.token); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
