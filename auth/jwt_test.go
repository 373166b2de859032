package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(JWTConfig{}); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("NewVerifier() error = %v, want ErrMissingSecret", err)
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: testSecret, Issuer: "ops", Audience: "pulse"})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	valid := jwt.MapClaims{
		"sub": "oncall",
		"iss": "ops",
		"aud": "pulse",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"valid", "Bearer " + sign(t, valid, testSecret), nil},
		{"missing header", "", ErrMissingCredentials},
		{"wrong scheme", "Basic abc", ErrMissingCredentials},
		{"garbage", "Bearer not.a.jwt", ErrTokenMalformed},
		{"wrong key", "Bearer " + sign(t, valid, []byte("other")), ErrInvalidCredentials},
		{"expired", "Bearer " + sign(t, jwt.MapClaims{
			"sub": "oncall", "iss": "ops", "aud": "pulse",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}, testSecret), ErrTokenExpired},
		{"wrong issuer", "Bearer " + sign(t, jwt.MapClaims{
			"sub": "oncall", "iss": "other", "aud": "pulse",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSecret), ErrInvalidCredentials},
		{"wrong audience", "Bearer " + sign(t, jwt.MapClaims{
			"sub": "oncall", "iss": "ops", "aud": "billing",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSecret), ErrInvalidCredentials},
		{"no expiry", "Bearer " + sign(t, jwt.MapClaims{
			"sub": "oncall", "iss": "ops", "aud": "pulse",
		}, testSecret), ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if id.Subject != "oncall" {
				t.Errorf("Subject = %q, want 'oncall'", id.Subject)
			}
		})
	}
}
