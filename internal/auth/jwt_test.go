package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateToken("alice", []string{CapabilitySigner, CapabilityRegistryAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %s, want alice", claims.Subject)
	}
	if !claims.HasCapability(CapabilitySigner) || !claims.HasCapability(CapabilityRegistryAdmin) {
		t.Error("expected granted capabilities to be present")
	}
	if claims.HasCapability(CapabilityEmergencyActivator) {
		t.Error("expected ungranted capability to be absent")
	}
}

func TestGenerateToken_EmptyIdentity(t *testing.T) {
	svc := NewJWTService("test-secret")
	if _, err := svc.GenerateToken("", nil); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("GenerateToken(\"\") error = %v, want ErrEmptyIdentity", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a").GenerateToken("alice", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewJWTService("secret-b").ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewJWTService("test-secret")
	if _, err := svc.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := NewJWTService("test-secret").ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken error = %v, want ErrExpiredToken", err)
	}
}

func TestValidateToken_RejectsWrongAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := NewJWTService("test-secret").ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Rotation(t *testing.T) {
	oldToken, err := NewJWTService("old-secret").GenerateToken("alice", []string{CapabilitySigner})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")

	// Tokens signed with the previous secret still validate during rotation.
	claims, err := rotated.ValidateToken(oldToken)
	if err != nil {
		t.Fatalf("ValidateToken(old): %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %s, want alice", claims.Subject)
	}

	// New tokens are signed with the current secret.
	newToken, err := rotated.GenerateToken("bob", nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewJWTService("new-secret").ValidateToken(newToken); err != nil {
		t.Errorf("ValidateToken(new): %v", err)
	}

	// After rotation completes the old secret stops working.
	done := NewJWTServiceWithRotation("new-secret", "")
	if _, err := done.ValidateToken(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken after rotation = %v, want ErrInvalidToken", err)
	}
}
