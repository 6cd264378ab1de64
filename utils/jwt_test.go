package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("unit-secret", time.Hour)

	tok, err := GenerateToken("u-1", "creator")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	claims, err := VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "creator" || claims.Subject != "u-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if d := time.Until(claims.ExpiresAt.Time); d <= 0 || d > time.Hour {
		t.Fatalf("expiry in %v, want within 1h", d)
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	InitJWT("unit-secret", time.Hour)
	good, _ := GenerateToken("u-1", "user")

	InitJWT("another-secret", 0)
	if _, err := VerifyToken(good); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}

	parts := strings.Split(good, ".")
	InitJWT("unit-secret", time.Hour)
	if _, err := VerifyToken(parts[0] + "." + parts[1] + "x." + parts[2]); err == nil {
		t.Fatalf("tampered payload must be rejected")
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := VerifyToken(none); err == nil {
		t.Fatalf("alg none must be rejected")
	}

	expired := Claims{
		UserID:           "u-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}
	old, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("unit-secret"))
	if _, err := VerifyToken(old); err == nil {
		t.Fatalf("expired token must be rejected")
	}

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte("unit-secret"))
	if _, err := VerifyToken(noUser); err == nil {
		t.Fatalf("token without user_id must be rejected")
	}
}

func TestJWTUnconfigured(t *testing.T) {
	saved := jwtSecret
	jwtSecret = nil
	t.Cleanup(func() { jwtSecret = saved })

	if _, err := GenerateToken("u", "user"); err == nil {
		t.Fatalf("GenerateToken without secret should fail")
	}
	if _, err := VerifyToken("x.y.z"); err == nil {
		t.Fatalf("VerifyToken without secret should fail")
	}
}
