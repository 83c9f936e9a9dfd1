package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	t.Parallel()

	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	token := signToken(t, testSecret, jwt.MapClaims{
		"userId":     "u1",
		"role":       "Tester",
		"department": "QA",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", identity.UserID)
	}
	if identity.Role != domain.RoleTester {
		t.Errorf("Role = %v, want Tester", identity.Role)
	}
	if identity.Department != "QA" {
		t.Errorf("Department = %q, want QA", identity.Department)
	}
}

func TestVerifySubjectFallback(t *testing.T) {
	t.Parallel()

	verifier, _ := NewVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "u2"})
	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UserID != "u2" {
		t.Errorf("UserID = %q, want u2", identity.UserID)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	verifier, _ := NewVerifier(testSecret)

	if _, err := verifier.Verify(""); err == nil {
		t.Error("empty token accepted")
	}
	if _, err := verifier.Verify("not-a-token"); err == nil {
		t.Error("malformed token accepted")
	}

	wrongSecret := signToken(t, "other-secret", jwt.MapClaims{"userId": "u1"})
	if _, err := verifier.Verify(wrongSecret); err == nil {
		t.Error("token signed with wrong secret accepted")
	}

	expired := signToken(t, testSecret, jwt.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := verifier.Verify(expired); err == nil {
		t.Error("expired token accepted")
	}

	noUser := signToken(t, testSecret, jwt.MapClaims{"role": "Tester"})
	if _, err := verifier.Verify(noUser); err == nil {
		t.Error("token without user id accepted")
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	if got := BearerToken("Bearer abc", ""); got != "abc" {
		t.Errorf("header token = %q, want abc", got)
	}
	if got := BearerToken("bearer abc", ""); got != "abc" {
		t.Errorf("lowercase scheme = %q, want abc", got)
	}
	if got := BearerToken("", "xyz"); got != "xyz" {
		t.Errorf("query token = %q, want xyz", got)
	}
	if got := BearerToken("Basic abc", "xyz"); got != "xyz" {
		t.Errorf("non-bearer header = %q, want fallback xyz", got)
	}
}
