// Package auth verifies bearer tokens presented on the HTTP and
// websocket surfaces. Token issuance is owned by the identity service;
// this package only validates signatures and extracts the identity.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veritest/veritest/internal/services/tracker/domain"
)

// Identity is the authenticated principal carried by a token. The role
// and department are advisory; guard decisions use the stored user.
type Identity struct {
	UserID     string
	Role       domain.Role
	Department string
}

// Verifier validates HS256-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the shared signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(trimmed)}, nil
}

type tokenClaims struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}

// Verify parses and validates a token string and returns its identity.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if v == nil {
		return Identity{}, fmt.Errorf("verifier is not configured")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, fmt.Errorf("token is required")
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Identity{}, fmt.Errorf("token is invalid")
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return Identity{}, fmt.Errorf("token carries no user id")
	}

	identity := Identity{UserID: userID, Department: strings.TrimSpace(claims.Department)}
	if strings.TrimSpace(claims.Role) != "" {
		role, roleErr := domain.RoleFromLabel(claims.Role)
		if roleErr != nil {
			return Identity{}, fmt.Errorf("token role: %w", roleErr)
		}
		identity.Role = role
	}
	return identity, nil
}

// BearerToken extracts the token from an Authorization header value or
// falls back to an explicit token parameter.
func BearerToken(authorizationHeader string, tokenParam string) string {
	header := strings.TrimSpace(authorizationHeader)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(tokenParam)
}
