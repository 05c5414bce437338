// Package auth implements the minimal authentication layer SPEC_FULL.md
// adds around spec.md §6's /auth/login and role-gated admin routes (the
// distilled spec treats auth as an external concern; this repo needs a
// working version of it to serve those routes at all).
//
// Grounded on the teacher's session-cookie middleware
// (web/middleware/session.go) for the "verify identity once per request,
// stash it on the Gin context" shape, generalized here from a cookie-backed
// anonymous session to a bearer-JWT identity with a role claim, using
// golang-jwt/jwt/v5 (the JWT library the retrieval pack's other Go backends
// converge on) and golang.org/x/crypto/bcrypt for password hashing.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload: subject is the user id, Role gates admin
// routes.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer struct {
	secret      []byte
	algorithm   string
	expireAfter time.Duration
}

// NewTokenIssuer constructs a TokenIssuer. algorithm is currently always
// treated as HS256 (spec.md §6's JWT_ALGORITHM default and the only scheme
// this repo's single-secret deployment model supports).
func NewTokenIssuer(secret, algorithm string, expireMinutes int) *TokenIssuer {
	if expireMinutes <= 0 {
		expireMinutes = 1440
	}
	return &TokenIssuer{secret: []byte(secret), algorithm: algorithm, expireAfter: time.Duration(expireMinutes) * time.Minute}
}

// Issue signs a new access token for userID/username/role.
func (t *TokenIssuer) Issue(userID, username, role string) (string, error) {
	claims := Claims{
		UserID: userID, Username: username, Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.expireAfter)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches hash.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
