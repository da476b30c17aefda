// Package jwtauth is the concrete collaborator behind the core's "auth
// enabled + token-verify function" boundary: a single-operator login that
// issues one HS256 token and a verify function the HTTP layer calls on
// every request, when auth is enabled. The core itself never imports this
// package directly — internal/server wires its own verifyToken method (an
// api.TokenVerifier returning the token's subject) into internal/api's
// middleware, keeping token issuance outside the core.
package jwtauth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

// Claims is the single-operator token's payload: just enough to confirm
// the holder authenticated as the one configured username.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for username, valid for ttl, using secret as the
// HMAC key.
func IssueToken(username, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify parses and validates tokenString against secret, returning the
// decoded claims.
func Verify(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// VerifierFunc builds a boolean form of Verify for secret. internal/server
// does not use it: api.AuthMiddleware takes an api.TokenVerifier, which
// also returns the token's subject.
func VerifierFunc(secret string) func(tokenString string) bool {
	return func(tokenString string) bool {
		_, err := Verify(tokenString, secret)
		return err == nil
	}
}

// HashPassword hashes password with Argon2id, in the same encoded format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash) the operator's password_hash
// configuration value must be in.
func HashPassword(password string, salt []byte) string {
	const (
		argonTime    = 1
		argonMemory  = 64 * 1024
		argonThreads = 4
		argonKeyLen  = 32
	)
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

// VerifyPassword checks password against an Argon2id-encoded hash produced
// by HashPassword, in constant time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false, errors.New("invalid hash format")
	}
	var m, t, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &threads); err != nil {
		return false, errors.New("invalid parameters in hash")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errors.New("invalid salt in hash")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errors.New("invalid hash value")
	}
	got := argon2.IDKey([]byte(password), salt, t, m, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
