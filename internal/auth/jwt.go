// Package auth provides JWT token generation and validation for the matrix API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User signs up with nickname + password → bcrypt digest stored in DB
// 2. POST /auth/login verifies the password and returns two credentials:
//   - an access token: a short-lived signed JWT carrying {userID, nickname}
//   - a refresh token: an opaque random string persisted on the user row
//
// 3. Every /notes request carries "Authorization: Bearer <access token>";
//    middleware validates it and puts the claims in the request context
// 4. When the access token expires, the client POSTs the refresh token to
//    /auth/refresh and gets a fresh access token — no password re-entry
//
// WHY JWT FOR THE ACCESS TOKEN?
// JWT (JSON Web Token) is stateless — the server doesn't need to store session
// data. All the information needed (userID, nickname, expiry) is inside the
// signed token. The signature ensures nobody can tamper with it without the
// secret key, and verification needs no DB lookup.
//
// WHY AN OPAQUE STRING FOR THE REFRESH TOKEN?
// The refresh token is the long-lived credential, so it must be revocable.
// Revocation requires server-side state: the token lives in the users table
// and a login or logout overwrites/clears it. A JWT can't be un-signed.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is the lifetime of an access token. Short on purpose:
// a leaked access token is only useful until the next refresh cycle.
const AccessTokenTTL = 15 * time.Minute

const issuer = "eisenhower-matrix"

// Claims is what a validated access token proves about the caller.
type Claims struct {
	UserID   string
	Nickname string
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations — keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// tokenClaims is the JWT payload. It embeds jwt.RegisteredClaims which
// includes standard fields like Issuer, Subject, ExpiresAt, IssuedAt.
//
// The "sub" (Subject) claim stores the internal user ID — the standard
// claim for identifying who the token belongs to. The nickname rides
// along as a custom claim so the UI can show it without a DB round trip.
type tokenClaims struct {
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// Generate creates and signs a new access token for the given user.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple — good for single-server deployments
func (s *TokenService) Generate(userID, nickname string) (string, error) {
	return s.GenerateWithDuration(userID, nickname, AccessTokenTTL)
}

// GenerateWithDuration creates an access token with a custom expiry.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID, nickname string, d time.Duration) (string, error) {
	now := time.Now()

	c := tokenClaims{
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies an access token string.
// Returns the claims if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// UNIFORM FAILURE:
// Every failure — expired, malformed, bad signature, wrong issuer —
// comes back as the same generic error. Distinguishing them would leak
// validation internals to whoever is probing the API.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			// Reject tokens that aren't signed with HMAC
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.New("auth: invalid token")
	}

	c, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, errors.New("auth: invalid token")
	}

	return &Claims{UserID: c.Subject, Nickname: c.Nickname}, nil
}
