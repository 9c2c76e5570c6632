// Package auth issues and verifies the bearer credentials used by the REST API
// and by the WebSocket handshake, and hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/roomrelay/internal/chat"
)

const issuer = "roomrelay"

// Claims is the payload carried by a credential. The id/username field names
// match the tokens handed out by the REST login endpoint.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer credential into a verified identity.
type Verifier interface {
	Verify(token string) (chat.Identity, error)
}

// JWT signs and verifies HS256 tokens with a shared secret. It holds no mutable
// state and is safe for concurrent use.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT returns a JWT signer/verifier. ttl is the lifetime of issued tokens.
func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a signed token for the given user.
func (j *JWT) Issue(userID, username string) (string, error) {
	now := j.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify checks signature, algorithm and expiry. Every failure is reported as
// chat.ErrUnauthenticated wrapping the underlying cause.
func (j *JWT) Verify(token string) (chat.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return chat.Identity{}, fmt.Errorf("%w: credential is missing", chat.ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %w", chat.ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return chat.Identity{}, fmt.Errorf("%w: %w", chat.ErrUnauthenticated, jwt.ErrSignatureInvalid)
	}
	if claims.UserID == "" || claims.Username == "" {
		return chat.Identity{}, fmt.Errorf("%w: credential lacks identity claims", chat.ErrUnauthenticated)
	}

	return chat.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization header must use the Bearer scheme")
	}
	return strings.TrimSpace(token), nil
}
