// Package auth resolves inbound requests to an authenticated identity.
// Tokens are issued by the external identity provider; this gate only
// verifies them. No caching: every request is checked independently.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every way a request can fail the session check.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the stable authenticated user behind a request.
type Identity struct {
	UserID string
	Email  string
}

// Service verifies session tokens against the identity provider's
// shared secret.
type Service struct {
	secret     []byte
	cookieName string
}

// NewService creates the session gate.
func NewService(secret, cookieName string) *Service {
	return &Service{secret: []byte(secret), cookieName: cookieName}
}

// Authenticate extracts and verifies the session token, returning the
// caller's identity. Identity is always derived here, never from
// request bodies.
func (s *Service) Authenticate(r *http.Request) (Identity, error) {
	token := s.extractToken(r)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: no session token", ErrUnauthorized)
	}

	claims, err := s.validate(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: token missing subject", ErrUnauthorized)
	}

	email, _ := claims["email"].(string)
	return Identity{UserID: sub, Email: email}, nil
}

// extractToken prefers the session cookie and falls back to a bearer
// header for non-browser clients.
func (s *Service) extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}

func (s *Service) validate(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
