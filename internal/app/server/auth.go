package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// auth extracts the player id from a bearer token signed with the configured
// secret. Without a secret every request is anonymous and the player id is
// taken from the first event the connection sends.
func (s *server) auth(r *http.Request) (string, error) {
	if s.config.AuthSecret == "" {
		return "", nil
	}
	token := bearerToken(r)
	if token == "" {
		return "", fmt.Errorf("%w: no authorization", ErrUnauthorized)
	}
	validToken, err := s.validateJwt(token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token: %w", ErrUnauthorized, err)
	}
	userId, err := validToken.Claims.GetSubject()
	if err != nil || userId == "" {
		return "", fmt.Errorf("%w: user id not found", ErrUnauthorized)
	}
	return userId, nil
}

func (s *server) validateJwt(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AuthSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter since browsers cannot set headers on websocket handshakes.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
