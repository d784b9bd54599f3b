// Package auth reads the caller identity that the API Gateway JWT
// authorizer attaches to proxied requests.
package auth

import "errors"

var (
	ErrNoJwt       = errors.New("no jwt")
	ErrNoClaims    = errors.New("no authorizer claims")
	ErrInvalidSub  = errors.New("invalid sub")
	ErrNotAnObject = errors.New("claims must be of type map")
)

// PlayerIdFromAuthorizer returns the sub claim of the authorizer context.
func PlayerIdFromAuthorizer(authorizer map[string]interface{}) (string, error) {
	jwt, ok := authorizer["jwt"].(map[string]interface{})
	if !ok {
		return "", ErrNoJwt
	}
	v, exists := jwt["claims"]
	if !exists {
		return "", ErrNoClaims
	}
	claims, ok := v.(map[string]interface{})
	if !ok {
		return "", ErrNotAnObject
	}
	playerId, ok := claims["sub"].(string)
	if !ok || playerId == "" {
		return "", ErrInvalidSub
	}
	return playerId, nil
}

func MustAuth(authorizer map[string]interface{}) string {
	playerId, err := PlayerIdFromAuthorizer(authorizer)
	if err != nil {
		panic(err)
	}
	return playerId
}
