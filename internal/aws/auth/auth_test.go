package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerIdFromAuthorizer(t *testing.T) {
	authorizer := map[string]interface{}{
		"jwt": map[string]interface{}{
			"claims": map[string]interface{}{"sub": "alice"},
		},
	}
	playerId, err := PlayerIdFromAuthorizer(authorizer)
	require.NoError(t, err)
	assert.Equal(t, "alice", playerId)
	assert.Equal(t, "alice", MustAuth(authorizer))
}

func TestPlayerIdFromAuthorizerErrors(t *testing.T) {
	tests := []struct {
		name       string
		authorizer map[string]interface{}
		want       error
	}{
		{"missing jwt", map[string]interface{}{}, ErrNoJwt},
		{"missing claims", map[string]interface{}{"jwt": map[string]interface{}{}}, ErrNoClaims},
		{"claims not a map", map[string]interface{}{"jwt": map[string]interface{}{"claims": "x"}}, ErrNotAnObject},
		{"empty sub", map[string]interface{}{"jwt": map[string]interface{}{"claims": map[string]interface{}{"sub": ""}}}, ErrInvalidSub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlayerIdFromAuthorizer(tt.authorizer)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Panics(t, func() { MustAuth(nil) })
}
