package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chess-vn/lines/internal/domains/dtos"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader map[string]entities.GameRecord

func (f fakeLoader) LoadGame(_ context.Context, id string) (entities.GameRecord, error) {
	if id == "broken" {
		return entities.GameRecord{}, errors.Join(session.ErrStorage, errors.New("throttled"))
	}
	game, ok := f[id]
	if !ok {
		return entities.GameRecord{}, session.ErrGameNotFound
	}
	return game, nil
}

func request(playerId, gameId string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"id": gameId},
		RequestContext: events.APIGatewayProxyRequestContext{
			Authorizer: map[string]interface{}{
				"jwt": map[string]interface{}{
					"claims": map[string]interface{}{"sub": playerId},
				},
			},
		},
	}
}

func TestHandler(t *testing.T) {
	storageClient = fakeLoader{
		"g1": {Id: "g1", PlayerBlack: "alice", PlayerWhite: "bob", Status: "finished", WinnerId: "bob"},
	}
	ctx := context.Background()

	resp, err := handler(ctx, request("alice", "g1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body dtos.GameStateResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "g1", body.SessionId)
	assert.Equal(t, "bob", body.WinnerId)

	resp, err = handler(ctx, request("carol", "g1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = handler(ctx, request("alice", "missing"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = handler(ctx, request("alice", "broken"))
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = handler(ctx, events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
