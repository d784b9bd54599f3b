package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/lines/internal/aws/auth"
	"github.com/chess-vn/lines/internal/aws/storage"
	"github.com/chess-vn/lines/internal/domains/dtos"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/session"
)

type gameLoader interface {
	LoadGame(ctx context.Context, id string) (entities.GameRecord, error)
}

var storageClient gameLoader

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageCfg := storage.DefaultConfig()
	if table := os.Getenv("GAMES_TABLE_NAME"); table != "" {
		storageCfg.GamesTableName = aws.String(table)
	}
	if rank, err := strconv.Atoi(os.Getenv("DEFAULT_RANK")); err == nil {
		storageCfg.DefaultRank = rank
	}
	storageClient = storage.NewClient(dynamodb.NewFromConfig(cfg), storageCfg)
}

// handler returns a stored game to one of its players.
func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	playerId, err := auth.PlayerIdFromAuthorizer(event.RequestContext.Authorizer)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
	}
	gameId := event.PathParameters["id"]
	if gameId == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	game, err := storageClient.LoadGame(ctx, gameId)
	if err != nil {
		if errors.Is(err, session.ErrGameNotFound) {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound}, nil
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to get game: %w", err)
	}
	if !game.HasPlayer(playerId) {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusForbidden}, nil
	}

	gameJson, err := json.Marshal(dtos.GameStateResponseFromEntity(game))
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to marshal response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(gameJson),
	}, nil
}

func main() {
	lambda.Start(handler)
}
