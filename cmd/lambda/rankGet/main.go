package main

import (
	"context"
	"encoding/json"
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
	"github.com/chess-vn/lines/pkg/logging"
	"go.uber.org/zap"
)

type rankFinder interface {
	FindRankOf(ctx context.Context, playerId string) (int, error)
}

var storageClient rankFinder

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageCfg := storage.DefaultConfig()
	if table := os.Getenv("PLAYER_RANKS_TABLE_NAME"); table != "" {
		storageCfg.PlayerRanksTableName = aws.String(table)
	}
	if rank, err := strconv.Atoi(os.Getenv("DEFAULT_RANK")); err == nil {
		storageCfg.DefaultRank = rank
	}
	storageClient = storage.NewClient(dynamodb.NewFromConfig(cfg), storageCfg)
}

// handler returns the rank of the player in the path, or of the caller when
// the path names nobody.
func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	playerId, err := auth.PlayerIdFromAuthorizer(event.RequestContext.Authorizer)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
	}
	targetId := event.PathParameters["id"]
	if targetId == "" {
		targetId = playerId
	}

	rank, err := storageClient.FindRankOf(ctx, targetId)
	if err != nil {
		logging.Error("Failed to get player rank", zap.String("playerId", targetId), zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	rankJson, err := json.Marshal(dtos.PlayerRankResponseFromEntity(entities.PlayerRank{
		PlayerId: targetId,
		Rank:     rank,
	}))
	if err != nil {
		logging.Error("Failed to marshal player rank", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(rankJson),
	}, nil
}

func main() {
	lambda.Start(handler)
}
