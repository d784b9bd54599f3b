package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/lines/internal/aws/storage"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/store/archive"
	"github.com/chess-vn/lines/pkg/logging"
	"go.uber.org/zap"
)

type gameSaver interface {
	SaveGame(ctx context.Context, game entities.GameRecord) error
}

type resultArchiver interface {
	SaveResult(ctx context.Context, game entities.GameRecord) error
}

var (
	storageClient gameSaver
	archiveRepo   resultArchiver
)

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageCfg := storage.DefaultConfig()
	if table := os.Getenv("GAMES_TABLE_NAME"); table != "" {
		storageCfg.GamesTableName = aws.String(table)
	}
	storageClient = storage.NewClient(dynamodb.NewFromConfig(cfg), storageCfg)

	if url := os.Getenv("POSTGRES_URL"); url != "" {
		repo, err := archive.Open(context.TODO(), url)
		if err != nil {
			logging.Error("Failed to open results archive", zap.Error(err))
			return
		}
		archiveRepo = repo
	}
}

// handler records a concluded game sent by the game server.
func handler(ctx context.Context, event json.RawMessage) error {
	var game entities.GameRecord
	if err := json.Unmarshal(event, &game); err != nil {
		return fmt.Errorf("failed to unmarshal game: %w", err)
	}
	if game.Id == "" || game.EndedAt == nil {
		return fmt.Errorf("%w: %q", archive.ErrNotConcluded, game.Id)
	}

	if err := storageClient.SaveGame(ctx, game); err != nil {
		return fmt.Errorf("failed to put game record: %w", err)
	}
	if archiveRepo != nil {
		if err := archiveRepo.SaveResult(ctx, game); err != nil {
			return fmt.Errorf("failed to archive game: %w", err)
		}
	}
	logging.Info("Game recorded",
		zap.String("gameId", game.Id),
		zap.String("winnerId", game.WinnerId),
		zap.String("reason", game.Reason),
	)
	return nil
}

func main() {
	lambda.Start(handler)
}
