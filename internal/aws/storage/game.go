package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/utils"
)

const condGameAbsent = "attribute_not_exists(Id)"

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", session.ErrStorage, op, err)
}

func gameKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"Id": &types.AttributeValueMemberS{Value: id},
	}
}

func (client *Client) CreateGame(ctx context.Context, game entities.GameRecord) (string, error) {
	if game.Id == "" {
		game.Id = utils.GenerateUUID()
	}
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = time.Now()
	}
	av, err := attributevalue.MarshalMap(game)
	if err != nil {
		return "", storageErr("marshal game", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           client.cfg.GamesTableName,
		Item:                av,
		ConditionExpression: aws.String(condGameAbsent),
	})
	if err != nil {
		return "", storageErr("create game", err)
	}
	return game.Id, nil
}

func (client *Client) LoadGame(ctx context.Context, id string) (entities.GameRecord, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.GamesTableName,
		Key:       gameKey(id),
	})
	if err != nil {
		return entities.GameRecord{}, storageErr("get game", err)
	}
	if output.Item == nil {
		return entities.GameRecord{}, session.ErrGameNotFound
	}
	var game entities.GameRecord
	if err := attributevalue.UnmarshalMap(output.Item, &game); err != nil {
		return entities.GameRecord{}, storageErr("unmarshal game", err)
	}
	return game, nil
}

func (client *Client) SaveGame(ctx context.Context, game entities.GameRecord) error {
	if game.Id == "" {
		return fmt.Errorf("%w: game without id", session.ErrStorage)
	}
	av, err := attributevalue.MarshalMap(game)
	if err != nil {
		return storageErr("marshal game", err)
	}
	_, err = client.dynamodb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: client.cfg.GamesTableName,
		Item:      av,
	})
	if err != nil {
		return storageErr("put game", err)
	}
	return nil
}

func (client *Client) DeleteGame(ctx context.Context, id string) error {
	_, err := client.dynamodb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: client.cfg.GamesTableName,
		Key:       gameKey(id),
	})
	if err != nil {
		return storageErr("delete game", err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
