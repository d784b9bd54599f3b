package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/pkg/utils"
)

const (
	condRankAbsent    = "attribute_not_exists(PlayerId)"
	condRankUnchanged = "#rank = :old"
	maxRankRetries    = 5
)

func (client *Client) getPlayerRank(ctx context.Context, playerId string) (entities.PlayerRank, bool, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.PlayerRanksTableName,
		Key: map[string]types.AttributeValue{
			"PlayerId": &types.AttributeValueMemberS{Value: playerId},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.PlayerRank{}, false, err
	}
	if output.Item == nil {
		return entities.PlayerRank{PlayerId: playerId, Rank: client.cfg.DefaultRank}, false, nil
	}
	var rank entities.PlayerRank
	if err := attributevalue.UnmarshalMap(output.Item, &rank); err != nil {
		return entities.PlayerRank{}, false, err
	}
	return rank, true, nil
}

// FindRankOf returns the stored rank, or the default rank for unknown players.
func (client *Client) FindRankOf(ctx context.Context, playerId string) (int, error) {
	rank, _, err := client.getPlayerRank(ctx, playerId)
	if err != nil {
		return 0, storageErr("get rank", err)
	}
	return rank.Rank, nil
}

// AdjustRank reads the rank and writes it back conditioned on the value it
// read, retrying when another writer got there first.
func (client *Client) AdjustRank(ctx context.Context, playerId string, delta int) (int, error) {
	for attempt := 0; attempt < maxRankRetries; attempt++ {
		cur, exists, err := client.getPlayerRank(ctx, playerId)
		if err != nil {
			return 0, storageErr("get rank", err)
		}
		next := entities.PlayerRank{
			PlayerId:  playerId,
			Rank:      utils.ClampRank(cur.Rank, delta),
			UpdatedAt: time.Now(),
		}
		av, err := attributevalue.MarshalMap(next)
		if err != nil {
			return 0, storageErr("marshal rank", err)
		}
		input := &dynamodb.PutItemInput{
			TableName:           client.cfg.PlayerRanksTableName,
			Item:                av,
			ConditionExpression: aws.String(condRankAbsent),
		}
		if exists {
			input.ConditionExpression = aws.String(condRankUnchanged)
			input.ExpressionAttributeNames = map[string]string{"#rank": "Rank"}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":old": &types.AttributeValueMemberN{Value: strconv.Itoa(cur.Rank)},
			}
		}
		_, err = client.dynamodb.PutItem(ctx, input)
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return 0, storageErr("put rank", err)
		}
		return next.Rank, nil
	}
	return 0, storageErr("put rank", &types.ConditionalCheckFailedException{})
}
