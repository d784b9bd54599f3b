package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamoApi is the subset of the DynamoDB client the store needs.
type dynamoApi interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type Config struct {
	GamesTableName       *string
	PlayerRanksTableName *string
	DefaultRank          int
}

func DefaultConfig() Config {
	return Config{
		GamesTableName:       aws.String("Games"),
		PlayerRanksTableName: aws.String("PlayerRanks"),
	}
}

type Client struct {
	dynamodb dynamoApi
	cfg      Config
}

func NewClient(dynamoClient *dynamodb.Client, cfg Config) *Client {
	return newClient(dynamoClient, cfg)
}

func newClient(api dynamoApi, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.GamesTableName == nil || *cfg.GamesTableName == "" {
		cfg.GamesTableName = def.GamesTableName
	}
	if cfg.PlayerRanksTableName == nil || *cfg.PlayerRanksTableName == "" {
		cfg.PlayerRanksTableName = def.PlayerRanksTableName
	}
	return &Client{
		dynamodb: api,
		cfg:      cfg,
	}
}
