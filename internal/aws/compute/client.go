// Package compute talks to the container and function services the game
// server runs next to: ECS for scale-in protection of the running task and
// Lambda for the end-game hook.
package compute

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

type ecsApi interface {
	UpdateTaskProtection(ctx context.Context, params *ecs.UpdateTaskProtectionInput, optFns ...func(*ecs.Options)) (*ecs.UpdateTaskProtectionOutput, error)
}

type lambdaApi interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type Config struct {
	ClusterName         *string
	TaskArn             *string
	EndGameFunctionName *string
}

type Client struct {
	ecs    ecsApi
	lambda lambdaApi
	cfg    Config
}

func NewClient(awsCfg aws.Config, cfg Config) *Client {
	return newClient(ecs.NewFromConfig(awsCfg), lambda.NewFromConfig(awsCfg), cfg)
}

func newClient(ecsClient ecsApi, lambdaClient lambdaApi, cfg Config) *Client {
	return &Client{
		ecs:    ecsClient,
		lambda: lambdaClient,
		cfg:    cfg,
	}
}
