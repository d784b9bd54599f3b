// Package notification pushes events to clients connected through the API
// Gateway websocket endpoint.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// ErrGone is returned when the target connection no longer exists.
var ErrGone = errors.New("connection gone")

type gatewayApi interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
	DeleteConnection(ctx context.Context, params *apigatewaymanagementapi.DeleteConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.DeleteConnectionOutput, error)
}

type Client struct {
	gateway gatewayApi
}

// NewClient builds a client for the websocket API at endpoint, for example
// https://<api-id>.execute-api.<region>.amazonaws.com/Prod.
func NewClient(awsCfg aws.Config, endpoint string) *Client {
	return newClient(apigatewaymanagementapi.New(apigatewaymanagementapi.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       awsCfg.Region,
		Credentials:  awsCfg.Credentials,
	}))
}

func newClient(api gatewayApi) *Client {
	return &Client{gateway: api}
}

func (client *Client) Notify(ctx context.Context, connectionId string, data []byte) error {
	_, err := client.gateway.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionId),
		Data:         data,
	})
	if err != nil {
		var gone *types.GoneException
		if errors.As(err, &gone) {
			return fmt.Errorf("%w: %s", ErrGone, connectionId)
		}
		return fmt.Errorf("failed to post to connection: %w", err)
	}
	return nil
}

// Close drops the connection on the gateway side.
func (client *Client) Close(ctx context.Context, connectionId string) error {
	_, err := client.gateway.DeleteConnection(ctx, &apigatewaymanagementapi.DeleteConnectionInput{
		ConnectionId: aws.String(connectionId),
	})
	if err != nil {
		var gone *types.GoneException
		if errors.As(err, &gone) {
			return nil
		}
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
