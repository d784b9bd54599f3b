package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/chess-vn/lines/internal/domains/entities"
)

var (
	ErrMissingTaskMetadata = errors.New("missing task metadata")
	ErrNoEndGameFunction   = errors.New("end game function not configured")
)

type TaskMetadata struct {
	TaskArn     string `json:"TaskARN"`
	ClusterName string `json:"Cluster"`
}

// LoadTaskMetadata reads the task metadata endpoint that ECS exposes to
// every container. It returns ErrMissingTaskMetadata outside of ECS.
func LoadTaskMetadata(ctx context.Context) (TaskMetadata, error) {
	uri := os.Getenv("ECS_CONTAINER_METADATA_URI_V4")
	if uri == "" {
		return TaskMetadata{}, ErrMissingTaskMetadata
	}
	return fetchTaskMetadata(ctx, &http.Client{Timeout: 3 * time.Second}, uri+"/task")
}

func fetchTaskMetadata(ctx context.Context, httpClient *http.Client, url string) (TaskMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TaskMetadata{}, fmt.Errorf("task metadata: unexpected status %d", resp.StatusCode)
	}
	var metadata TaskMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return TaskMetadata{}, fmt.Errorf("failed to decode body: %w", err)
	}
	if metadata.TaskArn == "" || metadata.ClusterName == "" {
		return TaskMetadata{}, ErrMissingTaskMetadata
	}
	return metadata, nil
}

// UpdateServerProtection toggles scale-in protection of the running task so
// it is not stopped while sessions are live.
func (client *Client) UpdateServerProtection(
	ctx context.Context,
	enabled bool,
) error {
	if client.cfg.ClusterName == nil || client.cfg.TaskArn == nil {
		return ErrMissingTaskMetadata
	}
	_, err := client.ecs.UpdateTaskProtection(ctx, &ecs.UpdateTaskProtectionInput{
		Cluster:           client.cfg.ClusterName,
		Tasks:             []string{*client.cfg.TaskArn},
		ProtectionEnabled: enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to update task protection: %w", err)
	}
	return nil
}

// InvokeEndGame fires the end-game function asynchronously with the
// concluded game as payload.
func (client *Client) InvokeEndGame(
	ctx context.Context,
	game entities.GameRecord,
) error {
	if client.cfg.EndGameFunctionName == nil || *client.cfg.EndGameFunctionName == "" {
		return ErrNoEndGameFunction
	}
	payload, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}
	_, err = client.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   client.cfg.EndGameFunctionName,
		Payload:        payload,
		InvocationType: types.InvocationTypeEvent,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", aws.ToString(client.cfg.EndGameFunctionName), err)
	}
	return nil
}
