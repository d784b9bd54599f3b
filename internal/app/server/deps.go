package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chess-vn/lines/internal/aws/compute"
	"github.com/chess-vn/lines/internal/aws/notification"
	"github.com/chess-vn/lines/internal/aws/storage"
	"github.com/chess-vn/lines/internal/store/archive"
	"github.com/chess-vn/lines/internal/store/memstore"
	"github.com/chess-vn/lines/internal/store/redisstore"
	"github.com/chess-vn/lines/pkg/logging"
	"go.uber.org/zap"
)

// OptionsFromConfig builds the collaborators the config asks for. The
// returned cleanup releases them.
func OptionsFromConfig(ctx context.Context, cfg Config) ([]Option, func(), error) {
	var (
		opts     []Option
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var awsCfg aws.Config
	needsAws := cfg.StorageDriver == "dynamodb" || cfg.ApiGatewayEndpoint != "" ||
		cfg.EndGameFunctionName != "" || cfg.TaskProtection
	if needsAws {
		var err error
		loadOpts := []func(*awsConfig.LoadOptions) error{}
		if cfg.AwsRegion != "" {
			loadOpts = append(loadOpts, awsConfig.WithRegion(cfg.AwsRegion))
		}
		awsCfg, err = awsConfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, cleanup, fmt.Errorf("unable to load SDK config: %w", err)
		}
	}

	switch cfg.StorageDriver {
	case "dynamodb":
		opts = append(opts, WithStore(storage.NewClient(dynamodb.NewFromConfig(awsCfg), storage.Config{
			GamesTableName:       aws.String(cfg.GamesTableName),
			PlayerRanksTableName: aws.String(cfg.PlayerRanksTableName),
			DefaultRank:          cfg.DefaultRank,
		})))
	case "redis":
		rdb, err := redisstore.Dial(ctx, cfg.RedisUrl)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() { rdb.Close() })
		opts = append(opts, WithStore(redisstore.New(rdb, redisstore.Config{
			Prefix:      cfg.RedisPrefix,
			GameTTL:     cfg.GameTTL,
			DefaultRank: cfg.DefaultRank,
		})))
	default:
		opts = append(opts, WithStore(memstore.New(cfg.DefaultRank)))
	}
	logging.Info("game store ready", zap.String("driver", cfg.StorageDriver))

	if cfg.PostgresUrl != "" {
		repo, err := archive.Open(ctx, cfg.PostgresUrl)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		cleanups = append(cleanups, func() { repo.Close() })
		opts = append(opts, WithArchive(repo))
		logging.Info("results archive ready")
	}

	if cfg.ApiGatewayEndpoint != "" {
		opts = append(opts, WithGateway(notification.NewClient(awsCfg, cfg.ApiGatewayEndpoint)))
		logging.Info("gateway notifier ready", zap.String("endpoint", cfg.ApiGatewayEndpoint))
	}

	if cfg.EndGameFunctionName != "" || cfg.TaskProtection {
		computeCfg := compute.Config{}
		if cfg.EndGameFunctionName != "" {
			computeCfg.EndGameFunctionName = aws.String(cfg.EndGameFunctionName)
		}
		if cfg.TaskProtection {
			metadata, err := compute.LoadTaskMetadata(ctx)
			switch {
			case errors.Is(err, compute.ErrMissingTaskMetadata):
				logging.Warn("task protection requested outside of ECS")
			case err != nil:
				logging.Warn("failed to load task metadata", zap.Error(err))
			default:
				computeCfg.ClusterName = aws.String(metadata.ClusterName)
				computeCfg.TaskArn = aws.String(metadata.TaskArn)
			}
		}
		opts = append(opts, WithCompute(compute.NewClient(awsCfg, computeCfg)))
	}
	return opts, cleanup, nil
}
