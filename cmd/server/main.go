package main

import (
	"context"

	"github.com/chess-vn/lines/internal/app/server"
	"github.com/chess-vn/lines/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := server.NewConfig()
	if err != nil {
		logging.Fatal("failed to load config", zap.Error(err))
	}
	logging.Init(cfg.Log)
	defer logging.Sync()

	opts, cleanup, err := server.OptionsFromConfig(context.Background(), cfg)
	if err != nil {
		logging.Fatal("failed to build dependencies", zap.Error(err))
	}
	defer cleanup()

	logging.Fatal("Game server exited: ", zap.Error(
		server.NewServer(cfg, opts...).Start(),
	))
}
