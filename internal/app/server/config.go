package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chess-vn/lines/pkg/logging"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	IdleTimeout    time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	MaxQueueSize       int
	QueueStaleAfter    time.Duration
	QueueSweepInterval time.Duration
	QueueDebugChecks   bool

	ReadyTimeout   time.Duration
	DefaultRank    int
	StorageTimeout time.Duration

	AuthSecret string

	StorageDriver        string
	RedisUrl             string
	RedisPrefix          string
	GameTTL              time.Duration
	GamesTableName       string
	PlayerRanksTableName string
	PostgresUrl          string

	AwsRegion           string
	ApiGatewayEndpoint  string
	EndGameFunctionName string
	TaskProtection      bool

	Log logging.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "7202")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Server.IdleTimeout", "60s")
	v.SetDefault("Server.PingInterval", "25s")
	v.SetDefault("Server.WriteTimeout", "5s")
	v.SetDefault("Server.MaxMessageSize", 4096)

	v.SetDefault("Queue.MaxSize", 50)
	v.SetDefault("Queue.StaleAfter", "0s")
	v.SetDefault("Queue.SweepInterval", "30s")
	v.SetDefault("Queue.DebugChecks", false)

	v.SetDefault("Match.ReadyTimeout", "30s")
	v.SetDefault("Match.DefaultRank", 0)

	v.SetDefault("Storage.Driver", "memory")
	v.SetDefault("Storage.Timeout", "3s")
	v.SetDefault("Storage.GameTTL", "24h")
	v.SetDefault("Storage.GamesTable", "Games")
	v.SetDefault("Storage.PlayerRanksTable", "PlayerRanks")
	v.SetDefault("Redis.Url", "redis://localhost:6379/0")
	v.SetDefault("Redis.Prefix", "lines")

	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "json")
	v.SetDefault("Log.ShowCaller", false)
}

// NewConfig reads configs/server/config.yaml (or ./config.yaml) and applies
// environment overrides such as SERVER_PORT or QUEUE_MAXSIZE. A missing
// config file leaves the defaults in place.
func NewConfig(configPaths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{"./configs/server", "."}
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           v.GetString("Server.Port"),
		AllowedOrigins: v.GetStringSlice("Server.AllowedOrigins"),
		IdleTimeout:    v.GetDuration("Server.IdleTimeout"),
		PingInterval:   v.GetDuration("Server.PingInterval"),
		WriteTimeout:   v.GetDuration("Server.WriteTimeout"),
		MaxMessageSize: v.GetInt64("Server.MaxMessageSize"),

		MaxQueueSize:       v.GetInt("Queue.MaxSize"),
		QueueStaleAfter:    v.GetDuration("Queue.StaleAfter"),
		QueueSweepInterval: v.GetDuration("Queue.SweepInterval"),
		QueueDebugChecks:   v.GetBool("Queue.DebugChecks"),

		ReadyTimeout:   v.GetDuration("Match.ReadyTimeout"),
		DefaultRank:    v.GetInt("Match.DefaultRank"),
		StorageTimeout: v.GetDuration("Storage.Timeout"),

		AuthSecret: v.GetString("Auth.Secret"),

		StorageDriver:        strings.ToLower(v.GetString("Storage.Driver")),
		RedisUrl:             v.GetString("Redis.Url"),
		RedisPrefix:          v.GetString("Redis.Prefix"),
		GameTTL:              v.GetDuration("Storage.GameTTL"),
		GamesTableName:       v.GetString("Storage.GamesTable"),
		PlayerRanksTableName: v.GetString("Storage.PlayerRanksTable"),
		PostgresUrl:          v.GetString("Postgres.Url"),

		AwsRegion:           v.GetString("Aws.Region"),
		ApiGatewayEndpoint:  v.GetString("Aws.ApiGatewayEndpoint"),
		EndGameFunctionName: v.GetString("Aws.EndGameFunctionName"),
		TaskProtection:      v.GetBool("Aws.TaskProtection"),

		Log: logging.Config{
			Level:      v.GetString("Log.Level"),
			Format:     v.GetString("Log.Format"),
			ShowCaller: v.GetBool("Log.ShowCaller"),
		},
	}
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("Server.Port must be set")
	}
	if cfg.MaxQueueSize <= 0 {
		return Config{}, fmt.Errorf("Queue.MaxSize must be positive, got %d", cfg.MaxQueueSize)
	}
	switch cfg.StorageDriver {
	case "memory", "redis", "dynamodb":
	default:
		return Config{}, fmt.Errorf("unknown Storage.Driver %q", cfg.StorageDriver)
	}
	return cfg, nil
}
