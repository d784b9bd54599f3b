package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "lines"
	defaultGameTTL = 24 * time.Hour
	maxTxRetries   = 5
)

type Config struct {
	Prefix      string
	GameTTL     time.Duration
	DefaultRank int
}

type Store struct {
	rdb *redis.Client
	cfg Config
}

func New(rdb *redis.Client, cfg Config) *Store {
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.GameTTL <= 0 {
		cfg.GameTTL = defaultGameTTL
	}
	return &Store{rdb: rdb, cfg: cfg}
}

// Dial connects to the Redis server at url and checks it answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Store) keyGame(id string) string { return s.cfg.Prefix + ":game:" + id }
func (s *Store) keyRanks() string        { return s.cfg.Prefix + ":ranks" }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", session.ErrStorage, op, err)
}

func (s *Store) CreateGame(ctx context.Context, game entities.GameRecord) (string, error) {
	if game.Id == "" {
		game.Id = utils.GenerateUUID()
	}
	raw, err := json.Marshal(game)
	if err != nil {
		return "", storageErr("marshal game", err)
	}
	created, err := s.rdb.SetNX(ctx, s.keyGame(game.Id), raw, s.cfg.GameTTL).Result()
	if err != nil {
		return "", storageErr("create game", err)
	}
	if !created {
		return "", fmt.Errorf("%w: game %s already exists", session.ErrStorage, game.Id)
	}
	return game.Id, nil
}

func (s *Store) LoadGame(ctx context.Context, id string) (entities.GameRecord, error) {
	raw, err := s.rdb.Get(ctx, s.keyGame(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entities.GameRecord{}, session.ErrGameNotFound
	}
	if err != nil {
		return entities.GameRecord{}, storageErr("load game", err)
	}
	var game entities.GameRecord
	if err := json.Unmarshal(raw, &game); err != nil {
		return entities.GameRecord{}, storageErr("unmarshal game", err)
	}
	return game, nil
}

func (s *Store) SaveGame(ctx context.Context, game entities.GameRecord) error {
	if game.Id == "" {
		return fmt.Errorf("%w: game without id", session.ErrStorage)
	}
	raw, err := json.Marshal(game)
	if err != nil {
		return storageErr("marshal game", err)
	}
	if err := s.rdb.Set(ctx, s.keyGame(game.Id), raw, s.cfg.GameTTL).Err(); err != nil {
		return storageErr("save game", err)
	}
	return nil
}

func (s *Store) DeleteGame(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.keyGame(id)).Err(); err != nil {
		return storageErr("delete game", err)
	}
	return nil
}

func (s *Store) FindRankOf(ctx context.Context, playerId string) (int, error) {
	rank, err := s.rdb.HGet(ctx, s.keyRanks(), playerId).Int()
	if errors.Is(err, redis.Nil) {
		return s.cfg.DefaultRank, nil
	}
	if err != nil {
		return 0, storageErr("find rank", err)
	}
	return rank, nil
}

// AdjustRank updates the rank under WATCH so concurrent adjustments of the
// same hash retry instead of overwriting each other.
func (s *Store) AdjustRank(ctx context.Context, playerId string, delta int) (int, error) {
	key := s.keyRanks()
	var rank int
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGet(ctx, key, playerId).Int()
			if errors.Is(err, redis.Nil) {
				cur = s.cfg.DefaultRank
			} else if err != nil {
				return err
			}
			rank = utils.ClampRank(cur, delta)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, playerId, strconv.Itoa(rank))
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, storageErr("adjust rank", err)
		}
		return rank, nil
	}
	return 0, storageErr("adjust rank", redis.TxFailedErr)
}
