package session

import (
	"context"
	"errors"

	"github.com/chess-vn/lines/internal/domains/entities"
)

var (
	ErrStorage        = errors.New("storage failure")
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// Store persists games and player ranks. In-memory sessions stay authoritative;
// the store only receives copies after each transition.
type Store interface {
	// CreateGame stores a new game and returns its id. An id already set on
	// the record is kept.
	CreateGame(ctx context.Context, game entities.GameRecord) (string, error)
	LoadGame(ctx context.Context, id string) (entities.GameRecord, error)
	SaveGame(ctx context.Context, game entities.GameRecord) error
	DeleteGame(ctx context.Context, id string) error
	FindRankOf(ctx context.Context, playerId string) (int, error)
	// AdjustRank adds delta to the player's rank, never going below zero, and
	// returns the new rank.
	AdjustRank(ctx context.Context, playerId string, delta int) (int, error)
}
