// Package memstore keeps games and ranks in process memory. It backs local
// runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/utils"
)

type Store struct {
	mu          sync.RWMutex
	games       map[string]entities.GameRecord
	ranks       map[string]int
	defaultRank int
}

func New(defaultRank int) *Store {
	return &Store{
		games:       make(map[string]entities.GameRecord),
		ranks:       make(map[string]int),
		defaultRank: defaultRank,
	}
}

func (s *Store) CreateGame(_ context.Context, game entities.GameRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game.Id == "" {
		game.Id = utils.GenerateUUID()
	}
	if _, exists := s.games[game.Id]; exists {
		return "", fmt.Errorf("%w: game %s already exists", session.ErrStorage, game.Id)
	}
	s.games[game.Id] = game
	return game.Id, nil
}

func (s *Store) LoadGame(_ context.Context, id string) (entities.GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return entities.GameRecord{}, session.ErrGameNotFound
	}
	return game, nil
}

func (s *Store) SaveGame(_ context.Context, game entities.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game.Id == "" {
		return fmt.Errorf("%w: game without id", session.ErrStorage)
	}
	s.games[game.Id] = game
	return nil
}

func (s *Store) DeleteGame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}

// FindRankOf returns the stored rank, or the default rank for unknown players.
func (s *Store) FindRankOf(_ context.Context, playerId string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rank, ok := s.ranks[playerId]; ok {
		return rank, nil
	}
	return s.defaultRank, nil
}

func (s *Store) AdjustRank(_ context.Context, playerId string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank, ok := s.ranks[playerId]
	if !ok {
		rank = s.defaultRank
	}
	rank = utils.ClampRank(rank, delta)
	s.ranks[playerId] = rank
	return rank, nil
}

// SetRank seeds a player's rank.
func (s *Store) SetRank(playerId string, rank int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranks[playerId] = rank
}

func (s *Store) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}
