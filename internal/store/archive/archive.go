// Package archive keeps a permanent record of concluded games in Postgres.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS lines_games (
    game_id      TEXT PRIMARY KEY,
    black_id     TEXT NOT NULL,
    white_id     TEXT NOT NULL,
    black_rank   INTEGER NOT NULL,
    white_rank   INTEGER NOT NULL,
    status       TEXT NOT NULL,
    winner       TEXT NOT NULL,
    winner_id    TEXT NOT NULL,
    reason       TEXT NOT NULL,
    moves        JSONB NOT NULL,
    move_count   INTEGER NOT NULL,
    started_at   TIMESTAMPTZ,
    ended_at     TIMESTAMPTZ,
    duration_ms  BIGINT NOT NULL
)`

const upsertGame = `INSERT INTO lines_games (
    game_id, black_id, white_id, black_rank, white_rank,
    status, winner, winner_id, reason, moves, move_count,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
  ) ON CONFLICT (game_id) DO UPDATE SET
    status=EXCLUDED.status,
    winner=EXCLUDED.winner,
    winner_id=EXCLUDED.winner_id,
    reason=EXCLUDED.reason,
    moves=EXCLUDED.moves,
    move_count=EXCLUDED.move_count,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

var ErrNotConcluded = errors.New("game has not concluded")

type Repository struct {
	db *sql.DB
}

// Open connects to Postgres and makes sure the archive table exists.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create archive table: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a concluded game.
func (r *Repository) SaveResult(ctx context.Context, g entities.GameRecord) error {
	if r == nil || r.db == nil {
		return nil
	}
	args, err := resultArgs(g)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, upsertGame, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("archive game %s: %s (%s)", g.Id, pqErr.Message, pqErr.Code)
		}
		return fmt.Errorf("archive game %s: %w", g.Id, err)
	}
	return nil
}

func resultArgs(g entities.GameRecord) ([]any, error) {
	if g.EndedAt == nil || g.WinnerId == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConcluded, g.Id)
	}
	moves, err := json.Marshal(g.MoveHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal moves: %w", err)
	}
	var duration int64
	if g.StartedAt != nil {
		duration = g.EndedAt.Sub(*g.StartedAt).Milliseconds()
	}
	if duration < 0 {
		duration = 0
	}
	return []any{
		g.Id,
		g.PlayerBlack, g.PlayerWhite,
		g.BlackRank, g.WhiteRank,
		g.Status, g.Winner, g.WinnerId, g.Reason,
		string(moves), len(g.MoveHistory),
		pq.NullTime{Time: derefTime(g.StartedAt), Valid: g.StartedAt != nil},
		*g.EndedAt,
		duration,
	}, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
