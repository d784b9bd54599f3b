package dtos

import (
	"time"

	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/rules"
)

type JoinQueueRequest struct {
	PlayerId string `json:"playerId"`
	Rank     *int   `json:"rank,omitempty"`
}

type PlayerRequest struct {
	PlayerId string `json:"playerId"`
}

type SessionRequest struct {
	SessionId string `json:"sessionId"`
	PlayerId  string `json:"playerId"`
}

type MoveRequest struct {
	SessionId string      `json:"sessionId"`
	PlayerId  string      `json:"playerId"`
	Side      string      `json:"side"`
	From      rules.Coord `json:"from"`
	To        rules.Coord `json:"to"`
}

type OnQueueResponse struct {
	PlayerId string `json:"playerId"`
	Rank     int    `json:"rank"`
	Size     int    `json:"size"`
}

type MatchFoundResponse struct {
	SessionId    string `json:"sessionId"`
	Side         string `json:"side"`
	OpponentRank int    `json:"opponentRank"`
	YourRank     int    `json:"yourRank"`
}

type SessionResponse struct {
	SessionId string `json:"sessionId"`
}

type GameStartResponse struct {
	SessionId string  `json:"sessionId"`
	Side      string  `json:"side"`
	Turn      string  `json:"turn"`
	Board     [][]int `json:"board"`
}

type MoveMadeResponse struct {
	SessionId string      `json:"sessionId"`
	Side      string      `json:"side"`
	From      rules.Coord `json:"from"`
	To        rules.Coord `json:"to"`
	Captured  bool        `json:"captured"`
	Board     [][]int     `json:"board"`
	Turn      string      `json:"turn"`
}

type GameOverResponse struct {
	SessionId string `json:"sessionId"`
	Winner    string `json:"winner"`
	WinnerId  string `json:"winnerId"`
	Reason    string `json:"reason"`
}

type QueueSizeResponse struct {
	Count int `json:"count"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MoveResponse struct {
	Side      string      `json:"side"`
	From      rules.Coord `json:"from"`
	To        rules.Coord `json:"to"`
	Captured  bool        `json:"captured"`
	Timestamp time.Time   `json:"timestamp"`
}

type GameStateResponse struct {
	SessionId   string         `json:"sessionId"`
	Side        string         `json:"side,omitempty"`
	Status      string         `json:"status"`
	Turn        string         `json:"turn"`
	Board       [][]int        `json:"board"`
	PlayerBlack string         `json:"playerBlack"`
	PlayerWhite string         `json:"playerWhite"`
	BlackRank   int            `json:"blackRank"`
	WhiteRank   int            `json:"whiteRank"`
	Moves       []MoveResponse `json:"moves"`
	Winner      string         `json:"winner,omitempty"`
	WinnerId    string         `json:"winnerId,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}

func GameStateResponseFromEntity(game entities.GameRecord) GameStateResponse {
	moves := make([]MoveResponse, 0, len(game.MoveHistory))
	for _, m := range game.MoveHistory {
		moves = append(moves, MoveResponse{
			Side:      m.Side,
			From:      m.From,
			To:        m.To,
			Captured:  m.Captured,
			Timestamp: m.Timestamp,
		})
	}
	return GameStateResponse{
		SessionId:   game.Id,
		Status:      game.Status,
		Turn:        game.Turn,
		Board:       game.Board,
		PlayerBlack: game.PlayerBlack,
		PlayerWhite: game.PlayerWhite,
		BlackRank:   game.BlackRank,
		WhiteRank:   game.WhiteRank,
		Moves:       moves,
		Winner:      game.Winner,
		WinnerId:    game.WinnerId,
		Reason:      game.Reason,
		CreatedAt:   game.CreatedAt,
		StartedAt:   game.StartedAt,
		EndedAt:     game.EndedAt,
	}
}
