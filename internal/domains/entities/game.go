package entities

import (
	"time"

	"github.com/chess-vn/lines/internal/rules"
)

type GameRecord struct {
	Id          string       `dynamodbav:"Id" json:"id"`
	PlayerBlack string       `dynamodbav:"PlayerBlack" json:"playerBlack"`
	PlayerWhite string       `dynamodbav:"PlayerWhite" json:"playerWhite"`
	BlackRank   int          `dynamodbav:"BlackRank" json:"blackRank"`
	WhiteRank   int          `dynamodbav:"WhiteRank" json:"whiteRank"`
	Status      string       `dynamodbav:"Status" json:"status"`
	Turn        string       `dynamodbav:"Turn" json:"turn"`
	Board       [][]int      `dynamodbav:"Board" json:"board"`
	MoveHistory []MoveRecord `dynamodbav:"MoveHistory" json:"moveHistory"`
	Winner      string       `dynamodbav:"Winner,omitempty" json:"winner,omitempty"`
	WinnerId    string       `dynamodbav:"WinnerId,omitempty" json:"winnerId,omitempty"`
	Reason      string       `dynamodbav:"Reason,omitempty" json:"reason,omitempty"`
	CreatedAt   time.Time    `dynamodbav:"CreatedAt" json:"createdAt"`
	StartedAt   *time.Time   `dynamodbav:"StartedAt,omitempty" json:"startedAt,omitempty"`
	EndedAt     *time.Time   `dynamodbav:"EndedAt,omitempty" json:"endedAt,omitempty"`
	UpdatedAt   time.Time    `dynamodbav:"UpdatedAt" json:"updatedAt"`
}

type MoveRecord struct {
	Side      string      `dynamodbav:"Side" json:"side"`
	From      rules.Coord `dynamodbav:"From" json:"from"`
	To        rules.Coord `dynamodbav:"To" json:"to"`
	Captured  bool        `dynamodbav:"Captured" json:"captured"`
	Timestamp time.Time   `dynamodbav:"Timestamp" json:"timestamp"`
}

// PlayerIds returns the black and white player ids.
func (g GameRecord) PlayerIds() []string {
	return []string{g.PlayerBlack, g.PlayerWhite}
}

func (g GameRecord) HasPlayer(playerId string) bool {
	return playerId != "" && (g.PlayerBlack == playerId || g.PlayerWhite == playerId)
}
