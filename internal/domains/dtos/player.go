package dtos

import "github.com/chess-vn/lines/internal/domains/entities"

type PlayerRankResponse struct {
	PlayerId string `json:"playerId"`
	Rank     int    `json:"rank"`
}

func PlayerRankResponseFromEntity(rank entities.PlayerRank) PlayerRankResponse {
	return PlayerRankResponse{
		PlayerId: rank.PlayerId,
		Rank:     rank.Rank,
	}
}
