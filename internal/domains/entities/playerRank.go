package entities

import "time"

type PlayerRank struct {
	PlayerId  string    `dynamodbav:"PlayerId" json:"playerId"`
	Rank      int       `dynamodbav:"Rank" json:"rank"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
}
