package utils

const (
	WinRankBonus    = 20
	LossRankPenalty = 10
)

// RankDeltas returns the rank changes applied to the winner and the loser of a game.
// The loser's rank never drops below zero.
func RankDeltas(loserRank int) (winnerDelta, loserDelta int) {
	loserDelta = -LossRankPenalty
	if loserRank+loserDelta < 0 {
		loserDelta = -loserRank
	}
	if loserRank < 0 {
		loserDelta = 0
	}
	return WinRankBonus, loserDelta
}

// ClampRank applies delta to rank with a floor of zero.
func ClampRank(rank, delta int) int {
	if rank+delta < 0 {
		return 0
	}
	return rank + delta
}
