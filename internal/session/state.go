package session

import (
	"time"

	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/rules"
)

// State is a detached copy of a session.
type State struct {
	Id        string
	Black     Participant
	White     Participant
	Status    Status
	Turn      rules.Side
	Board     rules.Board
	History   []MoveRecord
	Winner    rules.Side
	Reason    Reason
	Cancelled bool
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

func (s *Session) snapshotLocked() State {
	history := make([]MoveRecord, len(s.history))
	copy(history, s.history)
	return State{
		Id:        s.id,
		Black:     s.players[0],
		White:     s.players[1],
		Status:    s.status,
		Turn:      s.turn,
		Board:     s.board,
		History:   history,
		Winner:    s.winner,
		Reason:    s.reason,
		Cancelled: s.cancelled,
		CreatedAt: s.createdAt,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}

func (st State) Participant(side rules.Side) Participant {
	if side == rules.White {
		return st.White
	}
	return st.Black
}

func (st State) WinnerId() string {
	if !st.Winner.Valid() {
		return ""
	}
	return st.Participant(st.Winner).PlayerId
}

// LoserId returns the player id of the losing side of a concluded session.
func (st State) LoserId() string {
	if !st.Winner.Valid() {
		return ""
	}
	return st.Participant(st.Winner.Opponent()).PlayerId
}

func (st State) ConnectionIds() []string {
	var ids []string
	for _, p := range []Participant{st.Black, st.White} {
		if p.ConnectionId != "" {
			ids = append(ids, p.ConnectionId)
		}
	}
	return ids
}

// Record converts the state into its persisted form.
func (st State) Record() entities.GameRecord {
	moves := make([]entities.MoveRecord, 0, len(st.History))
	for _, m := range st.History {
		moves = append(moves, entities.MoveRecord{
			Side:      m.Side.String(),
			From:      m.From,
			To:        m.To,
			Captured:  m.Captured,
			Timestamp: m.Timestamp,
		})
	}
	record := entities.GameRecord{
		Id:          st.Id,
		PlayerBlack: st.Black.PlayerId,
		PlayerWhite: st.White.PlayerId,
		BlackRank:   st.Black.Rank,
		WhiteRank:   st.White.Rank,
		Status:      string(st.Status),
		Turn:        st.Turn.String(),
		Board:       st.Board.Grid(),
		MoveHistory: moves,
		Winner:      st.Winner.String(),
		WinnerId:    st.WinnerId(),
		Reason:      string(st.Reason),
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   time.Now(),
	}
	if !st.StartedAt.IsZero() {
		startedAt := st.StartedAt
		record.StartedAt = &startedAt
	}
	if !st.EndedAt.IsZero() {
		endedAt := st.EndedAt
		record.EndedAt = &endedAt
	}
	return record
}
